package domain

import (
	"testing"
	"time"
)

func TestDeriveComplianceStatus(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := func(days int) *time.Time {
		v := now.AddDate(0, 0, days)
		return &v
	}
	earlierToday := now.Add(-time.Hour)

	tests := []struct {
		name     string
		expiries []*time.Time
		want     ComplianceStatus
	}{
		{"both far", []*time.Time{in(100), in(200)}, ComplianceValid},
		{"one soon", []*time.Time{in(10), in(200)}, ComplianceExpiring},
		{"threshold is exclusive", []*time.Time{in(ExpiringWithinDays)}, ComplianceValid},
		{"last expiring day", []*time.Time{in(ExpiringWithinDays - 1)}, ComplianceExpiring},
		{"one lapsed", []*time.Time{in(-1), in(200)}, ComplianceExpired},
		{"expired wins over expiring", []*time.Time{in(3), in(-2)}, ComplianceExpired},
		{"earlier today", []*time.Time{&earlierToday}, ComplianceExpired},
		{"missing dates", []*time.Time{nil, nil}, ComplianceValid},
		{"one missing", []*time.Time{nil, in(5)}, ComplianceExpiring},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveComplianceStatus(now, tt.expiries...); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		expiry time.Time
		want   int
	}{
		{now.Add(36 * time.Hour), 1},
		{now.Add(23 * time.Hour), 0},
		{now.Add(-time.Minute), -1},
		{now.AddDate(0, 0, -3), -3},
	}
	for _, tt := range tests {
		if got := DaysLeft(tt.expiry, now); got != tt.want {
			t.Errorf("DaysLeft(%v) = %d, want %d", tt.expiry, got, tt.want)
		}
	}
}
