package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/busbuddy/backend/internal/domain"
	"github.com/busbuddy/backend/internal/repository/memory"
)

// 2024-01-01 is a Monday
func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func schedules(times ...string) []domain.Schedule {
	out := make([]domain.Schedule, 0, len(times))
	for _, t := range times {
		out = append(out, domain.Schedule{DepartureTime: t, IsActive: true})
	}
	return out
}

func TestNextScheduledArrival(t *testing.T) {
	day := schedules("20:00", "08:00", "14:00")

	tests := []struct {
		name   string
		list   []domain.Schedule
		now    time.Time
		want   string
		wantOK bool
	}{
		{"later today", day, at(15, 0), "20:00", true},
		{"rolls to tomorrow", day, at(21, 0), "08:00", true},
		{"exactly at departure skips it", day, at(14, 0), "20:00", true},
		{"early morning", day, at(6, 30), "08:00", true},
		{"empty", nil, at(12, 0), "", false},
		{"only inactive", []domain.Schedule{{DepartureTime: "09:00"}}, at(8, 0), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextScheduledArrival(tt.list, tt.now)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestNextScheduledArrivalDays(t *testing.T) {
	list := []domain.Schedule{
		{DepartureTime: "09:00", IsActive: true, DaysOfWeek: []string{"Sat", "Sun"}},
		{DepartureTime: "18:00", IsActive: true, DaysOfWeek: []string{"Mon"}},
		{DepartureTime: "07:00", IsActive: true, DaysOfWeek: []string{"Tue"}},
	}

	if got, _ := NextScheduledArrival(list, at(10, 0)); got != "18:00" {
		t.Errorf("expected the Monday departure, got %s", got)
	}
	if got, _ := NextScheduledArrival(list, at(19, 0)); got != "07:00" {
		t.Errorf("expected the Tuesday departure, got %s", got)
	}
}

func TestMinutesUntil(t *testing.T) {
	tests := []struct {
		name string
		hhmm string
		now  time.Time
		want int
	}{
		{"later today", "20:00", at(15, 0), 300},
		{"now", "15:00", at(15, 0), 0},
		{"rolls over", "08:00", at(21, 0), 660},
		{"floors seconds", "15:10", at(15, 0).Add(30 * time.Second), 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MinutesUntil(tt.hhmm, tt.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}

	if _, err := MinutesUntil("8:00", at(0, 0)); err == nil {
		t.Error("expected an error for a non-padded time")
	}
}

func TestRouteArrivalService(t *testing.T) {
	repo := memory.NewRepository()
	ctx := context.Background()
	rt, _ := repo.CreateRoute(ctx, domain.NewRoute{Name: "R", From: "A", To: "B", Stops: []domain.Stop{{Name: "A"}}})
	for _, dep := range []string{"08:00", "14:00", "20:00"} {
		if _, err := repo.CreateSchedule(ctx, domain.NewSchedule{RouteID: rt.ID, DepartureTime: dep}); err != nil {
			t.Fatalf("CreateSchedule failed: %v", err)
		}
	}

	svc := NewRouteArrivalService(repo, func() time.Time { return at(15, 0) })
	got, err := svc.NextArrival(ctx, rt.ID)
	if err != nil {
		t.Fatalf("NextArrival failed: %v", err)
	}
	if got.NextArrival == nil || *got.NextArrival != "20:00" {
		t.Fatalf("expected 20:00, got %v", got.NextArrival)
	}
	if got.MinutesUntil == nil || *got.MinutesUntil != 300 {
		t.Errorf("expected 300 minutes, got %v", got.MinutesUntil)
	}
	if len(got.Schedules) != 3 {
		t.Errorf("expected 3 schedules, got %d", len(got.Schedules))
	}

	if _, err := svc.NextArrival(ctx, "missing"); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Errorf("expected ErrRouteNotFound, got %v", err)
	}

	empty, _ := repo.CreateRoute(ctx, domain.NewRoute{Name: "E", From: "A", To: "B", Stops: []domain.Stop{{Name: "A"}}})
	none, err := svc.NextArrival(ctx, empty.ID)
	if err != nil {
		t.Fatalf("NextArrival failed: %v", err)
	}
	if none.NextArrival != nil || none.MinutesUntil != nil {
		t.Errorf("expected no arrival for a route without schedules, got %+v", none)
	}
}
