package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/busbuddy/backend/internal/domain"
	"github.com/busbuddy/backend/internal/repository/memory"
)

func TestFleetCreateBus(t *testing.T) {
	svc := NewFleetService(memory.NewRepository(), nil)
	ctx := context.Background()

	bus, err := svc.CreateBus(ctx, domain.NewBus{
		BusNumber: "MYS201",
		RouteName: "City Bus Stand → Hebbal",
		Latitude:  fptr(12.31),
		Longitude: fptr(76.64),
	})
	if err != nil {
		t.Fatalf("CreateBus failed: %v", err)
	}
	if bus.Status != domain.BusStatusActive {
		t.Errorf("expected default status active, got %s", bus.Status)
	}

	var verr domain.ValidationErrors
	_, err = svc.CreateBus(ctx, domain.NewBus{Latitude: fptr(91), Longitude: fptr(0), Status: "flying"})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	fields := map[string]bool{}
	for _, fe := range verr {
		fields[fe.Field] = true
	}
	for _, f := range []string{"busNumber", "routeName", "status", "latitude"} {
		if !fields[f] {
			t.Errorf("expected a %s error, got %v", f, verr)
		}
	}
}

func TestFleetUpdateLocation(t *testing.T) {
	repo := memory.NewRepository()
	pub := &recordingPublisher{}
	svc := NewFleetService(repo, nil).WithPublisher(pub)
	ctx := context.Background()
	bus := addBus(t, repo, "U1", domain.BusStatusActive, 20)

	got, err := svc.UpdateLocation(ctx, bus.ID, domain.LocationUpdate{Latitude: fptr(12.4), Longitude: fptr(76.7), Speed: fptr(31)})
	if err != nil {
		t.Fatalf("UpdateLocation failed: %v", err)
	}
	if got.Latitude != 12.4 || got.CurrentSpeed != 31 {
		t.Errorf("unexpected bus %+v", got)
	}
	if pub.count() != 1 {
		t.Errorf("expected the update to be published once, got %d", pub.count())
	}

	var verr domain.ValidationErrors
	if _, err := svc.UpdateLocation(ctx, bus.ID, domain.LocationUpdate{Latitude: fptr(12.4)}); !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdateLocation(ctx, "ghost", domain.LocationUpdate{Latitude: fptr(1), Longitude: fptr(1), Speed: fptr(1)}); !errors.Is(err, domain.ErrBusNotFound) {
		t.Errorf("expected ErrBusNotFound, got %v", err)
	}
}

func TestFleetEstimateETA(t *testing.T) {
	repo := memory.NewRepository()
	svc := NewFleetService(repo, NewETAEstimatorWithBuffer(noBuffer))
	bus := addBus(t, repo, "E1", domain.BusStatusActive, 0)

	got, err := svc.EstimateETA(context.Background(), bus.ID, bus.Position())
	if err != nil {
		t.Fatalf("EstimateETA failed: %v", err)
	}
	if got.ETA != 0 || got.Formatted != "Arriving now" || got.Status != ETAImminent {
		t.Errorf("unexpected estimate %+v", got)
	}
	if got.SpeedKmh != 25 {
		t.Errorf("expected the fallback speed, got %v", got.SpeedKmh)
	}

	if _, err := svc.CalculateETA(context.Background(), "ghost", bus.Position()); !errors.Is(err, domain.ErrBusNotFound) {
		t.Errorf("expected ErrBusNotFound, got %v", err)
	}
}

func TestFleetRoutesAndSchedules(t *testing.T) {
	svc := NewFleetService(memory.NewRepository(), nil)
	ctx := context.Background()

	if _, err := svc.CreateRoute(ctx, domain.NewRoute{Name: "No stops", From: "A", To: "B"}); err == nil {
		t.Error("expected a route without stops to be rejected")
	}
	rt, err := svc.CreateRoute(ctx, domain.NewRoute{Name: "R", From: "A", To: "B", Stops: []domain.Stop{{Name: "A", Lat: 12.3, Lng: 76.6}}})
	if err != nil {
		t.Fatalf("CreateRoute failed: %v", err)
	}

	if _, err := svc.CreateSchedule(ctx, rt.ID, domain.NewSchedule{DepartureTime: "7:00"}); err == nil {
		t.Error("expected a non-padded departure to be rejected")
	}
	s, err := svc.CreateSchedule(ctx, rt.ID, domain.NewSchedule{DepartureTime: "07:00"})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	if s.RouteID != rt.ID || !s.IsActive {
		t.Errorf("unexpected schedule %+v", s)
	}
	if _, err := svc.CreateSchedule(ctx, "ghost", domain.NewSchedule{DepartureTime: "07:00"}); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Errorf("expected ErrRouteNotFound, got %v", err)
	}
}

func TestFleetCreateAnalyticsDefaultsDate(t *testing.T) {
	now := at(8, 0)
	svc := NewFleetService(memory.NewRepository(), nil).WithClock(func() time.Time { return now })

	a, err := svc.CreateAnalytics(context.Background(), domain.NewAnalytics{TotalTrips: 12})
	if err != nil {
		t.Fatalf("CreateAnalytics failed: %v", err)
	}
	if !a.Date.Equal(now) {
		t.Errorf("expected date %v, got %v", now, a.Date)
	}
	if _, err := svc.CreateAnalytics(context.Background(), domain.NewAnalytics{TotalTrips: -1}); err == nil {
		t.Error("expected negative trips to be rejected")
	}
}

func TestFleetAnalyticsOnePerDay(t *testing.T) {
	svc := NewFleetService(memory.NewRepository(), nil).WithClock(func() time.Time { return at(9, 0) })
	ctx := context.Background()

	first, err := svc.CreateAnalytics(ctx, domain.NewAnalytics{TotalTrips: 300})
	if err != nil {
		t.Fatalf("CreateAnalytics failed: %v", err)
	}
	later := at(12, 0)
	if _, err := svc.CreateAnalytics(ctx, domain.NewAnalytics{Date: &later, TotalTrips: 310}); !errors.Is(err, domain.ErrAnalyticsDayExists) {
		t.Errorf("expected ErrAnalyticsDayExists, got %v", err)
	}

	var verr domain.ValidationErrors
	if _, err := svc.CorrectAnalytics(ctx, first.ID, domain.AnalyticsCorrection{}); !errors.As(err, &verr) {
		t.Errorf("expected an empty correction to be rejected, got %v", err)
	}
	co2 := -1.0
	if _, err := svc.CorrectAnalytics(ctx, first.ID, domain.AnalyticsCorrection{TotalCO2Saved: &co2}); !errors.As(err, &verr) {
		t.Errorf("expected a negative correction to be rejected, got %v", err)
	}

	trips := 310
	fixed, err := svc.CorrectAnalytics(ctx, first.ID, domain.AnalyticsCorrection{TotalTrips: &trips})
	if err != nil {
		t.Fatalf("CorrectAnalytics failed: %v", err)
	}
	if fixed.TotalTrips != 310 {
		t.Errorf("expected corrected trips, got %+v", fixed)
	}
	all, _ := svc.ListAnalytics(ctx)
	if len(all) != 1 {
		t.Errorf("expected a single snapshot for the day, got %d", len(all))
	}
}
