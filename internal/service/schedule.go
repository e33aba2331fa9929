package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/busbuddy/backend/internal/domain"
)

// NextScheduledArrival returns the earliest active departure after now,
// falling back to the first active departure of the next service day.
// Times compare as zero-padded "HH:MM" strings.
func NextScheduledArrival(schedules []domain.Schedule, now time.Time) (string, bool) {
	if len(schedules) == 0 {
		return "", false
	}
	current := now.Format("15:04")

	if next, ok := earliest(schedules, func(s domain.Schedule) bool {
		return s.RunsOn(now.Weekday()) && s.DepartureTime > current
	}); ok {
		return next, true
	}

	tomorrow := now.AddDate(0, 0, 1).Weekday()
	if next, ok := earliest(schedules, func(s domain.Schedule) bool {
		return s.RunsOn(tomorrow)
	}); ok {
		return next, true
	}

	// no departure tomorrow either; any active one is still the best answer
	return earliest(schedules, func(domain.Schedule) bool { return true })
}

func earliest(schedules []domain.Schedule, keep func(domain.Schedule) bool) (string, bool) {
	best := ""
	for _, s := range schedules {
		if !s.IsActive || !keep(s) {
			continue
		}
		if best == "" || s.DepartureTime < best {
			best = s.DepartureTime
		}
	}
	return best, best != ""
}

// MinutesUntil returns whole minutes from now to the next occurrence of hhmm,
// rolling to tomorrow when that time has already passed today
func MinutesUntil(hhmm string, now time.Time) (int, error) {
	if !domain.IsClockTime(hhmm) {
		return 0, fmt.Errorf("invalid time of day %q", hhmm)
	}
	t, err := time.ParseInLocation("15:04", hhmm, now.Location())
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if target.Before(now) {
		target = target.AddDate(0, 0, 1)
	}
	return int(target.Sub(now) / time.Minute), nil
}

// NextArrival is the body of GET /api/routes/:id/next-arrival
type NextArrival struct {
	RouteID      string            `json:"routeId"`
	NextArrival  *string           `json:"nextArrival"`
	MinutesUntil *int              `json:"minutesUntil"`
	Schedules    []domain.Schedule `json:"schedules"`
}

// RouteArrivalService answers schedule lookups for a route
type RouteArrivalService struct {
	repo domain.RouteRepository
	now  Clock
}

// NewRouteArrivalService creates a new arrival lookup service
func NewRouteArrivalService(repo domain.RouteRepository, now Clock) *RouteArrivalService {
	if now == nil {
		now = time.Now
	}
	return &RouteArrivalService{repo: repo, now: now}
}

// NextArrival returns the next departure of a route and the wait in minutes
func (s *RouteArrivalService) NextArrival(ctx context.Context, routeID string) (NextArrival, error) {
	schedules, err := s.repo.ListSchedules(ctx, routeID)
	if err != nil {
		return NextArrival{}, err
	}
	sort.SliceStable(schedules, func(i, j int) bool {
		return schedules[i].DepartureTime < schedules[j].DepartureTime
	})

	out := NextArrival{RouteID: routeID, Schedules: schedules}
	now := s.now()
	next, ok := NextScheduledArrival(schedules, now)
	if !ok {
		return out, nil
	}
	mins, err := MinutesUntil(next, now)
	if err != nil {
		return NextArrival{}, err
	}
	out.NextArrival = &next
	out.MinutesUntil = &mins
	return out, nil
}
