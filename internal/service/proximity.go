package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/busbuddy/backend/internal/domain"
	"github.com/busbuddy/backend/pkg/utils"
)

// ProximityCheck is the outcome of comparing one bus against one user
type ProximityCheck struct {
	InRange    bool    `json:"inRange"`
	DistanceKm float64 `json:"distanceKm"`
}

// CheckProximity reports whether the bus lies within the alert radius of the user
func CheckProximity(alert domain.ProximityAlert, busPos, userPos domain.Point) ProximityCheck {
	d := distanceKm(busPos, userPos)
	return ProximityCheck{InRange: d <= alert.AlertDistance, DistanceKm: d}
}

// ProximityResult is one entry of POST /api/proximity-alerts/check
type ProximityResult struct {
	AlertID    string  `json:"alertId"`
	BusID      string  `json:"busId"`
	BusNumber  string  `json:"busNumber"`
	InRange    bool    `json:"inRange"`
	DistanceKm float64 `json:"distanceKm"`
	Notified   bool    `json:"notified"`
}

// ProximityMetrics receives evaluation counts
type ProximityMetrics interface {
	ProximityEvaluated(checked, notified int)
}

// ProximityService manages pinned-bus alerts and decides when to notify
type ProximityService struct {
	repo      DataRepository
	state     ProximityStateStore
	notifiers []Notifier
	metrics   ProximityMetrics
	now       Clock
}

// NewProximityService creates a new proximity service
func NewProximityService(repo DataRepository, state ProximityStateStore, notifiers ...Notifier) *ProximityService {
	return &ProximityService{
		repo:      repo,
		state:     state,
		notifiers: notifiers,
		now:       time.Now,
	}
}

// WithMetrics records evaluation counts in m
func (s *ProximityService) WithMetrics(m ProximityMetrics) *ProximityService {
	s.metrics = m
	return s
}

// WithClock replaces the time source
func (s *ProximityService) WithClock(now Clock) *ProximityService {
	s.now = now
	return s
}

// CreateAlert validates the request and pins a bus for a user
func (s *ProximityService) CreateAlert(ctx context.Context, req domain.NewProximityAlert) (domain.ProximityAlert, error) {
	if err := req.Normalize(); err != nil {
		return domain.ProximityAlert{}, err
	}
	if _, err := s.repo.GetBus(ctx, req.BusID); err != nil {
		return domain.ProximityAlert{}, err
	}
	return s.repo.CreateAlert(ctx, req)
}

// ListAlerts returns the alerts of a user
func (s *ProximityService) ListAlerts(ctx context.Context, userID string) ([]domain.ProximityAlert, error) {
	return s.repo.ListAlertsByUser(ctx, userID)
}

// DeleteAlert removes an alert and its remembered state
func (s *ProximityService) DeleteAlert(ctx context.Context, id string) error {
	if err := s.repo.DeleteAlert(ctx, id); err != nil {
		return err
	}
	if err := s.state.Forget(ctx, id); err != nil {
		log.Printf("Proximity: failed to forget state of alert %s: %v", id, err)
	}
	return nil
}

// Evaluate checks every active alert of the user against live bus positions.
// Notifiers fire only when an alert moves from out of range to in range.
func (s *ProximityService) Evaluate(ctx context.Context, userID string, userPos domain.Point) ([]ProximityResult, error) {
	alerts, err := s.repo.ListAlertsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]ProximityResult, 0, len(alerts))
	notified := 0
	for _, alert := range alerts {
		if !alert.IsActive {
			continue
		}
		bus, err := s.repo.GetBus(ctx, alert.BusID)
		if errors.Is(err, domain.ErrBusNotFound) {
			log.Printf("Proximity: alert %s references missing bus %s", alert.ID, alert.BusID)
			continue
		}
		if err != nil {
			return nil, err
		}

		check := CheckProximity(alert, bus.Position(), userPos)
		res := ProximityResult{
			AlertID:    alert.ID,
			BusID:      bus.ID,
			BusNumber:  bus.BusNumber,
			InRange:    check.InRange,
			DistanceKm: utils.RoundTo(check.DistanceKm, 3),
		}

		if s.advance(ctx, alert, bus, check) {
			res.Notified = true
			notified++
		}
		results = append(results, res)
	}

	if s.metrics != nil {
		s.metrics.ProximityEvaluated(len(results), notified)
	}
	return results, nil
}

// advance moves the remembered state of an alert and reports whether a
// notification went out. Entering the range is only remembered once a
// notifier delivered, so a failed delivery is retried on the next check.
// An unreadable previous state never counts as a transition.
func (s *ProximityService) advance(ctx context.Context, alert domain.ProximityAlert, bus domain.Bus, check ProximityCheck) bool {
	was, err := s.state.InRange(ctx, alert.ID)
	if err != nil {
		log.Printf("Proximity: state error for alert %s: %v", alert.ID, err)
		return false
	}
	if was == check.InRange {
		return false
	}

	if !check.InRange {
		if err := s.state.SetInRange(ctx, alert.ID, false); err != nil {
			log.Printf("Proximity: state error for alert %s: %v", alert.ID, err)
		}
		return false
	}

	sent, err := s.notify(ctx, alert, bus, check.DistanceKm)
	if err != nil {
		log.Printf("Proximity: %v", err)
	}
	if !sent {
		return false
	}
	if err := s.state.SetInRange(ctx, alert.ID, true); err != nil {
		log.Printf("Proximity: state error for alert %s: %v", alert.ID, err)
	}
	return true
}

// notify reports whether at least one notifier accepted the event
func (s *ProximityService) notify(ctx context.Context, alert domain.ProximityAlert, bus domain.Bus, distance float64) (bool, error) {
	at := s.now()
	ev := domain.ProximityEvent{
		AlertID:    alert.ID,
		UserID:     alert.UserID,
		BusID:      bus.ID,
		BusNumber:  bus.BusNumber,
		DistanceKm: utils.RoundTo(distance, 3),
		At:         at,
	}

	var errs []error
	for _, n := range s.notifiers {
		if err := n.NotifyProximity(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(errs) == len(s.notifiers) {
		return false, fmt.Errorf("notify alert %s: %w", alert.ID, errors.Join(errs...))
	}
	if err := s.repo.MarkAlertSent(ctx, alert.ID, at); err != nil {
		return true, fmt.Errorf("mark alert %s sent: %w", alert.ID, err)
	}
	return true, nil
}

// LogNotifier writes proximity events to the process log
type LogNotifier struct{}

// NotifyProximity logs the event
func (LogNotifier) NotifyProximity(_ context.Context, ev domain.ProximityEvent) error {
	log.Printf("Proximity alert: bus %s is %.2f km from user %s", ev.BusNumber, ev.DistanceKm, ev.UserID)
	return nil
}
