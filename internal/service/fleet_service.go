package service

import (
	"context"
	"log"
	"time"

	"github.com/busbuddy/backend/internal/domain"
)

// FleetService validates requests for buses, routes, schedules and
// analytics and forwards them to the store
type FleetService struct {
	repo DataRepository
	eta  *ETAEstimator
	pub  PositionPublisher
	now  Clock
}

// NewFleetService creates a new fleet service
func NewFleetService(repo DataRepository, eta *ETAEstimator) *FleetService {
	if eta == nil {
		eta = NewETAEstimator()
	}
	return &FleetService{repo: repo, eta: eta, now: time.Now}
}

// WithPublisher fans manual location updates out to p
func (s *FleetService) WithPublisher(p PositionPublisher) *FleetService {
	s.pub = p
	return s
}

// WithClock replaces the time source
func (s *FleetService) WithClock(now Clock) *FleetService {
	s.now = now
	return s
}

// ListBuses returns all buses
func (s *FleetService) ListBuses(ctx context.Context) ([]domain.Bus, error) {
	return s.repo.ListBuses(ctx)
}

// GetBus returns one bus
func (s *FleetService) GetBus(ctx context.Context, id string) (domain.Bus, error) {
	return s.repo.GetBus(ctx, id)
}

// CreateBus validates and registers a bus
func (s *FleetService) CreateBus(ctx context.Context, req domain.NewBus) (domain.Bus, error) {
	if err := req.Normalize(); err != nil {
		return domain.Bus{}, err
	}
	return s.repo.CreateBus(ctx, req)
}

// UpdateLocation applies a position report to one bus
func (s *FleetService) UpdateLocation(ctx context.Context, id string, u domain.LocationUpdate) (domain.Bus, error) {
	if err := u.Validate(); err != nil {
		return domain.Bus{}, err
	}
	bus, err := s.repo.UpdateBusLocation(ctx, id, *u.Latitude, *u.Longitude, *u.Speed)
	if err != nil {
		return domain.Bus{}, err
	}
	if s.pub != nil {
		if err := s.pub.PublishPosition(ctx, bus); err != nil {
			log.Printf("Fleet: publish error for %s: %v", bus.BusNumber, err)
		}
	}
	return bus, nil
}

// BusETA is the body of GET /api/buses/:id/eta
type BusETA struct {
	ETA        int       `json:"eta"`
	Formatted  string    `json:"formatted"`
	Status     ETAStatus `json:"status"`
	DistanceKm float64   `json:"distanceKm"`
	SpeedKmh   float64   `json:"speedKmh"`
}

// EstimateETA predicts the arrival of a bus at dest
func (s *FleetService) EstimateETA(ctx context.Context, busID string, dest domain.Point) (BusETA, error) {
	bus, err := s.repo.GetBus(ctx, busID)
	if err != nil {
		return BusETA{}, err
	}
	est := s.eta.Estimate(bus, dest)
	return BusETA{
		ETA:        est.Minutes,
		Formatted:  FormatETA(float64(est.Minutes)),
		Status:     StatusForETA(float64(est.Minutes)),
		DistanceKm: est.DistanceKm,
		SpeedKmh:   est.SpeedKmh,
	}, nil
}

// CalculateETA is the plain server-side estimate for one bus
func (s *FleetService) CalculateETA(ctx context.Context, busID string, dest domain.Point) (DirectETAResult, error) {
	bus, err := s.repo.GetBus(ctx, busID)
	if err != nil {
		return DirectETAResult{}, err
	}
	return DirectETA(bus, dest), nil
}

// ListRoutes returns all routes
func (s *FleetService) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	return s.repo.ListRoutes(ctx)
}

// GetRoute returns one route
func (s *FleetService) GetRoute(ctx context.Context, id string) (domain.Route, error) {
	return s.repo.GetRoute(ctx, id)
}

// CreateRoute validates and stores a route
func (s *FleetService) CreateRoute(ctx context.Context, req domain.NewRoute) (domain.Route, error) {
	if err := req.Normalize(); err != nil {
		return domain.Route{}, err
	}
	return s.repo.CreateRoute(ctx, req)
}

// ListSchedules returns the schedules of a route
func (s *FleetService) ListSchedules(ctx context.Context, routeID string) ([]domain.Schedule, error) {
	return s.repo.ListSchedules(ctx, routeID)
}

// CreateSchedule validates and stores a schedule for routeID
func (s *FleetService) CreateSchedule(ctx context.Context, routeID string, req domain.NewSchedule) (domain.Schedule, error) {
	req.RouteID = routeID
	if err := req.Normalize(); err != nil {
		return domain.Schedule{}, err
	}
	return s.repo.CreateSchedule(ctx, req)
}

// ListAnalytics returns snapshots oldest first
func (s *FleetService) ListAnalytics(ctx context.Context) ([]domain.Analytics, error) {
	return s.repo.ListAnalytics(ctx)
}

// LatestAnalytics returns the newest snapshot
func (s *FleetService) LatestAnalytics(ctx context.Context) (domain.Analytics, error) {
	return s.repo.LatestAnalytics(ctx)
}

// CreateAnalytics validates and stores a snapshot, dated now when unset
func (s *FleetService) CreateAnalytics(ctx context.Context, req domain.NewAnalytics) (domain.Analytics, error) {
	if err := req.Normalize(s.now()); err != nil {
		return domain.Analytics{}, err
	}
	return s.repo.CreateAnalytics(ctx, req)
}

// CorrectAnalytics amends the totals of a recorded day
func (s *FleetService) CorrectAnalytics(ctx context.Context, id string, c domain.AnalyticsCorrection) (domain.Analytics, error) {
	if err := c.Validate(); err != nil {
		return domain.Analytics{}, err
	}
	return s.repo.CorrectAnalytics(ctx, id, c)
}

// Health reports store connectivity
func (s *FleetService) Health(ctx context.Context) error {
	return s.repo.Health(ctx)
}
