package domain

import (
	"context"
	"time"
)

// BusRepository stores buses and their live positions
type BusRepository interface {
	ListBuses(ctx context.Context) ([]Bus, error)

	// GetBus returns ErrBusNotFound when the id is unknown
	GetBus(ctx context.Context, id string) (Bus, error)

	CreateBus(ctx context.Context, bus NewBus) (Bus, error)

	// UpdateBusLocation atomically replaces the position and speed of one
	// bus and refreshes its LastUpdated timestamp
	UpdateBusLocation(ctx context.Context, id string, lat, lng, speed float64) (Bus, error)
}

// RouteRepository stores routes and their schedules
type RouteRepository interface {
	ListRoutes(ctx context.Context) ([]Route, error)
	GetRoute(ctx context.Context, id string) (Route, error)
	CreateRoute(ctx context.Context, route NewRoute) (Route, error)
	ListSchedules(ctx context.Context, routeID string) ([]Schedule, error)
	CreateSchedule(ctx context.Context, schedule NewSchedule) (Schedule, error)
}

// AnalyticsRepository stores daily aggregate snapshots
type AnalyticsRepository interface {
	// ListAnalytics returns snapshots ordered by date, oldest first
	ListAnalytics(ctx context.Context) ([]Analytics, error)
	LatestAnalytics(ctx context.Context) (Analytics, error)

	// CreateAnalytics returns ErrAnalyticsDayExists when the calendar day
	// of the snapshot is already recorded
	CreateAnalytics(ctx context.Context, a NewAnalytics) (Analytics, error)

	// CorrectAnalytics amends a recorded day in place
	CorrectAnalytics(ctx context.Context, id string, c AnalyticsCorrection) (Analytics, error)
}

// ComplianceRepository stores certificate records, one per bus
type ComplianceRepository interface {
	ListCompliance(ctx context.Context) ([]BusCompliance, error)
	UpsertCompliance(ctx context.Context, c NewCompliance) (BusCompliance, error)
}

// ProximityAlertRepository stores pinned-bus alerts
type ProximityAlertRepository interface {
	ListAlertsByUser(ctx context.Context, userID string) ([]ProximityAlert, error)
	CreateAlert(ctx context.Context, alert NewProximityAlert) (ProximityAlert, error)
	DeleteAlert(ctx context.Context, id string) error
	MarkAlertSent(ctx context.Context, id string, at time.Time) error
}

// UserRepository stores passenger and driver profiles
type UserRepository interface {
	// GetUser and GetUserByFirebaseUID return ErrUserNotFound when unknown
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (User, error)

	// CreateUser returns ErrDuplicateUser when the firebase uid or email is taken
	CreateUser(ctx context.Context, user NewUser) (User, error)

	SetEcoPoints(ctx context.Context, id string, points int) (User, error)
}

// DataRepository is the full storage contract used by the service layer
type DataRepository interface {
	BusRepository
	RouteRepository
	AnalyticsRepository
	ComplianceRepository
	ProximityAlertRepository
	UserRepository

	// Health checks storage connectivity
	Health(ctx context.Context) error
}
