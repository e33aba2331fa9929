package service

import (
	"context"
	"time"

	"github.com/busbuddy/backend/internal/domain"
	"github.com/busbuddy/backend/pkg/utils"
)

// DataRepository is re-exported from domain for convenience
type DataRepository = domain.DataRepository

// PositionPublisher receives every bus the simulator moves
type PositionPublisher interface {
	PublishPosition(ctx context.Context, bus domain.Bus) error
}

// Notifier delivers proximity events to the user
type Notifier interface {
	NotifyProximity(ctx context.Context, event domain.ProximityEvent) error
}

// ProximityStateStore remembers whether an alert was last seen in range
type ProximityStateStore interface {
	InRange(ctx context.Context, alertID string) (bool, error)
	SetInRange(ctx context.Context, alertID string, inRange bool) error
	Forget(ctx context.Context, alertID string) error
}

// Clock returns the current time
type Clock func() time.Time

// distanceKm is the great-circle distance between two points
func distanceKm(a, b domain.Point) float64 {
	return utils.Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}
