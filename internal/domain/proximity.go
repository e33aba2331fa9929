package domain

import "time"

// DefaultAlertDistanceKm is used when an alert is created without a distance
const DefaultAlertDistanceKm = 1.0

// ProximityAlert asks to be notified when a bus comes within range of a user
type ProximityAlert struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	BusID         string     `json:"busId"`
	AlertDistance float64    `json:"alertDistance"` // km
	IsActive      bool       `json:"isActive"`
	LastAlertSent *time.Time `json:"lastAlertSent"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// NewProximityAlert holds the fields accepted when pinning a bus
type NewProximityAlert struct {
	UserID        string   `json:"userId"`
	BusID         string   `json:"busId"`
	AlertDistance *float64 `json:"alertDistance"`
	IsActive      *bool    `json:"isActive"`
}

// Normalize fills defaults and validates the request
func (n *NewProximityAlert) Normalize() error {
	var errs ValidationErrors
	if n.AlertDistance == nil {
		d := DefaultAlertDistanceKm
		n.AlertDistance = &d
	}
	if n.IsActive == nil {
		active := true
		n.IsActive = &active
	}
	if n.UserID == "" {
		errs.add("userId", "is required")
	}
	if n.BusID == "" {
		errs.add("busId", "is required")
	}
	if *n.AlertDistance <= 0 {
		errs.add("alertDistance", "must be greater than zero")
	}
	return errs.Err()
}

// ProximityEvent is emitted when a pinned bus enters a user's alert radius
type ProximityEvent struct {
	AlertID    string    `json:"alertId"`
	UserID     string    `json:"userId"`
	BusID      string    `json:"busId"`
	BusNumber  string    `json:"busNumber"`
	DistanceKm float64   `json:"distanceKm"`
	At         time.Time `json:"at"`
}
