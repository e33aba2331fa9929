package domain

import (
	"math"
	"time"
)

// BusStatus is the operating state reported for a bus
type BusStatus string

const (
	BusStatusActive      BusStatus = "active"
	BusStatusIdle        BusStatus = "idle"
	BusStatusMaintenance BusStatus = "maintenance"
	BusStatusStopped     BusStatus = "stopped"
)

// Valid reports whether s is a known status
func (s BusStatus) Valid() bool {
	switch s {
	case BusStatusActive, BusStatusIdle, BusStatusMaintenance, BusStatusStopped:
		return true
	}
	return false
}

// Point is a coordinate in decimal degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bus represents one tracked vehicle
type Bus struct {
	ID           string    `json:"id"`
	BusNumber    string    `json:"busNumber"`
	RouteName    string    `json:"routeName"`
	DriverID     *string   `json:"driverId"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Status       BusStatus `json:"status"`
	CurrentSpeed float64   `json:"currentSpeed"` // km/h
	Occupancy    int       `json:"occupancy"`    // percent
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Position returns the last known coordinate of the bus
func (b Bus) Position() Point {
	return Point{Lat: b.Latitude, Lng: b.Longitude}
}

// IsActive reports whether the bus is subject to live position updates
func (b Bus) IsActive() bool {
	return b.Status == BusStatusActive
}

// NewBus holds the fields accepted when registering a bus
type NewBus struct {
	BusNumber    string    `json:"busNumber"`
	RouteName    string    `json:"routeName"`
	DriverID     *string   `json:"driverId,omitempty"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	Status       BusStatus `json:"status"`
	CurrentSpeed float64   `json:"currentSpeed"`
	Occupancy    int       `json:"occupancy"`
}

// Normalize fills defaults and validates the request
func (n *NewBus) Normalize() error {
	var errs ValidationErrors
	if n.Status == "" {
		n.Status = BusStatusActive
	}
	if n.BusNumber == "" {
		errs.add("busNumber", "is required")
	}
	if n.RouteName == "" {
		errs.add("routeName", "is required")
	}
	if !n.Status.Valid() {
		errs.add("status", "must be one of active, idle, maintenance, stopped")
	}
	validateCoordinates(&errs, n.Latitude, n.Longitude)
	if n.CurrentSpeed < 0 {
		errs.add("currentSpeed", "must not be negative")
	}
	if n.Occupancy < 0 || n.Occupancy > 100 {
		errs.add("occupancy", "must be between 0 and 100")
	}
	return errs.Err()
}

// LocationUpdate is a position report for a single bus
type LocationUpdate struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Speed     *float64 `json:"speed"`
}

// Validate requires all three values to be present and finite
func (u LocationUpdate) Validate() error {
	var errs ValidationErrors
	validateCoordinates(&errs, u.Latitude, u.Longitude)
	switch {
	case u.Speed == nil:
		errs.add("speed", "must be a number")
	case math.IsNaN(*u.Speed) || math.IsInf(*u.Speed, 0):
		errs.add("speed", "must be a finite number")
	case *u.Speed < 0:
		errs.add("speed", "must not be negative")
	}
	return errs.Err()
}

func validateCoordinates(errs *ValidationErrors, lat, lng *float64) {
	switch {
	case lat == nil:
		errs.add("latitude", "must be a number")
	case math.IsNaN(*lat) || *lat < -90 || *lat > 90:
		errs.add("latitude", "must be between -90 and 90")
	}
	switch {
	case lng == nil:
		errs.add("longitude", "must be a number")
	case math.IsNaN(*lng) || *lng < -180 || *lng > 180:
		errs.add("longitude", "must be between -180 and 180")
	}
}
