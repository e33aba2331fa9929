package domain

import (
	"math"
	"strings"
	"time"
)

// UserRole decides which dashboard a user sees
type UserRole string

const (
	RolePassenger UserRole = "passenger"
	RoleDriver    UserRole = "driver"
	RoleAdmin     UserRole = "admin"
)

// Valid reports whether r is a known role
func (r UserRole) Valid() bool {
	switch r {
	case RolePassenger, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// User is a profile linked to a Firebase account. Credentials stay with
// the identity provider.
type User struct {
	ID            string    `json:"id"`
	FirebaseUID   string    `json:"firebaseUid"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Role          UserRole  `json:"role"`
	VehicleNumber string    `json:"vehicleNumber,omitempty"`
	AssignedRoute string    `json:"assignedRoute,omitempty"`
	EcoPoints     int       `json:"ecoPoints"`
	EcoScore      int       `json:"ecoScore"`
	FavoriteStops []string  `json:"favoriteStops"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewUser holds the fields accepted when registering a profile
type NewUser struct {
	FirebaseUID   string   `json:"firebaseUid"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Phone         string   `json:"phone"`
	Role          UserRole `json:"role"`
	VehicleNumber string   `json:"vehicleNumber"`
	AssignedRoute string   `json:"assignedRoute"`
	FavoriteStops []string `json:"favoriteStops"`
}

// Normalize trims input, fills defaults and validates the request
func (n *NewUser) Normalize() error {
	n.FirebaseUID = strings.TrimSpace(n.FirebaseUID)
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	n.Name = strings.TrimSpace(n.Name)
	if n.Role == "" {
		n.Role = RolePassenger
	}
	if n.FavoriteStops == nil {
		n.FavoriteStops = []string{}
	}

	var errs ValidationErrors
	if n.FirebaseUID == "" {
		errs.add("firebaseUid", "is required")
	}
	if n.Email == "" || !strings.Contains(n.Email, "@") {
		errs.add("email", "must be an email address")
	}
	if n.Name == "" {
		errs.add("name", "is required")
	}
	if !n.Role.Valid() {
		errs.add("role", "must be one of passenger, driver, admin")
	}
	return errs.Err()
}

// EcoPointsUpdate replaces the eco point balance of a user
type EcoPointsUpdate struct {
	Points *float64 `json:"points"`
}

// Value returns the balance as a whole, non-negative number
func (u EcoPointsUpdate) Value() (int, error) {
	var errs ValidationErrors
	switch {
	case u.Points == nil:
		errs.add("points", "must be a number")
	case math.IsNaN(*u.Points) || math.IsInf(*u.Points, 0) || *u.Points != math.Trunc(*u.Points):
		errs.add("points", "must be a whole number")
	case *u.Points < 0:
		errs.add("points", "must not be negative")
	}
	if err := errs.Err(); err != nil {
		return 0, err
	}
	return int(*u.Points), nil
}
