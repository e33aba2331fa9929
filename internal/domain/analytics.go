package domain

import "time"

// Analytics is a daily aggregate snapshot of fleet savings
type Analytics struct {
	ID             string    `json:"id"`
	Date           time.Time `json:"date"`
	TotalCO2Saved  float64   `json:"totalCO2Saved"`
	TotalFuelSaved float64   `json:"totalFuelSaved"`
	TotalTrips     int       `json:"totalTrips"`
	AvgBusSpeed    float64   `json:"avgBusSpeed"`
}

// NewAnalytics holds the fields accepted when recording a snapshot
type NewAnalytics struct {
	Date           *time.Time `json:"date"`
	TotalCO2Saved  float64    `json:"totalCO2Saved"`
	TotalFuelSaved float64    `json:"totalFuelSaved"`
	TotalTrips     int        `json:"totalTrips"`
	AvgBusSpeed    float64    `json:"avgBusSpeed"`
}

// Normalize fills defaults and validates the request
func (n *NewAnalytics) Normalize(now time.Time) error {
	var errs ValidationErrors
	if n.Date == nil {
		n.Date = &now
	}
	if n.TotalCO2Saved < 0 {
		errs.add("totalCO2Saved", "must not be negative")
	}
	if n.TotalFuelSaved < 0 {
		errs.add("totalFuelSaved", "must not be negative")
	}
	if n.TotalTrips < 0 {
		errs.add("totalTrips", "must not be negative")
	}
	if n.AvgBusSpeed < 0 {
		errs.add("avgBusSpeed", "must not be negative")
	}
	return errs.Err()
}

// AnalyticsDay is the calendar day a snapshot belongs to, in the location
// carried by its date. A day holds at most one snapshot.
func AnalyticsDay(date time.Time) string {
	return date.Format("2006-01-02")
}

// AnalyticsCorrection amends the totals of a recorded day. Nil fields are kept.
type AnalyticsCorrection struct {
	TotalCO2Saved  *float64 `json:"totalCO2Saved"`
	TotalFuelSaved *float64 `json:"totalFuelSaved"`
	TotalTrips     *int     `json:"totalTrips"`
	AvgBusSpeed    *float64 `json:"avgBusSpeed"`
}

// Validate checks the correction
func (c AnalyticsCorrection) Validate() error {
	var errs ValidationErrors
	if c.TotalCO2Saved == nil && c.TotalFuelSaved == nil && c.TotalTrips == nil && c.AvgBusSpeed == nil {
		errs.add("body", "at least one field is required")
	}
	if c.TotalCO2Saved != nil && *c.TotalCO2Saved < 0 {
		errs.add("totalCO2Saved", "must not be negative")
	}
	if c.TotalFuelSaved != nil && *c.TotalFuelSaved < 0 {
		errs.add("totalFuelSaved", "must not be negative")
	}
	if c.TotalTrips != nil && *c.TotalTrips < 0 {
		errs.add("totalTrips", "must not be negative")
	}
	if c.AvgBusSpeed != nil && *c.AvgBusSpeed < 0 {
		errs.add("avgBusSpeed", "must not be negative")
	}
	return errs.Err()
}

// Apply returns a with the correction's fields overlaid
func (c AnalyticsCorrection) Apply(a Analytics) Analytics {
	if c.TotalCO2Saved != nil {
		a.TotalCO2Saved = *c.TotalCO2Saved
	}
	if c.TotalFuelSaved != nil {
		a.TotalFuelSaved = *c.TotalFuelSaved
	}
	if c.TotalTrips != nil {
		a.TotalTrips = *c.TotalTrips
	}
	if c.AvgBusSpeed != nil {
		a.AvgBusSpeed = *c.AvgBusSpeed
	}
	return a
}
