package domain

import "time"

// Stop is a named point along a route
type Stop struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Route is static path metadata with an ordered stop list
type Route struct {
	ID                  string  `json:"id"`
	RouteNumber         string  `json:"routeNumber,omitempty"`
	Name                string  `json:"name"`
	From                string  `json:"from"`
	To                  string  `json:"to"`
	ServiceClass        string  `json:"serviceClass,omitempty"`
	City                string  `json:"city"`
	Stops               []Stop  `json:"stops"`
	IsEcoRoute          bool    `json:"isEcoRoute"`
	EstimatedCO2Savings float64 `json:"estimatedCO2Savings"`
}

// DefaultCity is used when a route is created without one
const DefaultCity = "Mysuru"

// NewRoute holds the fields accepted when creating a route
type NewRoute struct {
	RouteNumber         string  `json:"routeNumber"`
	Name                string  `json:"name"`
	From                string  `json:"from"`
	To                  string  `json:"to"`
	ServiceClass        string  `json:"serviceClass"`
	City                string  `json:"city"`
	Stops               []Stop  `json:"stops"`
	IsEcoRoute          bool    `json:"isEcoRoute"`
	EstimatedCO2Savings float64 `json:"estimatedCO2Savings"`
}

// Normalize fills defaults and validates the request
func (n *NewRoute) Normalize() error {
	var errs ValidationErrors
	if n.City == "" {
		n.City = DefaultCity
	}
	if n.Name == "" {
		errs.add("name", "is required")
	}
	if n.From == "" {
		errs.add("from", "is required")
	}
	if n.To == "" {
		errs.add("to", "is required")
	}
	if len(n.Stops) == 0 {
		errs.add("stops", "at least one stop is required")
	}
	for _, s := range n.Stops {
		if s.Name == "" {
			errs.add("stops", "every stop needs a name")
			break
		}
	}
	if n.EstimatedCO2Savings < 0 {
		errs.add("estimatedCO2Savings", "must not be negative")
	}
	return errs.Err()
}

// AllDays is the default day-of-week applicability of a schedule
var AllDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Schedule is a planned departure on a route
type Schedule struct {
	ID            string   `json:"id"`
	RouteID       string   `json:"routeId"`
	DepartureTime string   `json:"departureTime"` // HH:MM, 24h, zero padded
	ArrivalTime   string   `json:"arrivalTime,omitempty"`
	DaysOfWeek    []string `json:"daysOfWeek"`
	IsActive      bool     `json:"isActive"`
}

// RunsOn reports whether the schedule applies on the given weekday.
// An empty day list means every day.
func (s Schedule) RunsOn(day time.Weekday) bool {
	if len(s.DaysOfWeek) == 0 {
		return true
	}
	abbr := day.String()[:3]
	for _, d := range s.DaysOfWeek {
		if d == abbr {
			return true
		}
	}
	return false
}

// NewSchedule holds the fields accepted when creating a schedule
type NewSchedule struct {
	RouteID       string   `json:"routeId"`
	DepartureTime string   `json:"departureTime"`
	ArrivalTime   string   `json:"arrivalTime"`
	DaysOfWeek    []string `json:"daysOfWeek"`
	IsActive      *bool    `json:"isActive"`
}

// Normalize fills defaults and validates the request
func (n *NewSchedule) Normalize() error {
	var errs ValidationErrors
	if n.IsActive == nil {
		active := true
		n.IsActive = &active
	}
	if len(n.DaysOfWeek) == 0 {
		n.DaysOfWeek = append([]string(nil), AllDays...)
	}
	if n.RouteID == "" {
		errs.add("routeId", "is required")
	}
	if !IsClockTime(n.DepartureTime) {
		errs.add("departureTime", "must be HH:MM")
	}
	if n.ArrivalTime != "" && !IsClockTime(n.ArrivalTime) {
		errs.add("arrivalTime", "must be HH:MM")
	}
	for _, d := range n.DaysOfWeek {
		if !validDay(d) {
			errs.add("daysOfWeek", "unknown day "+d)
			break
		}
	}
	return errs.Err()
}

// IsClockTime reports whether s is a zero-padded 24h "HH:MM" value
func IsClockTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	return h < 24 && m < 60
}

func validDay(d string) bool {
	for _, a := range AllDays {
		if a == d {
			return true
		}
	}
	return false
}
