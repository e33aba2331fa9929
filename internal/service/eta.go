package service

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"github.com/busbuddy/backend/internal/domain"
	"github.com/busbuddy/backend/pkg/utils"
)

const (
	roadCurvatureFactor = 1.2
	fallbackSpeedKmh    = 25.0
	directFallbackKmh   = 30.0
	minTrafficBufferMin = 2.0
	maxTrafficBufferMin = 5.0
)

// ETAStatus buckets an ETA for display
type ETAStatus string

const (
	ETAImminent ETAStatus = "imminent"
	ETAModerate ETAStatus = "moderate"
	ETADistant  ETAStatus = "distant"
)

// ETAEstimate is the result of one estimate
type ETAEstimate struct {
	Minutes       int     `json:"eta"`
	DistanceKm    float64 `json:"distanceKm"`
	SpeedKmh      float64 `json:"speedKmh"`
	SpeedFallback bool    `json:"speedFallback"`
}

// ETAEstimator predicts arrival times from live bus positions
type ETAEstimator struct {
	buffer func() float64 // minutes of traffic buffer
}

// NewETAEstimator returns an estimator with a uniform [2,5) minute traffic buffer
func NewETAEstimator() *ETAEstimator {
	return &ETAEstimator{buffer: func() float64 {
		return minTrafficBufferMin + rand.Float64()*(maxTrafficBufferMin-minTrafficBufferMin)
	}}
}

// NewETAEstimatorWithBuffer uses the given buffer source, e.g. a constant in tests
func NewETAEstimatorWithBuffer(buffer func() float64) *ETAEstimator {
	return &ETAEstimator{buffer: buffer}
}

// Estimate returns the rounded minutes for bus to reach dest.
// Road distance is approximated as 1.2x the straight line. A zero speed
// falls back to 25 km/h.
func (e *ETAEstimator) Estimate(bus domain.Bus, dest domain.Point) ETAEstimate {
	distance := distanceKm(bus.Position(), dest) * roadCurvatureFactor

	speed := bus.CurrentSpeed
	fallback := false
	if speed <= 0 {
		log.Printf("ETA: bus %s reports speed %.1f, assuming %.0f km/h", bus.BusNumber, speed, fallbackSpeedKmh)
		speed = fallbackSpeedKmh
		fallback = true
	}

	minutes := distance/speed*60 + e.buffer()

	return ETAEstimate{
		Minutes:       int(math.Round(minutes)),
		DistanceKm:    utils.RoundTo(distance, 2),
		SpeedKmh:      speed,
		SpeedFallback: fallback,
	}
}

// FormatETA renders minutes for display, rounded to the nearest minute
func FormatETA(minutes float64) string {
	m := int(math.Round(minutes))
	switch {
	case m < 1:
		return "Arriving now"
	case m == 1:
		return "1 min"
	case m < 60:
		return fmt.Sprintf("%d mins", m)
	}

	hours, mins := m/60, m%60
	if mins == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// StatusForETA classifies minutes as imminent (<5), moderate (<15) or distant
func StatusForETA(minutes float64) ETAStatus {
	switch {
	case minutes < 5:
		return ETAImminent
	case minutes < 15:
		return ETAModerate
	default:
		return ETADistant
	}
}

// DirectETAResult is the body of POST /api/eta/calculate
type DirectETAResult struct {
	ETA      int     `json:"eta"`
	Distance string  `json:"distance"`
	BusSpeed float64 `json:"busSpeed"`
}

// DirectETA is the server-side estimate: straight-line distance at the
// current speed, or 30 km/h when the bus is stationary, with no buffer
func DirectETA(bus domain.Bus, dest domain.Point) DirectETAResult {
	distance := distanceKm(bus.Position(), dest)
	speed := bus.CurrentSpeed
	if speed <= 0 {
		speed = directFallbackKmh
	}
	return DirectETAResult{
		ETA:      int(math.Round(distance / speed * 60)),
		Distance: fmt.Sprintf("%.2f", distance),
		BusSpeed: speed,
	}
}
