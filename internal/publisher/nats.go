package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/busbuddy/backend/internal/domain"
)

// conn is the subset of *nats.Conn the publisher needs
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher fans bus positions and proximity events out to NATS so
// clients can subscribe instead of polling.
type NATSPublisher struct {
	nc          conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

// PublisherMetrics receives publish counts and latencies
type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// NewNATSPublisher connects to url and keeps m informed of the connection state
func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("busbuddy-backend"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newPublisher(nc, prefix, logSubjects, m), nil
}

func newPublisher(nc conn, prefix string, logSubjects bool, m PublisherMetrics) *NATSPublisher {
	if strings.TrimSpace(prefix) == "" {
		prefix = "busbuddy"
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), logSubjects: logSubjects, metrics: m}
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// PositionMessage is the payload published on a bus subject
type PositionMessage struct {
	BusID     string           `json:"busId"`
	BusNumber string           `json:"busNumber"`
	RouteName string           `json:"routeName"`
	Status    domain.BusStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Lat       float64          `json:"lat"`
	Lng       float64          `json:"lng"`
	SpeedKmh  float64          `json:"speedKmh"`
	Occupancy int              `json:"occupancy"`
}

// PositionSubject is <prefix>.buses.<busNumber>
func (p *NATSPublisher) PositionSubject(busNumber string) string {
	return fmt.Sprintf("%s.buses.%s", p.prefix, subjectToken(busNumber))
}

// AlertSubject is <prefix>.alerts.<userId>
func (p *NATSPublisher) AlertSubject(userID string) string {
	return fmt.Sprintf("%s.alerts.%s", p.prefix, subjectToken(userID))
}

// PublishPosition announces the latest stored position of a bus.
func (p *NATSPublisher) PublishPosition(_ context.Context, bus domain.Bus) error {
	msg := PositionMessage{
		BusID:     bus.ID,
		BusNumber: bus.BusNumber,
		RouteName: bus.RouteName,
		Status:    bus.Status,
		Timestamp: bus.LastUpdated,
		Lat:       bus.Latitude,
		Lng:       bus.Longitude,
		SpeedKmh:  bus.CurrentSpeed,
		Occupancy: bus.Occupancy,
	}
	return p.publishJSON(p.PositionSubject(bus.BusNumber), msg)
}

// NotifyProximity delivers a proximity event to the user's alert subject.
func (p *NATSPublisher) NotifyProximity(_ context.Context, ev domain.ProximityEvent) error {
	return p.publishJSON(p.AlertSubject(ev.UserID), ev)
}

func (p *NATSPublisher) publishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publisher: publish %s: %w", subject, err)
	}
	return nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
