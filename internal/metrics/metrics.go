package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments of the service.
// A nil *Collector is valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	SimulatorTicks      prometheus.Counter
	SimulatorTickErrors prometheus.Counter
	BusesUpdated        prometheus.Counter
	BusUpdateErrors     prometheus.Counter
	ActiveBuses         prometheus.Gauge
	TickDuration        prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	ProximityChecks        prometheus.Counter
	ProximityNotifications prometheus.Counter

	SimulatorInterval prometheus.Gauge // seconds
}

// NewCollector registers every instrument on a private registry
func NewCollector(simulatorInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		SimulatorTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busbuddy_simulator_ticks_total",
			Help: "Total fleet updater ticks.",
		}),
		SimulatorTickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busbuddy_simulator_tick_errors_total",
			Help: "Ticks that failed to read the fleet.",
		}),
		BusesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busbuddy_simulator_buses_updated_total",
			Help: "Total bus position updates written by the simulator.",
		}),
		BusUpdateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busbuddy_simulator_bus_update_errors_total",
			Help: "Bus position updates that failed to persist.",
		}),
		ActiveBuses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busbuddy_active_buses",
			Help: "Active buses seen by the last tick.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "busbuddy_simulator_tick_duration_seconds",
			Help:    "Duration of a full fleet updater tick.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busbuddy_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busbuddy_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busbuddy_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "busbuddy_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		ProximityChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busbuddy_proximity_checks_total",
			Help: "Proximity alerts evaluated.",
		}),
		ProximityNotifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busbuddy_proximity_notifications_total",
			Help: "Notifications sent on out-of-range to in-range transitions.",
		}),
		SimulatorInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busbuddy_simulator_interval_seconds",
			Help: "Fleet updater tick interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.SimulatorTicks, c.SimulatorTickErrors, c.BusesUpdated, c.BusUpdateErrors,
		c.ActiveBuses, c.TickDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.ProximityChecks, c.ProximityNotifications,
		c.SimulatorInterval,
		collectors.NewGoCollector(),
	)

	c.SimulatorInterval.Set(simulatorInterval.Seconds())

	return c
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// ObserveTick records one completed updater tick.
func (c *Collector) ObserveTick(d time.Duration, active, updated, failed int) {
	if c == nil {
		return
	}
	c.SimulatorTicks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.ActiveBuses.Set(float64(active))
	c.BusesUpdated.Add(float64(updated))
	c.BusUpdateErrors.Add(float64(failed))
}

// TickFailed records a tick that could not read the fleet.
func (c *Collector) TickFailed() {
	if c == nil {
		return
	}
	c.SimulatorTicks.Inc()
	c.SimulatorTickErrors.Inc()
}

// ProximityEvaluated records n evaluated alerts and sent notifications.
func (c *Collector) ProximityEvaluated(checked, notified int) {
	if c == nil {
		return
	}
	c.ProximityChecks.Add(float64(checked))
	c.ProximityNotifications.Add(float64(notified))
}

// The following satisfy publisher.PublisherMetrics.

// NATSPublishedInc counts a delivered message
func (c *Collector) NATSPublishedInc() {
	if c != nil {
		c.NATSPublished.Inc()
	}
}

// NATSPublishErrInc counts a failed publish
func (c *Collector) NATSPublishErrInc() {
	if c != nil {
		c.NATSPublishErrs.Inc()
	}
}

// PublishObserve records how long a publish took
func (c *Collector) PublishObserve(d time.Duration) {
	if c != nil {
		c.PublishDuration.Observe(d.Seconds())
	}
}

// NATSSetConnected tracks the connection state
func (c *Collector) NATSSetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
