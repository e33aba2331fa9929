package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/busbuddy/backend/internal/domain"
	"github.com/busbuddy/backend/pkg/utils"
)

const (
	positionJitterDeg = 0.002
	speedJitterKmh    = 10.0
	defaultSimSpeed   = 30.0
	minSimSpeed       = 15.0
	maxSimSpeed       = 45.0
)

// SimulatorMetrics receives per-tick observations
type SimulatorMetrics interface {
	ObserveTick(d time.Duration, active, updated, failed int)
	TickFailed()
}

// SimulatorConfig controls the update cadence
type SimulatorConfig struct {
	Interval     time.Duration
	TickTimeout  time.Duration
	SummaryEvery int
}

// TickResult counts what one tick did
type TickResult struct {
	Active  int
	Updated int
	Failed  int
}

// Simulator advances every active bus by a small random walk on each tick
type Simulator struct {
	repo         domain.BusRepository
	interval     time.Duration
	tickTimeout  time.Duration
	summaryEvery int

	rnd     func() float64
	pub     PositionPublisher
	metrics SimulatorMetrics

	ticks int
}

// NewSimulator creates a simulator over the given store
func NewSimulator(repo domain.BusRepository, cfg SimulatorConfig) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.TickTimeout <= 0 || cfg.TickTimeout > cfg.Interval {
		cfg.TickTimeout = cfg.Interval
	}
	if cfg.SummaryEvery <= 0 {
		cfg.SummaryEvery = 10
	}
	return &Simulator{
		repo:         repo,
		interval:     cfg.Interval,
		tickTimeout:  cfg.TickTimeout,
		summaryEvery: cfg.SummaryEvery,
		rnd:          rand.Float64,
	}
}

// WithPublisher fans every updated bus out to p
func (s *Simulator) WithPublisher(p PositionPublisher) *Simulator {
	s.pub = p
	return s
}

// WithMetrics records tick observations in m
func (s *Simulator) WithMetrics(m SimulatorMetrics) *Simulator {
	s.metrics = m
	return s
}

// WithRandom replaces the [0,1) random source
func (s *Simulator) WithRandom(rnd func() float64) *Simulator {
	s.rnd = rnd
	return s
}

// Run ticks until ctx is cancelled. Each tick completes before the next
// one starts; ticks that fall due while one is running are dropped.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Simulator started (interval %s, tick timeout %s)", s.interval, s.tickTimeout)
	for {
		select {
		case <-ctx.Done():
			log.Println("Simulator stopped")
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Simulator) runTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.Tick(tickCtx)
	s.ticks++

	if err != nil {
		log.Printf("Simulator tick %d failed: %v", s.ticks, err)
		if s.metrics != nil {
			s.metrics.TickFailed()
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveTick(time.Since(start), res.Active, res.Updated, res.Failed)
	}
	if s.ticks%s.summaryEvery == 0 {
		log.Printf("Simulator tick %d: updated %d of %d active buses", s.ticks, res.Updated, res.Active)
	}
}

// Tick moves every active bus once. Per-bus failures are logged and
// counted; only a failed listing or an expired context is returned.
func (s *Simulator) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult

	buses, err := s.repo.ListBuses(ctx)
	if err != nil {
		return res, fmt.Errorf("simulator: failed to list buses: %w", err)
	}

	for _, bus := range buses {
		if !bus.IsActive() {
			continue
		}
		res.Active++
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("simulator: tick interrupted: %w", err)
		}

		lat, lng, speed := s.step(bus)
		updated, err := s.repo.UpdateBusLocation(ctx, bus.ID, lat, lng, speed)
		if err != nil {
			res.Failed++
			log.Printf("Simulator: failed to update bus %s: %v", bus.BusNumber, err)
			continue
		}
		res.Updated++

		if s.pub != nil {
			if err := s.pub.PublishPosition(ctx, updated); err != nil {
				log.Printf("Simulator: publish error for %s: %v", bus.BusNumber, err)
			}
		}
	}
	return res, nil
}

// step returns the next position and rounded speed of an active bus
func (s *Simulator) step(bus domain.Bus) (lat, lng, speed float64) {
	lat = bus.Latitude + (s.rnd()-0.5)*positionJitterDeg
	lng = bus.Longitude + (s.rnd()-0.5)*positionJitterDeg

	prev := bus.CurrentSpeed
	if prev <= 0 {
		prev = defaultSimSpeed
	}
	speed = utils.Clamp(prev+(s.rnd()-0.5)*speedJitterKmh, minSimSpeed, maxSimSpeed)
	return lat, lng, math.Round(speed)
}
