package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/busbuddy/backend/internal/cache"
	"github.com/busbuddy/backend/internal/config"
	"github.com/busbuddy/backend/internal/delivery/http"
	"github.com/busbuddy/backend/internal/metrics"
	"github.com/busbuddy/backend/internal/publisher"
	"github.com/busbuddy/backend/internal/repository/memory"
	"github.com/busbuddy/backend/internal/repository/postgres"
	"github.com/busbuddy/backend/internal/repository/seed"
	"github.com/busbuddy/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	now := func() time.Time { return time.Now().In(cfg.Location) }
	collector := metrics.NewCollector(cfg.SimulatorInterval)

	// Database connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		dataRepo  service.DataRepository
		storeName = "memory"
	)
	if cfg.UsesDatabase() {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Could not connect to database: %v", err)
			log.Println("Running with in-memory storage")
		} else {
			defer pool.Close()
			repo := postgres.NewPostgresRepository(pool)
			if err := repo.Migrate(ctx); err != nil {
				log.Fatalf("Database migration failed: %v", err)
			}
			dataRepo, storeName = repo, "postgres"
			log.Println("Connected to PostgreSQL")
		}
	}
	if dataRepo == nil {
		dataRepo = memory.NewRepository()
	}

	if cfg.SeedData {
		if err := seed.IfEmpty(ctx, dataRepo, now(), rand.New(rand.NewSource(time.Now().UnixNano()))); err != nil {
			log.Printf("Warning: seeding failed: %v", err)
		}
	}

	// Proximity transition state
	var state service.ProximityStateStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis unavailable at %s: %v, keeping proximity state in memory", cfg.RedisAddr, err)
		} else {
			state = cache.NewRedisStore(rdb, cfg.ProximityStateTTL)
			log.Printf("Proximity state in Redis at %s", cfg.RedisAddr)
		}
	}
	if state == nil {
		state = cache.NewMemoryStore(cfg.ProximityStateTTL)
	}

	// Optional NATS fan-out
	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, collector)
		if err != nil {
			log.Printf("Warning: NATS unavailable at %s: %v", cfg.NATSURL, err)
			pub = nil
		} else {
			defer pub.Close()
			log.Printf("Publishing to NATS at %s", cfg.NATSURL)
		}
	}

	// Dependency Injection: Services
	fleetSvc := service.NewFleetService(dataRepo, service.NewETAEstimator()).WithClock(now)
	notifiers := []service.Notifier{service.LogNotifier{}}
	if pub != nil {
		fleetSvc.WithPublisher(pub)
		notifiers = append(notifiers, pub)
	}
	proximitySvc := service.NewProximityService(dataRepo, state, notifiers...).
		WithMetrics(collector).
		WithClock(now)

	deps := http.Dependencies{
		Fleet:      fleetSvc,
		Arrivals:   service.NewRouteArrivalService(dataRepo, now),
		Proximity:  proximitySvc,
		Compliance: service.NewComplianceService(dataRepo, now),
		Dashboard:  service.NewDashboardService(dataRepo, now),
		Users:      service.NewUserService(dataRepo),
		StoreName:  storeName,
	}
	if cfg.MetricsEnabled {
		deps.Metrics = collector.Handler()
	}

	// Fleet updater
	simCtx, stopSim := context.WithCancel(context.Background())
	simDone := make(chan struct{})
	if cfg.SimulatorEnabled {
		sim := service.NewSimulator(dataRepo, service.SimulatorConfig{
			Interval:     cfg.SimulatorInterval,
			TickTimeout:  cfg.SimulatorTickTimeout,
			SummaryEvery: cfg.SimulatorSummaryEvery,
		}).WithMetrics(collector)
		if pub != nil {
			sim.WithPublisher(pub)
		}
		go func() {
			defer close(simDone)
			sim.Run(simCtx)
		}()
	} else {
		close(simDone)
	}

	// Fiber App
	app := http.NewApp(true)
	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s (%s store, env %s)", cfg.Port, storeName, cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopSim()
	<-simDone
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited gracefully")
}
