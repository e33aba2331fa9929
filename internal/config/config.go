package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process settings read from the environment
type Config struct {
	Port string
	Env  string

	// DatabaseURL selects the Postgres store; empty runs in memory.
	DatabaseURL string
	SeedData    bool

	SimulatorEnabled      bool
	SimulatorInterval     time.Duration
	SimulatorTickTimeout  time.Duration
	SimulatorSummaryEvery int

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	RedisAddr         string
	ProximityStateTTL time.Duration

	MetricsEnabled bool
	Location       *time.Location

	// MapsAPIKey is only handed to the UI; nothing server-side needs it.
	MapsAPIKey string
}

// Load reads .env when present, then the environment, and rejects
// malformed numbers, booleans and durations
func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("GO_ENV", "development"),
		DatabaseURL:       firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "busbuddy"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		MapsAPIKey:        os.Getenv("MAPS_API_KEY"),
	}

	var err error
	if cfg.SeedData, err = getBool("SEED_DATA", true); err != nil {
		return nil, err
	}
	if cfg.SimulatorEnabled, err = getBool("SIMULATOR_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.LogNATSSubjects, err = getBool("LOG_NATS_SUBJECTS", false); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled, err = getBool("METRICS_ENABLED", true); err != nil {
		return nil, err
	}

	ms, err := getPositiveInt("SIMULATOR_INTERVAL_MS", 3000)
	if err != nil {
		return nil, err
	}
	cfg.SimulatorInterval = time.Duration(ms) * time.Millisecond

	ms, err = getPositiveInt("SIMULATOR_TICK_TIMEOUT_MS", 2500)
	if err != nil {
		return nil, err
	}
	cfg.SimulatorTickTimeout = time.Duration(ms) * time.Millisecond

	if cfg.SimulatorSummaryEvery, err = getPositiveInt("SIMULATOR_SUMMARY_EVERY", 10); err != nil {
		return nil, err
	}

	minutes, err := getPositiveInt("PROXIMITY_STATE_TTL_MIN", 24*60)
	if err != nil {
		return nil, err
	}
	cfg.ProximityStateTTL = time.Duration(minutes) * time.Minute

	// Time zone
	if tzName := os.Getenv("TZ"); tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// UsesDatabase reports whether a Postgres DSN was configured
func (c *Config) UsesDatabase() bool { return c.DatabaseURL != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getPositiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s: %q", key, v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
