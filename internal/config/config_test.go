package config

import (
	"testing"
	"time"
)

var allKeys = []string{
	"PORT", "GO_ENV", "DATABASE_URL", "PG_DSN", "SEED_DATA", "SIMULATOR_ENABLED",
	"SIMULATOR_INTERVAL_MS", "SIMULATOR_TICK_TIMEOUT_MS", "SIMULATOR_SUMMARY_EVERY",
	"NATS_URL", "NATS_SUBJECT_PREFIX", "LOG_NATS_SUBJECTS", "REDIS_ADDR",
	"PROXIMITY_STATE_TTL_MIN", "METRICS_ENABLED", "TZ", "MAPS_API_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.UsesDatabase() {
		t.Error("expected in-memory store by default")
	}
	if !cfg.SeedData || !cfg.SimulatorEnabled || !cfg.MetricsEnabled {
		t.Errorf("unexpected toggles %+v", cfg)
	}
	if cfg.SimulatorInterval != 3*time.Second {
		t.Errorf("SimulatorInterval = %v", cfg.SimulatorInterval)
	}
	if cfg.SimulatorTickTimeout != 2500*time.Millisecond {
		t.Errorf("SimulatorTickTimeout = %v", cfg.SimulatorTickTimeout)
	}
	if cfg.SimulatorSummaryEvery != 10 {
		t.Errorf("SimulatorSummaryEvery = %d", cfg.SimulatorSummaryEvery)
	}
	if cfg.ProximityStateTTL != 24*time.Hour {
		t.Errorf("ProximityStateTTL = %v", cfg.ProximityStateTTL)
	}
	if cfg.NATSSubjectPrefix != "busbuddy" {
		t.Errorf("NATSSubjectPrefix = %q", cfg.NATSSubjectPrefix)
	}
	if cfg.Location != time.Local {
		t.Errorf("Location = %v", cfg.Location)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("PG_DSN", "postgres://u@localhost/busbuddy")
	t.Setenv("SIMULATOR_INTERVAL_MS", "500")
	t.Setenv("SIMULATOR_ENABLED", "off")
	t.Setenv("TZ", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" || !cfg.UsesDatabase() {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.SimulatorInterval != 500*time.Millisecond {
		t.Errorf("SimulatorInterval = %v", cfg.SimulatorInterval)
	}
	if cfg.SimulatorEnabled {
		t.Error("SimulatorEnabled should be false")
	}
	if cfg.Location.String() != "UTC" {
		t.Errorf("Location = %v", cfg.Location)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SIMULATOR_INTERVAL_MS":     "0",
		"SIMULATOR_TICK_TIMEOUT_MS": "soon",
		"SIMULATOR_SUMMARY_EVERY":   "-3",
		"SEED_DATA":                 "maybe",
		"TZ":                        "Mars/Olympus_Mons",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%q", key, value)
			}
		})
	}
}
