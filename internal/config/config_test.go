package config

import (
	"testing"
	"time"

	"github.com/insights-engine/internal/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 60*time.Minute {
		t.Errorf("Cache.TTL = %v, want 60m", cfg.Cache.TTL)
	}
	if cfg.Graph.MaxPages != 20 {
		t.Errorf("Graph.MaxPages = %d, want 20", cfg.Graph.MaxPages)
	}
	if cfg.Graph.MaxRetries != 5 {
		t.Errorf("Graph.MaxRetries = %d, want 5", cfg.Graph.MaxRetries)
	}
	if cfg.Sync.LeaseMaxAge != 10*time.Minute {
		t.Errorf("Sync.LeaseMaxAge = %v, want 10m", cfg.Sync.LeaseMaxAge)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("GRAPH_MAX_PAGES", "5")
	t.Setenv("SANITY_CEILING_REACH", "123456")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Cache.TTL = %v, want 30m", cfg.Cache.TTL)
	}
	if cfg.Graph.MaxPages != 5 {
		t.Errorf("Graph.MaxPages = %d, want 5", cfg.Graph.MaxPages)
	}
	if got := cfg.Sanity.Ceilings[types.MetricReach]; got != 123456 {
		t.Errorf("Sanity.Ceilings[reach] = %d, want 123456", got)
	}
}

func TestSanityCeilingsCoverAllTrackedMetrics(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	for _, metric := range types.TrackedMetrics {
		if _, ok := cfg.Sanity.Ceilings[metric]; !ok {
			t.Errorf("no sanity ceiling configured for metric %q", metric)
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "not-a-number")
	t.Setenv("TEST_DURATION", "90s")

	if got := getEnv("TEST_STR", "default"); got != "value" {
		t.Errorf("getEnv() = %s, want value", got)
	}
	if got := getEnv("TEST_MISSING", "default"); got != "default" {
		t.Errorf("getEnv() = %s, want default", got)
	}
	if got := getEnvAsInt("TEST_INT", 0); got != 42 {
		t.Errorf("getEnvAsInt() = %d, want 42", got)
	}
	if got := getEnvAsInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt() with invalid value = %d, want fallback 7", got)
	}
	if got := getEnvAsDuration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvAsDuration() = %v, want 90s", got)
	}
}
