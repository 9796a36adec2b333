// Package config holds environment-derived server configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config contains all runtime settings for the simulation server.
// Values are read once at startup; components receive them by reference.
type Config struct {
	// HTTPPort is the port the API server listens on.
	HTTPPort string

	// AdminToken guards the admin endpoints (instance stop/delete).
	// Requests must carry it in the x-admin-token header.
	AdminToken string

	// TickRate is the interval between scheduler ticks.
	TickRate time.Duration

	// IdleInterval is how many ticks pass between Autonomous Phase runs.
	IdleInterval int

	// AIRequestTimeout is the per-call deadline for NPC reaction and idle
	// dispatches to the agent pool.
	AIRequestTimeout time.Duration

	// DBPath is the sqlite file used for instance snapshot persistence.
	DBPath string
}

// Defaults used by LoadFromEnv when the variable is unset.
const (
	DefaultAdminToken       = "dev-token"
	DefaultTickRate         = 1 * time.Second
	DefaultIdleInterval     = 30
	DefaultAIRequestTimeout = 8 * time.Second
	DefaultDBPath           = "agentic_realm.db"
	DefaultHTTPPort         = "8080"
)

// LoadFromEnv builds a Config from the process environment.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:         getEnv("HTTP_PORT", DefaultHTTPPort),
		AdminToken:       getEnv("ADMIN_TOKEN", DefaultAdminToken),
		TickRate:         DefaultTickRate,
		IdleInterval:     DefaultIdleInterval,
		AIRequestTimeout: DefaultAIRequestTimeout,
		DBPath:           getEnv("DB_PATH", DefaultDBPath),
	}

	if raw := os.Getenv("TICK_RATE"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid TICK_RATE %q: must be a positive number of seconds", raw)
		}
		cfg.TickRate = time.Duration(secs * float64(time.Second))
	}

	if raw := os.Getenv("IDLE_INTERVAL"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid IDLE_INTERVAL %q: must be a positive integer", raw)
		}
		cfg.IdleInterval = n
	}

	if raw := os.Getenv("AI_REQUEST_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid AI_REQUEST_TIMEOUT %q: %v", raw, err)
		}
		cfg.AIRequestTimeout = d
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
