package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "ADMIN_TOKEN", "TICK_RATE", "IDLE_INTERVAL", "AI_REQUEST_TIMEOUT", "DB_PATH"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPPort, cfg.HTTPPort)
	assert.Equal(t, DefaultAdminToken, cfg.AdminToken)
	assert.Equal(t, DefaultTickRate, cfg.TickRate)
	assert.Equal(t, DefaultIdleInterval, cfg.IdleInterval)
	assert.Equal(t, DefaultAIRequestTimeout, cfg.AIRequestTimeout)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ADMIN_TOKEN", "sekrit")
	t.Setenv("TICK_RATE", "0.5")
	t.Setenv("IDLE_INTERVAL", "10")
	t.Setenv("AI_REQUEST_TIMEOUT", "2s")
	t.Setenv("DB_PATH", "/tmp/realm.db")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "sekrit", cfg.AdminToken)
	assert.Equal(t, 500*time.Millisecond, cfg.TickRate)
	assert.Equal(t, 10, cfg.IdleInterval)
	assert.Equal(t, 2*time.Second, cfg.AIRequestTimeout)
	assert.Equal(t, "/tmp/realm.db", cfg.DBPath)
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"TICK_RATE":          "fast",
		"IDLE_INTERVAL":      "-3",
		"AI_REQUEST_TIMEOUT": "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
