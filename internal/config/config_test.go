package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8081", cfg.TCPAddr())
	assert.Equal(t, "localhost:8086", cfg.StatusAddr())
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 2*time.Minute, cfg.PresenceTTL)
	assert.Equal(t, 8192, cfg.MaxFrameSize)
	assert.Equal(t, 10.0, cfg.RateLimit)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.False(t, cfg.PresenceEnabled())
	assert.True(t, cfg.StatusEnabled())
	assert.True(t, cfg.IsDevelopment())
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("TCP_HOST", "0.0.0.0")
	t.Setenv("TCP_PORT", "9000")
	t.Setenv("STATUS_PORT", "0")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("IDLE_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT", "2.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.TCPAddr())
	assert.False(t, cfg.StatusEnabled())
	assert.True(t, cfg.PresenceEnabled())
	assert.Equal(t, "cache:6379", cfg.RedisAddr())
	assert.Equal(t, 5*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	// no JWT secret needed without the status API
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_ParseErrors(t *testing.T) {
	tests := map[string]string{
		"TCP_PORT":     "eighty",
		"IDLE_TIMEOUT": "soon",
		"RATE_LIMIT":   "fast",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"bad port", func(c *Config) { c.TCPPort = 70000 }, "TCP_PORT"},
		{"same ports", func(c *Config) { c.StatusPort = c.TCPPort }, "STATUS_PORT must differ"},
		{"tiny frames", func(c *Config) { c.MaxFrameSize = 10 }, "MAX_FRAME_SIZE"},
		{"half bootstrap", func(c *Config) { c.BootstrapAdminLogin = "root" }, "BOOTSTRAP_ADMIN"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"presence outlived", func(c *Config) {
			c.RedisURL = "redis://cache:6379"
			c.IdleTimeout = 5 * time.Minute
		}, "IDLE_TIMEOUT must be shorter than PRESENCE_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testSecret)
			cfg, err := FromEnv()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}
