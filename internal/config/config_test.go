package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 3, cfg.Engine.CountdownTicks)
	assert.Equal(t, time.Second, cfg.Timings().CountdownInterval)
	assert.Equal(t, 20*time.Second, cfg.PresenceConfig().ReconnectGrace)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("ROUND_TIMEOUT", "7s")
	t.Setenv("RECONNECT_GRACE", "45s")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.AppPort)
	assert.Equal(t, 7*time.Second, cfg.Timings().RoundTimeout)
	assert.Equal(t, 45*time.Second, cfg.PresenceConfig().ReconnectGrace)
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REVEAL_DELAY", "soon")
	_, err := Parse()
	assert.Error(t, err)
}

func TestParseRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LOG_LEVEL", "info")
	_, err := Parse()
	assert.Error(t, err)

	// в отладке подставляется локальный секрет
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
}
