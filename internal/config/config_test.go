package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"LOCKOUT_THRESHOLD", "RESET_TOKEN_TTL", "RESET_TOKEN_BACKEND", "KAFKA_BROKERS", "JWT_ACCESS_TTL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
	assert.Equal(t, "postgres", cfg.ResetTokenBackend)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, cfg.JWT.Access.TTL)
	assert.NotEqual(t, cfg.JWT.Access.Audience, cfg.JWT.Refresh.Audience)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOCKOUT_THRESHOLD", "5")
	t.Setenv("RESET_TOKEN_TTL", "30m")
	t.Setenv("JWT_ACCESS_TTL", "120")
	t.Setenv("RESET_TOKEN_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("APP_ENV", "production")

	cfg := Load()
	assert.Equal(t, 5, cfg.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, 2*time.Minute, cfg.JWT.Access.TTL)
	assert.Equal(t, "redis", cfg.ResetTokenBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.IsProduction())
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("LOCKOUT_THRESHOLD", "three")
	t.Setenv("RESET_TOKEN_TTL", "soon")

	cfg := Load()
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
}
