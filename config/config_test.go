package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "REDIS_HOST", "KAFKA_BROKER", "CACHE_TTL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite:clinic.db", cfg.DatabaseURL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.KafkaBroker)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://clinic@db/clinic")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("CACHE_TTL", "30")
	t.Setenv("APP_VERSION", "1.2.0")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://clinic@db/clinic", cfg.DatabaseURL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "clinic-records@1.2.0", cfg.Sentry.Release)
}

func TestRedisAddr_KeepsExplicitPort(t *testing.T) {
	assert.Equal(t, "localhost:6380", redisAddr("localhost:6380"))
}
