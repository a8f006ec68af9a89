package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the records service. Optional
// integrations (redis, kafka, elasticsearch, sentry) are disabled when
// their address is empty.
type Config struct {
	Port        string
	DatabaseURL string

	Redis struct {
		Addr     string
		Password string
	}
	KafkaBroker      string
	ElasticsearchURL string

	Sentry struct {
		DSN         string
		Environment string
		Release     string
	}

	Log struct {
		Level  string
		Format string
	}

	// StaticToken enables the development session verifier.
	StaticToken string
	CacheTTL    time.Duration
}

// Load reads a local .env file when present and then the process
// environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "sqlite:clinic.db")

	cfg.Redis.Addr = redisAddr(os.Getenv("REDIS_HOST"))
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.KafkaBroker = os.Getenv("KAFKA_BROKER")
	cfg.ElasticsearchURL = os.Getenv("ELASTICSEARCH_URL")

	cfg.Sentry.DSN = os.Getenv("SENTRY_DSN")
	cfg.Sentry.Environment = getEnv("APP_ENV", "development")
	cfg.Sentry.Release = "clinic-records@" + getEnv("APP_VERSION", "dev")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.StaticToken = os.Getenv("AUTH_STATIC_TOKEN")
	cfg.CacheTTL = parseDuration(getEnv("CACHE_TTL", "5m"), 5*time.Minute)
	return cfg
}

// redisAddr appends the default port when the host has none.
func redisAddr(host string) string {
	if host == "" {
		return ""
	}
	if !strings.Contains(host, ":") {
		return host + ":6379"
	}
	return host
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
