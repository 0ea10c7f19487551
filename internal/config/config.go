package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string // kosong = ledger in-memory (demo)
	RedisAddr    string // kosong = tanpa cache
	KafkaBrokers []string
	ServiceName  string

	LogLevel  string
	LogFormat string

	TxTimeout     time.Duration
	PGLockTimeout time.Duration
	PGMaxConns    int32

	ProjectorGroup   string
	ProjectorWorkers int
}

func Load() Config {
	return Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8081"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		ServiceName:  getenv("SERVICE_NAME", "pos-api"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		TxTimeout:     getDuration("CHECKOUT_TX_TIMEOUT", 5*time.Second),
		PGLockTimeout: getDuration("PG_LOCK_TIMEOUT", 2*time.Second),
		PGMaxConns:    int32(getInt("PG_MAX_CONNS", 8)),

		ProjectorGroup:   getenv("PROJECTOR_GROUP", "pos-projector"),
		ProjectorWorkers: getInt("PROJECTOR_WORKERS", 4),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getInt falls back to def on empty or malformed values.
func getInt(k string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func getDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
