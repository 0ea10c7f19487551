package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "POSTGRES_DSN", "REDIS_ADDR", "KAFKA_BROKERS", "CHECKOUT_TX_TIMEOUT", "PG_MAX_CONNS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, int32(8), cfg.PGMaxConns)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("CHECKOUT_TX_TIMEOUT", "750ms")
	t.Setenv("PG_LOCK_TIMEOUT", "bogus")
	t.Setenv("PROJECTOR_WORKERS", "-3")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 750*time.Millisecond, cfg.TxTimeout)
	assert.Equal(t, 2*time.Second, cfg.PGLockTimeout)
	assert.Equal(t, 4, cfg.ProjectorWorkers)
}
