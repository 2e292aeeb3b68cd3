package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8081", c.HTTPAddr)
	assert.Equal(t, "postgres", c.Store)
	assert.Equal(t, []string{"kafka:9092"}, c.KafkaBrokers)
	assert.Equal(t, 5*time.Second, c.DBTimeout)
	assert.Equal(t, 30*time.Minute, c.ReservationTimeout)
	assert.Equal(t, 30*time.Second, c.SweepInterval)
	assert.Equal(t, 100, c.SweepBatch)
	assert.Equal(t, 4, c.ConsumerWorkers)
	assert.Equal(t, int32(8), c.DBMaxConns)
	assert.Equal(t, "5", c.ReferralPercent)
	assert.Equal(t, "shop-fulfillment", c.ServiceName)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("RESERVATION_TIMEOUT", "10m")
	t.Setenv("SWEEP_BATCH", "25")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Store)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, 10*time.Minute, c.ReservationTimeout)
	assert.Equal(t, 25, c.SweepBatch)
}

func TestLoad_CollectsErrors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE", "mysql")
	t.Setenv("DB_TIMEOUT", "soon")
	t.Setenv("CONSUMER_WORKERS", "0")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET is required", "STORE must be", "DB_TIMEOUT", "CONSUMER_WORKERS"} {
		assert.Contains(t, err.Error(), want)
	}
}
