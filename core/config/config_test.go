package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/shmbroker/core/config"
)

type testBrokerConfig struct {
	Addr      string        `env:"SHMBROKER_TEST_ADDR" envDefault:":50051"`
	QueueSize int           `env:"SHMBROKER_TEST_QUEUE_SIZE" envDefault:"2"`
	Wait      time.Duration `env:"SHMBROKER_TEST_WAIT" envDefault:"1s"`
}

type testRequiredConfig struct {
	Secret string `env:"SHMBROKER_TEST_REQUIRED,required"`
}

// These tests mutate process environment and the package cache, so they do not run in parallel.

func TestLoad(t *testing.T) {
	t.Run("parses defaults and overrides", func(t *testing.T) {
		config.Reset()
		t.Setenv("SHMBROKER_TEST_QUEUE_SIZE", "8")

		var cfg testBrokerConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":50051", cfg.Addr)
		assert.Equal(t, 8, cfg.QueueSize)
		assert.Equal(t, time.Second, cfg.Wait)
	})

	t.Run("caches per type", func(t *testing.T) {
		config.Reset()
		t.Setenv("SHMBROKER_TEST_ADDR", ":1")

		var first testBrokerConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("SHMBROKER_TEST_ADDR", ":2")
		var second testBrokerConfig
		require.NoError(t, config.Load(&second))

		assert.Equal(t, ":1", second.Addr)
	})

	t.Run("reports missing required values", func(t *testing.T) {
		config.Reset()

		var cfg testRequiredConfig
		assert.Error(t, config.Load(&cfg))
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})

	t.Run("rejects nil target", func(t *testing.T) {
		assert.Error(t, config.Load[testBrokerConfig](nil))
	})
}
