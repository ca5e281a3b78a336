package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athebyme/gomarket-platform/itemsync-service/internal/utils"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Publisher.Topic = "unified-items"
	cfg.Publisher.MaxRetries = 2
	cfg.Publisher.BaseDelayMs = 1000
	cfg.Publisher.BackoffMultiplier = 2.0
	cfg.Publisher.BatchSize = 100
	cfg.CircuitBreaker.FailureThreshold = 5
	cfg.CircuitBreaker.DurationOfBreakSeconds = 30
	cfg.CircuitBreaker.SamplingDurationSeconds = 60
	cfg.CircuitBreaker.MinimumThroughput = 3
	cfg.Fetcher.LatestLimit = 100
	cfg.Mapping.BarcodeCutoverDate = "2020-01-01"
	cfg.Storage.Driver = DriverPostgres
	cfg.Queue.Driver = DriverKafka
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Bounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"пустая тема", func(c *Config) { c.Publisher.Topic = "" }},
		{"отрицательные повторы", func(c *Config) { c.Publisher.MaxRetries = -1 }},
		{"слишком много повторов", func(c *Config) { c.Publisher.MaxRetries = 11 }},
		{"нулевая базовая задержка", func(c *Config) { c.Publisher.BaseDelayMs = 0 }},
		{"множитель не больше единицы", func(c *Config) { c.Publisher.BackoffMultiplier = 1.0 }},
		{"нулевой размер пакета", func(c *Config) { c.Publisher.BatchSize = 0 }},
		{"слишком большой пакет", func(c *Config) { c.Publisher.BatchSize = 501 }},
		{"нулевой порог отказов", func(c *Config) { c.CircuitBreaker.FailureThreshold = 0 }},
		{"порог отказов выше границы", func(c *Config) { c.CircuitBreaker.FailureThreshold = 21 }},
		{"нулевая пауза", func(c *Config) { c.CircuitBreaker.DurationOfBreakSeconds = 0 }},
		{"пауза выше границы", func(c *Config) { c.CircuitBreaker.DurationOfBreakSeconds = 301 }},
		{"нулевое окно выборки", func(c *Config) { c.CircuitBreaker.SamplingDurationSeconds = 0 }},
		{"окно выборки выше границы", func(c *Config) { c.CircuitBreaker.SamplingDurationSeconds = 601 }},
		{"нулевая пропускная способность", func(c *Config) { c.CircuitBreaker.MinimumThroughput = 0 }},
		{"пропускная способность выше границы", func(c *Config) { c.CircuitBreaker.MinimumThroughput = 101 }},
		{"нулевой лимит выборки", func(c *Config) { c.Fetcher.LatestLimit = 0 }},
		{"кривая дата переключения", func(c *Config) { c.Mapping.BarcodeCutoverDate = "01.01.2020" }},
		{"неизвестный драйвер хранилища", func(c *Config) { c.Storage.Driver = "cassandra" }},
		{"неизвестный драйвер очереди", func(c *Config) { c.Queue.Driver = "rabbit" }},
		{"аутентификация без секрета", func(c *Config) {
			c.Security.AuthEnabled = true
			c.Security.JWTSecret = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, utils.ErrConfigInvalid))
		})
	}
}

func TestDerivedDurations(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 30*time.Second, cfg.DurationOfBreak())
	assert.Equal(t, 60*time.Second, cfg.SamplingDuration())
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), cfg.BarcodeCutover())
}
