package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SEED", "1234")
	t.Setenv("OUTPUT_FORMATS", "cef")
	t.Setenv("OUTPUT_ROTATION", "hourly")
	t.Setenv("WORKERS", "8")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STATUS_READ_TIMEOUT", "3s")

	cfg := LoadConfig()
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, uint64(1234), cfg.Generator.Seed)
	assert.Equal(t, []string{"cef"}, cfg.Output.Formats)
	assert.Equal(t, "hourly", cfg.Output.Rotation)
	assert.Equal(t, 8, cfg.Generator.Workers)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3*time.Second, cfg.Status.ReadTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown format", func(c *Config) { c.Output.Formats = []string{"syslog"} }, "output.formats"},
		{"no formats", func(c *Config) { c.Output.Formats = nil }, "output.formats"},
		{"rotation", func(c *Config) { c.Output.Rotation = "weekly" }, "output.rotation"},
		{"workers", func(c *Config) { c.Generator.Workers = 0 }, "generator.workers"},
		{"structured format", func(c *Config) { c.Clickhouse.Format = "json" }, "clickhouse.format"},
		{"s3 bucket", func(c *Config) { c.S3.Enabled = true; c.S3.Bucket = "" }, "s3.bucket"},
		{"scylla buckets", func(c *Config) { c.Scylla.Enabled = true; c.Scylla.UserBuckets = 0 }, "scylla.user_buckets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.True(t, verr.Has(tt.field), "violations: %v", verr.Violations)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	verr := &ValidationError{Source: "enterprise.yaml"}
	assert.NoError(t, verr.ErrOrNil())

	verr.Add("a.b", "is required")
	verr.Add("c[0]", "must be >= %d", 1)
	assert.Equal(t, "invalid configuration (enterprise.yaml): a.b is required; c[0] must be >= 1", verr.Error())
	assert.True(t, verr.Has("a"))
	assert.True(t, verr.Has("c"))
	assert.False(t, verr.Has("b"))
}
