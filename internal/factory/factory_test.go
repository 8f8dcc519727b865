package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadow-it-generator/internal/config"
)

const enterpriseYAML = `
enterprise:
  name: Acme Corp
  domain: acme.com
  total_users: 20
  timezone: UTC
simulation:
  start_date: "2024-03-04"
  end_date: "2024-03-05"
network:
  internal_subnets: [10.0.0.0/16]
  egress_ips: [203.0.113.10]
user_profiles:
  - name: normal
    percentage: 0.7
    work_hours_adherence: 0.9
    shadow_it_likelihood: 0.1
    blocked_attempt_rate: 0.05
  - name: power_user
    percentage: 0.2
    work_hours_adherence: 0.7
    shadow_it_likelihood: 0.4
    blocked_attempt_rate: 0.1
  - name: risky
    percentage: 0.1
    work_hours_adherence: 0.5
    shadow_it_likelihood: 0.8
    blocked_attempt_rate: 0.3
`

func writeEnterprise(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enterprise.yaml")
	require.NoError(t, os.WriteFile(path, []byte(enterpriseYAML), 0o644))
	return path
}

func TestResolveWindow(t *testing.T) {
	ent, err := config.ParseEnterprise([]byte(enterpriseYAML))
	require.NoError(t, err)
	noDates, err := config.ParseEnterprise([]byte(enterpriseYAML))
	require.NoError(t, err)
	noDates.Simulation = config.Simulation{}

	now := time.Date(2024, time.June, 10, 15, 30, 0, 0, time.UTC)
	day := func(d int, m time.Month) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		gen       config.GeneratorConfig
		ent       *config.Enterprise
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{"enterprise file", config.GeneratorConfig{Days: 1}, ent, day(4, time.March), day(6, time.March), false},
		{"start and days", config.GeneratorConfig{StartDate: "2024-05-01", Days: 3}, ent, day(1, time.May), day(4, time.May), false},
		{"start and end", config.GeneratorConfig{StartDate: "2024-05-01", EndDate: "2024-05-01"}, ent, day(1, time.May), day(2, time.May), false},
		{"end overrides file", config.GeneratorConfig{EndDate: "2024-03-04"}, ent, day(4, time.March), day(5, time.March), false},
		{"no dates", config.GeneratorConfig{Days: 2}, noDates, day(8, time.June), day(10, time.June), false},
		{"end before start", config.GeneratorConfig{StartDate: "2024-05-02", EndDate: "2024-05-01"}, ent, time.Time{}, time.Time{}, true},
		{"bad date", config.GeneratorConfig{StartDate: "05/01/2024"}, ent, time.Time{}, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ResolveWindow(tt.gen, tt.ent, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(start), "start %s", start)
			assert.True(t, tt.wantEnd.Equal(end), "end %s", end)
		})
	}
}

func TestLoadInputsDefaults(t *testing.T) {
	inputs, err := LoadInputs(config.GeneratorConfig{EnterpriseFile: writeEnterprise(t)})
	require.NoError(t, err)
	assert.Equal(t, "acme.com", inputs.Enterprise.Enterprise.Domain)
	assert.Greater(t, inputs.Services.Len(), 0)
	assert.NotEmpty(t, inputs.Junk.Categories)
}

func TestLoadInputsMissingFile(t *testing.T) {
	_, err := LoadInputs(config.GeneratorConfig{EnterpriseFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func runtimeConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "development",
		Logging:     config.LoggingConfig{Level: "error", Format: "console"},
		Generator: config.GeneratorConfig{
			EnterpriseFile: writeEnterprise(t),
			Seed:           1,
			StartDate:      "2024-03-04",
			EndDate:        "2024-03-04",
			Workers:        2,
		},
		Output: config.OutputConfig{
			Directory: t.TempDir(),
			Formats:   []string{"leef", "cef"},
			Rotation:  "daily",
			Compress:  true,
		},
		Elasticsearch: config.ElasticsearchConfig{Format: "leef"},
		Clickhouse:    config.ClickhouseConfig{Format: "leef"},
		Scylla:        config.ScyllaConfig{Format: "leef"},
	}
}

func TestNewAndRun(t *testing.T) {
	cfg := runtimeConfig(t)
	f, err := New(cfg)
	require.NoError(t, err)
	assert.Empty(t, f.HealthCheck(context.Background()))

	summary, err := f.Engine().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 24, summary.Hours)
	assert.Equal(t, 20, summary.Users)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	for _, format := range cfg.Output.Formats {
		_, err := os.Stat(filepath.Join(cfg.Output.Directory, format, format+"_20240304.log.gz"))
		assert.NoError(t, err, format)
	}
	assert.NotEmpty(t, f.FinishedFiles())
}

func TestNewRejectsInvalidRuntime(t *testing.T) {
	cfg := runtimeConfig(t)
	cfg.Output.Formats = []string{"syslog"}
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
