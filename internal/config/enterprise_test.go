package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalEnterprise = `
enterprise:
  name: Acme Corp
  domain: acme.com
  total_users: 100
  timezone: America/New_York
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

func TestParseEnterpriseDefaults(t *testing.T) {
	ent, err := ParseEnterprise([]byte(minimalEnterprise))
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", ent.Location().String())
	assert.Equal(t, "08:00", ent.Traffic.WorkingHours.Start)
	assert.Equal(t, "18:00", ent.Traffic.WorkingHours.End)
	assert.Equal(t, []float64{10, 15}, ent.Traffic.PeakHours)
	assert.Equal(t, 0.4, ent.Traffic.LunchActivity)
	assert.Equal(t, 0.3, ent.Traffic.RampActivity)
	assert.Equal(t, []string{"203.0.113.10/32"}, ent.Network.EgressIPs)
	assert.Len(t, ent.Departments, len(defaultDepartments))
	assert.Len(t, ent.Browsers, len(defaultBrowsers))
	assert.NotEmpty(t, ent.Locales)
	assert.True(t, ent.Junk.IsEnabled())
	assert.Equal(t, []string{"blogs", "forums", "misc", "news", "reference", "shopping"}, ent.Junk.CategoryNames())

	for _, p := range ent.Profiles {
		assert.Equal(t, 1.0, p.DataVolumeMultiplier, p.Name)
		assert.Equal(t, 1.0, p.SessionsPerHour, p.Name)
	}

	weekend := ent.Traffic.NonWorkWeekdays()
	assert.True(t, weekend[time.Saturday])
	assert.True(t, weekend[time.Sunday])
	assert.False(t, weekend[time.Monday])
}

func TestParseEnterpriseViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate string
		field  string
	}{
		{
			name: "profile shares",
			mutate: `
user_profiles:
  - {name: normal, percentage: 0.5}
  - {name: risky, percentage: 0.2}
`,
			field: "user_profiles",
		},
		{
			name: "duplicate profile",
			mutate: `
user_profiles:
  - {name: normal, percentage: 0.5}
  - {name: normal, percentage: 0.5}
`,
			field: "user_profiles[1].name",
		},
		{
			name: "working hours order",
			mutate: `
traffic:
  working_hours: {start: "18:00", end: "08:00"}
`,
			field: "traffic.working_hours",
		},
		{
			name: "bad weekday",
			mutate: `
traffic:
  non_work_days: [funday]
`,
			field: "traffic.non_work_days[0]",
		},
		{
			name: "junk weights",
			mutate: `
junk_traffic:
  categories: {news: 0.5, misc: 0.2}
`,
			field: "junk_traffic.categories",
		},
		{
			name: "simulation order",
			mutate: `
simulation: {start_date: 2024-02-10, end_date: 2024-02-01}
`,
			field: "simulation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := `
enterprise: {name: Acme, domain: acme.com, timezone: UTC}
network:
  internal_subnets: [10.0.0.0/16]
`
			if !strings.Contains(tt.mutate, "user_profiles:") {
				base += "user_profiles:\n  - {name: normal, percentage: 1.0}\n"
			}
			_, err := ParseEnterprise([]byte(base + tt.mutate))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.True(t, verr.Has(tt.field), "violations: %v", verr.Violations)
		})
	}
}

func TestParseEnterpriseFieldRules(t *testing.T) {
	doc := `
enterprise: {name: Acme, domain: "not a domain", timezone: Mars/Olympus}
network:
  internal_subnets: [10.0.0.0/33]
  egress_ips: ["2001:db8::1"]
user_profiles:
  - {name: normal, percentage: 1.0, shadow_it_likelihood: 1.5}
`
	_, err := ParseEnterprise([]byte(doc))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	for _, field := range []string{
		"enterprise.domain",
		"enterprise.timezone",
		"network.internal_subnets[0]",
		"network.egress_ips[0]",
		"user_profiles[0].shadow_it_likelihood",
	} {
		assert.True(t, verr.Has(field), "missing %s in %v", field, verr.Violations)
	}
}

func TestParseEnterpriseUnknownKey(t *testing.T) {
	_, err := ParseEnterprise([]byte(minimalEnterprise + "colour: blue\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadEnterpriseSetsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enterprise.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enterprise: {name: Acme, domain: acme.com}\nnetwork: {internal_subnets: [10.0.0.0/8]}\nuser_profiles: [{name: a, percentage: 0.5}]\n"), 0o644))

	_, err := LoadEnterprise(path)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, path, verr.Source)
	assert.Contains(t, err.Error(), path)

	_, err = LoadEnterprise(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSimulationWindow(t *testing.T) {
	ent, err := ParseEnterprise([]byte(minimalEnterprise + "simulation: {start_date: 2024-03-01, end_date: 2024-03-02}\n"))
	require.NoError(t, err)

	start, end, ok := ent.SimulationWindow()
	require.True(t, ok)
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, ent.Location(), start.Location())
	assert.Equal(t, 48*time.Hour, end.Sub(start))
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"08:00", 8, false},
		{"17:30", 17.5, false},
		{"24:00", 24, false},
		{"24:30", 0, true},
		{"8", 0, true},
		{"08:61", 0, true},
		{"xx:00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSumsToOne(t *testing.T) {
	_, ok := SumsToOne([]float64{0.7, 0.2, 0.1})
	assert.True(t, ok)
	_, ok = SumsToOne([]float64{0.7, 0.2, 0.095})
	assert.True(t, ok)
	total, ok := SumsToOne([]float64{0.7, 0.2})
	assert.False(t, ok)
	assert.InDelta(t, 0.9, total, 1e-9)
}
