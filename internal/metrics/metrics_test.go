package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEvent("leef", "allowed", "activity")
	m.ObserveEvent("leef", "allowed", "activity")
	m.ObserveEvent("cef", "blocked", "blocked")
	m.ObserveSession("sanctioned")
	m.ObserveReject("cef")
	m.SetActiveUsers(42)
	start := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	m.ObserveHour(start, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("leef", "allowed", "activity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("cef", "blocked", "blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("sanctioned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("cef")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.activeUsers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.simulatedHours))
	assert.Equal(t, float64(start.Unix()), testutil.ToFloat64(m.simulatedTime))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["shadowgen_events_total"])
	assert.True(t, names["shadowgen_hour_generation_duration_seconds"])
}

func TestUnregistered(t *testing.T) {
	m := New(nil)
	assert.NotPanics(t, func() { m.ObserveSession("blocked") })
}
