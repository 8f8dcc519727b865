// Package activity models how busy the enterprise is at a given instant.
package activity

import (
	"fmt"
	"math"
	"time"

	"shadow-it-generator/internal/config"
)

const (
	rampHours      = 1.0
	lunchHalfWidth = 0.5
	peakWindow     = 1.0
	// exp(-d²/8) is a gaussian with a two hour sigma
	peakSpread = 8.0
)

// Model is immutable and safe for concurrent use.
type Model struct {
	loc      *time.Location
	start    float64
	end      float64
	lunch    float64
	peaks    []float64
	weekend  float64
	offHours float64
	lunchAct float64
	ramp     float64
	nonWork  map[time.Weekday]bool
}

func New(traffic config.Traffic, loc *time.Location) (*Model, error) {
	start, err := config.ParseClock(traffic.WorkingHours.Start)
	if err != nil {
		return nil, fmt.Errorf("working hours: %w", err)
	}
	end, err := config.ParseClock(traffic.WorkingHours.End)
	if err != nil {
		return nil, fmt.Errorf("working hours: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("working hours end %s must follow start %s", traffic.WorkingHours.End, traffic.WorkingHours.Start)
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Model{
		loc:      loc,
		start:    start,
		end:      end,
		lunch:    traffic.LunchHour,
		peaks:    append([]float64(nil), traffic.PeakHours...),
		weekend:  traffic.WeekendActivity,
		offHours: traffic.OffHoursActivity,
		lunchAct: traffic.LunchActivity,
		ramp:     traffic.RampActivity,
		nonWork:  traffic.NonWorkWeekdays(),
	}, nil
}

func (m *Model) Location() *time.Location {
	return m.loc
}

// Intensity returns the relative activity level in [0,1] at t.
func (m *Model) Intensity(t time.Time) float64 {
	local := t.In(m.loc)
	if m.nonWork[local.Weekday()] {
		return m.weekend
	}

	h := clockHours(local)
	if h < m.start || h >= m.end {
		return m.offHoursLevel(h)
	}

	if math.Abs(h-m.lunch) <= lunchHalfWidth {
		return m.lunchAct
	}

	if len(m.peaks) == 0 {
		return 1
	}
	d := m.peakDistance(h)
	v := math.Exp(-d * d / peakSpread)
	return clamp(v, m.offHours, 1)
}

func (m *Model) offHoursLevel(h float64) float64 {
	switch {
	case h >= m.start-rampHours && h < m.start:
		// rising towards the start of the day
		return m.offHours + (m.ramp-m.offHours)*(h-(m.start-rampHours))/rampHours
	case h >= m.end && h < m.end+rampHours:
		return m.ramp - (m.ramp-m.offHours)*(h-m.end)/rampHours
	default:
		return m.offHours
	}
}

func (m *Model) peakDistance(h float64) float64 {
	best := math.Inf(1)
	for _, p := range m.peaks {
		if d := math.Abs(h - p); d < best {
			best = d
		}
	}
	return best
}

// IsWorkDay reports whether t falls on a configured working weekday.
func (m *Model) IsWorkDay(t time.Time) bool {
	return !m.nonWork[t.In(m.loc).Weekday()]
}

// InWorkingHours is true on a work day between the configured start and end.
func (m *Model) InWorkingHours(t time.Time) bool {
	local := t.In(m.loc)
	if m.nonWork[local.Weekday()] {
		return false
	}
	h := clockHours(local)
	return h >= m.start && h < m.end
}

// NearPeak is true within an hour of a configured peak on a work day.
func (m *Model) NearPeak(t time.Time) bool {
	if !m.InWorkingHours(t) || len(m.peaks) == 0 {
		return false
	}
	return m.peakDistance(clockHours(t.In(m.loc))) <= peakWindow
}

// DayStart truncates t to local midnight.
func (m *Model) DayStart(t time.Time) time.Time {
	local := t.In(m.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.loc)
}

func clockHours(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
