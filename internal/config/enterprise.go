package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"shadow-it-generator/internal/identity"
	"shadow-it-generator/internal/model"
)

const dateLayout = "2006-01-02"

// Enterprise describes the simulated organisation. It is loaded once and read-only afterwards.
type Enterprise struct {
	Enterprise  EnterpriseInfo          `yaml:"enterprise"`
	Simulation  Simulation              `yaml:"simulation"`
	Network     Network                 `yaml:"network"`
	Profiles    []model.UserProfile     `yaml:"user_profiles" validate:"required,min=1,dive"`
	Departments []Department            `yaml:"departments" validate:"dive"`
	Traffic     Traffic                 `yaml:"traffic"`
	Locales     []identity.LocaleWeight `yaml:"locales" validate:"dive"`
	Browsers    []Browser               `yaml:"browsers" validate:"dive"`
	Junk        JunkTraffic             `yaml:"junk_traffic"`

	location *time.Location
}

type EnterpriseInfo struct {
	Name       string `yaml:"name" validate:"required"`
	Domain     string `yaml:"domain" validate:"required,fqdn"`
	TotalUsers int    `yaml:"total_users" validate:"gte=0"`
	Timezone   string `yaml:"timezone"`
}

type Simulation struct {
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

type Network struct {
	InternalSubnets   []string `yaml:"internal_subnets" validate:"required,min=1,dive,cidrv4"`
	VPNSubnets        []string `yaml:"vpn_subnets" validate:"dive,cidrv4"`
	EgressIPs         []string `yaml:"egress_ips"`
	DestinationRanges []string `yaml:"destination_ranges" validate:"dive,cidrv4"`
}

type Department struct {
	Name   string  `yaml:"name" validate:"required"`
	Weight float64 `yaml:"weight" validate:"gt=0"`
}

type WorkingHours struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type Traffic struct {
	WorkingHours     WorkingHours `yaml:"working_hours"`
	LunchHour        float64      `yaml:"lunch_hour" validate:"gte=0,lt=24"`
	PeakHours        []float64    `yaml:"peak_hours" validate:"dive,gte=0,lt=24"`
	WeekendActivity  float64      `yaml:"weekend_activity" validate:"gte=0,lte=1"`
	OffHoursActivity float64      `yaml:"off_hours_activity" validate:"gte=0,lte=1"`
	LunchActivity    float64      `yaml:"lunch_activity" validate:"gte=0,lte=1"`
	RampActivity     float64      `yaml:"ramp_activity" validate:"gte=0,lte=1"`
	NonWorkDays      []string     `yaml:"non_work_days"`
	VPNUsageRate     float64      `yaml:"vpn_usage_rate" validate:"gte=0,lte=1"`
	SessionsPerHour  float64      `yaml:"sessions_per_hour" validate:"gte=0"`
	SessionsStdDev   float64      `yaml:"sessions_std_dev" validate:"gte=0"`
}

type Browser struct {
	Name      string  `yaml:"name" validate:"required"`
	UserAgent string  `yaml:"user_agent" validate:"required"`
	Weight    float64 `yaml:"weight" validate:"gt=0"`
}

type Rate struct {
	Mean   float64 `yaml:"mean" validate:"gte=0"`
	StdDev float64 `yaml:"std_dev" validate:"gte=0"`
}

type JunkTraffic struct {
	Enabled               *bool              `yaml:"enabled"`
	RequestsPerUserPerDay Rate               `yaml:"requests_per_user_per_day"`
	Categories            map[string]float64 `yaml:"categories"`
}

// IsEnabled defaults to true when the key is absent.
func (j JunkTraffic) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// CategoryNames returns the configured categories in a stable order.
func (j JunkTraffic) CategoryNames() []string {
	names := make([]string, 0, len(j.Categories))
	for name := range j.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultDepartments = []Department{
	{Name: "Engineering", Weight: 0.25},
	{Name: "Sales", Weight: 0.15},
	{Name: "Marketing", Weight: 0.10},
	{Name: "Finance", Weight: 0.10},
	{Name: "HR", Weight: 0.05},
	{Name: "IT", Weight: 0.10},
	{Name: "Operations", Weight: 0.15},
	{Name: "Legal", Weight: 0.05},
	{Name: "Support", Weight: 0.05},
}

var defaultBrowsers = []Browser{
	{Name: "Chrome", Weight: 0.45, UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
	{Name: "Edge", Weight: 0.25, UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"},
	{Name: "Safari", Weight: 0.15, UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"},
	{Name: "Firefox", Weight: 0.15, UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"},
}

var defaultJunkCategories = map[string]float64{
	"news":      0.25,
	"reference": 0.20,
	"shopping":  0.15,
	"blogs":     0.15,
	"forums":    0.10,
	"misc":      0.15,
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// LoadEnterprise reads, defaults and validates an enterprise YAML file.
func LoadEnterprise(path string) (*Enterprise, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read enterprise config: %w", err)
	}
	ent, err := ParseEnterprise(data)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Source = path
		}
		return nil, err
	}
	return ent, nil
}

// ParseEnterprise decodes YAML, rejecting unknown keys.
func ParseEnterprise(data []byte) (*Enterprise, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var ent Enterprise
	if err := dec.Decode(&ent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ent.ApplyDefaults()
	if err := ent.Validate(); err != nil {
		return nil, err
	}
	return &ent, nil
}

// ApplyDefaults fills every optional field left at its zero value.
func (e *Enterprise) ApplyDefaults() {
	if e.Enterprise.Timezone == "" {
		e.Enterprise.Timezone = "UTC"
	}
	if e.Enterprise.TotalUsers == 0 {
		e.Enterprise.TotalUsers = 100
	}

	t := &e.Traffic
	if t.WorkingHours.Start == "" {
		t.WorkingHours.Start = "08:00"
	}
	if t.WorkingHours.End == "" {
		t.WorkingHours.End = "18:00"
	}
	if t.LunchHour == 0 {
		t.LunchHour = 12
	}
	if len(t.PeakHours) == 0 {
		t.PeakHours = []float64{10, 15}
	}
	if t.WeekendActivity == 0 {
		t.WeekendActivity = 0.1
	}
	if t.OffHoursActivity == 0 {
		t.OffHoursActivity = 0.05
	}
	if t.LunchActivity == 0 {
		t.LunchActivity = 0.4
	}
	if t.RampActivity == 0 {
		t.RampActivity = 0.3
	}
	if len(t.NonWorkDays) == 0 {
		t.NonWorkDays = []string{"saturday", "sunday"}
	}
	if t.VPNUsageRate == 0 {
		t.VPNUsageRate = 0.1
	}
	if t.SessionsPerHour == 0 {
		t.SessionsPerHour = 1.0
	}
	if t.SessionsStdDev == 0 {
		t.SessionsStdDev = 0.5
	}

	for i := range e.Profiles {
		p := &e.Profiles[i]
		if p.DataVolumeMultiplier == 0 {
			p.DataVolumeMultiplier = 1.0
		}
		if p.SessionsPerHour == 0 {
			p.SessionsPerHour = t.SessionsPerHour
		}
		if p.SessionsStdDev == 0 {
			p.SessionsStdDev = t.SessionsStdDev
		}
	}

	if len(e.Departments) == 0 {
		e.Departments = append([]Department(nil), defaultDepartments...)
	}
	if len(e.Browsers) == 0 {
		e.Browsers = append([]Browser(nil), defaultBrowsers...)
	}
	if len(e.Locales) == 0 {
		e.Locales = append([]identity.LocaleWeight(nil), identity.DefaultLocales...)
	}

	if e.Junk.RequestsPerUserPerDay.Mean == 0 {
		e.Junk.RequestsPerUserPerDay = Rate{Mean: 200, StdDev: 50}
	}
	if len(e.Junk.Categories) == 0 {
		e.Junk.Categories = make(map[string]float64, len(defaultJunkCategories))
		for k, v := range defaultJunkCategories {
			e.Junk.Categories[k] = v
		}
	}

	for i, ip := range e.Network.EgressIPs {
		if !strings.Contains(ip, "/") {
			e.Network.EgressIPs[i] = ip + "/32"
		}
	}
	for i, d := range t.NonWorkDays {
		t.NonWorkDays[i] = strings.ToLower(strings.TrimSpace(d))
	}
}

// Validate checks tag rules and the cross-field invariants tags cannot express.
func (e *Enterprise) Validate() error {
	verr := &ValidationError{}
	ValidateStruct(verr, "", e)

	shares := make([]float64, len(e.Profiles))
	names := make(map[string]bool)
	for i, p := range e.Profiles {
		shares[i] = p.Percentage
		if names[p.Name] {
			verr.Add(fmt.Sprintf("user_profiles[%d].name", i), "duplicates profile %q", p.Name)
		}
		names[p.Name] = true
	}
	if len(shares) > 0 {
		if total, ok := SumsToOne(shares); !ok {
			verr.Add("user_profiles", "percentages sum to %.3f, want 1.0", total)
		}
	}

	start, errStart := ParseClock(e.Traffic.WorkingHours.Start)
	if errStart != nil {
		verr.Add("traffic.working_hours.start", "%v", errStart)
	}
	end, errEnd := ParseClock(e.Traffic.WorkingHours.End)
	if errEnd != nil {
		verr.Add("traffic.working_hours.end", "%v", errEnd)
	}
	if errStart == nil && errEnd == nil && end <= start {
		verr.Add("traffic.working_hours", "end %s must follow start %s", e.Traffic.WorkingHours.End, e.Traffic.WorkingHours.Start)
	}

	for i, day := range e.Traffic.NonWorkDays {
		if _, ok := weekdays[day]; !ok {
			verr.Add(fmt.Sprintf("traffic.non_work_days[%d]", i), "unknown weekday %q", day)
		}
	}

	for i, ip := range e.Network.EgressIPs {
		if p, err := netip.ParsePrefix(ip); err != nil || !p.Addr().Is4() {
			verr.Add(fmt.Sprintf("network.egress_ips[%d]", i), "must be an IPv4 address or CIDR")
		}
	}

	loc, err := time.LoadLocation(e.Enterprise.Timezone)
	if err != nil {
		verr.Add("enterprise.timezone", "unknown timezone %q", e.Enterprise.Timezone)
	} else {
		e.location = loc
	}

	if e.Junk.IsEnabled() {
		weights := make([]float64, 0, len(e.Junk.Categories))
		for _, name := range e.Junk.CategoryNames() {
			w := e.Junk.Categories[name]
			if w < 0 {
				verr.Add("junk_traffic.categories."+name, "must be >= 0")
			}
			weights = append(weights, w)
		}
		if total, ok := SumsToOne(weights); !ok {
			verr.Add("junk_traffic.categories", "weights sum to %.3f, want 1.0", total)
		}
	}

	if e.Simulation.StartDate != "" || e.Simulation.EndDate != "" {
		s, errS := time.Parse(dateLayout, e.Simulation.StartDate)
		if errS != nil {
			verr.Add("simulation.start_date", "must be YYYY-MM-DD")
		}
		en, errE := time.Parse(dateLayout, e.Simulation.EndDate)
		if errE != nil {
			verr.Add("simulation.end_date", "must be YYYY-MM-DD")
		}
		if errS == nil && errE == nil && en.Before(s) {
			verr.Add("simulation", "end_date precedes start_date")
		}
	}

	return verr.ErrOrNil()
}

// Location is the enterprise time zone. It is UTC until Validate succeeds.
func (e *Enterprise) Location() *time.Location {
	if e.location == nil {
		if loc, err := time.LoadLocation(e.Enterprise.Timezone); err == nil {
			e.location = loc
		} else {
			return time.UTC
		}
	}
	return e.location
}

// SimulationWindow resolves the configured dates to [start, end) in the enterprise zone.
// The end date is inclusive in the file and exclusive here.
func (e *Enterprise) SimulationWindow() (time.Time, time.Time, bool) {
	if e.Simulation.StartDate == "" || e.Simulation.EndDate == "" {
		return time.Time{}, time.Time{}, false
	}
	loc := e.Location()
	start, err := time.ParseInLocation(dateLayout, e.Simulation.StartDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.ParseInLocation(dateLayout, e.Simulation.EndDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end.AddDate(0, 0, 1), true
}

// NonWorkWeekdays returns the configured weekend days.
func (t Traffic) NonWorkWeekdays() map[time.Weekday]bool {
	days := make(map[time.Weekday]bool, len(t.NonWorkDays))
	for _, name := range t.NonWorkDays {
		if d, ok := weekdays[strings.ToLower(name)]; ok {
			days[d] = true
		}
	}
	return days
}

// ParseClock converts "HH:MM" into fractional hours.
func ParseClock(value string) (float64, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock %q must be HH:MM", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("clock %q has an invalid hour", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q has an invalid minute", value)
	}
	return float64(h) + float64(m)/60, nil
}

// ParseDate reads YYYY-MM-DD in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD: %w", value, err)
	}
	return t, nil
}
