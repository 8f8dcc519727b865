package model

import (
	"net/netip"
	"strings"
	"time"
)

// -------------------- PROFILE MODEL --------------------

// Stance selects how a profile treats sanctioned versus shadow services.
type Stance string

const (
	StanceConservative Stance = "conservative"
	StanceBalanced     Stance = "balanced"
	StancePermissive   Stance = "permissive"
)

// UserProfile is loaded from configuration and shared read-only by every user it is assigned to.
type UserProfile struct {
	Name                 string  `yaml:"name" json:"name" validate:"required"`
	Percentage           float64 `yaml:"percentage" json:"percentage" validate:"gte=0,lte=1"`
	WorkHoursAdherence   float64 `yaml:"work_hours_adherence" json:"work_hours_adherence" validate:"gte=0,lte=1"`
	ShadowITLikelihood   float64 `yaml:"shadow_it_likelihood" json:"shadow_it_likelihood" validate:"gte=0,lte=1"`
	DataVolumeMultiplier float64 `yaml:"data_volume_multiplier" json:"data_volume_multiplier" validate:"gte=0"`
	BlockedAttemptRate   float64 `yaml:"blocked_attempt_rate" json:"blocked_attempt_rate" validate:"gte=0,lte=1"`
	Stance               Stance  `yaml:"stance" json:"stance" validate:"omitempty,oneof=conservative balanced permissive"`
	SessionsPerHour      float64 `yaml:"sessions_per_hour" json:"sessions_per_hour" validate:"gte=0"`
	SessionsStdDev       float64 `yaml:"sessions_std_dev" json:"sessions_std_dev" validate:"gte=0"`
}

// EffectiveStance falls back to a stance derived from the profile name.
func (p *UserProfile) EffectiveStance() Stance {
	if p.Stance != "" {
		return p.Stance
	}
	name := strings.ToLower(p.Name)
	switch {
	case strings.Contains(name, "risk"):
		return StancePermissive
	case strings.Contains(name, "power"):
		return StanceBalanced
	default:
		return StanceConservative
	}
}

// -------------------- SERVICE MODEL --------------------

type ServiceStatus string

const (
	StatusSanctioned   ServiceStatus = "sanctioned"
	StatusUnsanctioned ServiceStatus = "unsanctioned"
	StatusBlocked      ServiceStatus = "blocked"
)

type EndpointKind string

const (
	KindPage     EndpointKind = "page"
	KindAPI      EndpointKind = "api"
	KindUpload   EndpointKind = "upload"
	KindDownload EndpointKind = "download"
)

type Endpoint struct {
	Path   string       `yaml:"path" json:"path" validate:"required,startswith=/"`
	Method string       `yaml:"method" json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Weight float64      `yaml:"weight" json:"weight" validate:"gte=0,lte=1"`
	Kind   EndpointKind `yaml:"kind" json:"kind" validate:"omitempty,oneof=page api upload download"`
}

// EffectiveKind derives the traffic shape from the path and method when Kind is unset.
func (e Endpoint) EffectiveKind() EndpointKind {
	if e.Kind != "" {
		return e.Kind
	}
	path := strings.ToLower(e.Path)
	switch {
	case strings.Contains(path, "download") || strings.Contains(path, "export"):
		return KindDownload
	case (e.Method == "POST" || e.Method == "PUT") && strings.Contains(path, "upload"):
		return KindUpload
	case strings.Contains(path, "/api") || strings.Contains(path, "graphql") || strings.Contains(path, "/v1"):
		return KindAPI
	default:
		return KindPage
	}
}

// TrafficStats parameterises per-request transfer sizes and request rate.
type TrafficStats struct {
	BytesMean       float64 `yaml:"bytes_mean" json:"bytes_mean" validate:"gte=0"`
	BytesStdDev     float64 `yaml:"bytes_std_dev" json:"bytes_std_dev" validate:"gte=0"`
	RequestsPerHour float64 `yaml:"requests_per_hour" json:"requests_per_hour" validate:"gte=0"`
	RequestsStdDev  float64 `yaml:"requests_std_dev" json:"requests_std_dev" validate:"gte=0"`
}

// CloudService is one catalog entry. Catalog entries are never copied per user.
type CloudService struct {
	Name              string        `yaml:"name" json:"name" validate:"required"`
	Status            ServiceStatus `yaml:"status" json:"status" validate:"required,oneof=sanctioned unsanctioned blocked"`
	Category          string        `yaml:"category" json:"category" validate:"required"`
	RiskLevel         string        `yaml:"risk_level" json:"risk_level" validate:"required,oneof=low medium high critical"`
	BaseAdoptionRate  float64       `yaml:"base_adoption_rate" json:"base_adoption_rate" validate:"gte=0,lte=1"`
	BlockRate         float64       `yaml:"block_rate" json:"block_rate" validate:"gte=0,lte=1"`
	Domains           []string      `yaml:"domains" json:"domains" validate:"required,min=1,dive,hostname_rfc1123"`
	Traffic           TrafficStats  `yaml:"traffic" json:"traffic"`
	Endpoints         []Endpoint    `yaml:"endpoints" json:"endpoints" validate:"required,min=1,dive"`
	DestinationRanges []string      `yaml:"destination_ranges" json:"destination_ranges" validate:"omitempty,dive,cidrv4"`
}

// IsHighRisk reports whether block messages should use security language.
func (s *CloudService) IsHighRisk() bool {
	return s.RiskLevel == "high" || s.RiskLevel == "critical"
}

// -------------------- USER MODEL --------------------

// Adoption is one adopted service and the probability it was adopted with.
type Adoption struct {
	Service *CloudService
	Weight  float64
}

// DailyCounters are reset when the simulated clock crosses a local day boundary.
type DailyCounters struct {
	Day      time.Time
	Requests int
	Sessions int
}

type User struct {
	ID             string
	Email          string
	Username       string
	FullName       string
	Locale         string
	Department     string
	Profile        *UserProfile
	SourceIP       netip.Addr
	PreferredAgent string
	Adoption       []Adoption
	Counters       DailyCounters
}

// AdoptedService returns the adoption entry for a service name.
func (u *User) AdoptedService(name string) (Adoption, bool) {
	for _, a := range u.Adoption {
		if a.Service.Name == name {
			return a, true
		}
	}
	return Adoption{}, false
}

// ResetCounters zeroes the daily counters when day differs from the tracked day.
func (u *User) ResetCounters(day time.Time) bool {
	if u.Counters.Day.Equal(day) {
		return false
	}
	u.Counters = DailyCounters{Day: day}
	return true
}

// -------------------- SESSION MODEL --------------------

type Session struct {
	ID            uint64
	User          *User
	Service       *CloudService
	Start         time.Time
	End           time.Time
	Mobile        bool
	UserAgent     string
	SourceIP      netip.Addr
	DestinationIP netip.Addr
	Host          string
	Blocked       bool
	BytesSent     int64
	BytesReceived int64
	Requests      int
}

func (s *Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Window is a half-open generation interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration {
	if !w.End.After(w.Start) {
		return 0
	}
	return w.End.Sub(w.Start)
}

func (w Window) Hours() float64 {
	return w.Duration().Hours()
}

// -------------------- REQUEST EVENT MODEL --------------------

type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeBlocked Outcome = "blocked"
)

type RequestKind string

const (
	RequestAuth     RequestKind = "auth"
	RequestActivity RequestKind = "activity"
	RequestBlocked  RequestKind = "blocked"
	RequestNoise    RequestKind = "noise"
)

// RequestEvent is the unit handed to encoders. Session traffic and noise share this shape.
type RequestEvent struct {
	Timestamp       time.Time
	Kind            RequestKind
	Method          string
	Host            string
	Path            string
	Referrer        string
	Status          int
	BytesSent       int64
	BytesReceived   int64
	Duration        time.Duration
	Outcome         Outcome
	BlockReason     string
	SourceIP        netip.Addr
	UserAgent       string
	DestinationIP   netip.Addr
	SourcePort      int
	DestinationPort int
	NoiseCategory   string
}

// IsNoise reports whether the event is background traffic.
func (e *RequestEvent) IsNoise() bool {
	return e.NoiseCategory != ""
}

// -------------------- JUNK SITE CATALOG --------------------

type JunkSite struct {
	Domain     string  `yaml:"domain" json:"domain" validate:"required,hostname_rfc1123"`
	Popularity float64 `yaml:"popularity" json:"popularity" validate:"gt=0"`
}

type JunkCategory struct {
	Name        string     `yaml:"name" json:"name" validate:"required"`
	AllowedRate float64    `yaml:"allowed_rate" json:"allowed_rate" validate:"gte=0,lte=1"`
	BlockedRate float64    `yaml:"blocked_rate" json:"blocked_rate" validate:"gte=0,lte=1"`
	Sites       []JunkSite `yaml:"sites" json:"sites" validate:"dive"`
}

// JunkCatalog keeps categories in file order so lookups and iteration are deterministic.
type JunkCatalog struct {
	Categories []JunkCategory `yaml:"categories" json:"categories" validate:"required,min=1,dive"`
}

func (c *JunkCatalog) Category(name string) (*JunkCategory, bool) {
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			return &c.Categories[i], true
		}
	}
	return nil, false
}
