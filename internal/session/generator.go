// Package session turns a user's adopted services into sessions and each
// session into a stream of request events.
package session

import (
	"fmt"
	"math"
	"sort"
	"time"

	"shadow-it-generator/internal/adoption"
	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/netaddr"
	"shadow-it-generator/internal/random"
)

const (
	// MaxRequestsPerSession bounds very long, very chatty sessions.
	MaxRequestsPerSession = 2000

	authProbability     = 0.8
	referrerProbability = 0.4
	defaultRequestRate  = 30.0
	httpsPort           = 443
	minHeavyBytes       = 1024
)

type Options struct {
	VPNUsageRate float64
	MobileAgents []string
}

// Generator is read-only after construction; every call takes the caller's Source.
type Generator struct {
	alloc        *netaddr.Allocator
	vpnRate      float64
	mobileAgents []string
	endpoints    map[string]*random.Weighted[model.Endpoint]
}

func NewGenerator(alloc *netaddr.Allocator, services []*model.CloudService, opts Options) (*Generator, error) {
	g := &Generator{
		alloc:        alloc,
		vpnRate:      opts.VPNUsageRate,
		mobileAgents: opts.MobileAgents,
		endpoints:    make(map[string]*random.Weighted[model.Endpoint], len(services)),
	}
	if len(g.mobileAgents) == 0 {
		g.mobileAgents = DefaultMobileAgents
	}

	for _, svc := range services {
		weights := make([]float64, len(svc.Endpoints))
		for i, ep := range svc.Endpoints {
			weights[i] = ep.Weight
		}
		sampler, err := random.NewWeighted(svc.Endpoints, weights)
		if err != nil {
			return nil, fmt.Errorf("service %s endpoints: %w", svc.Name, err)
		}
		g.endpoints[svc.Name] = sampler
	}
	return g, nil
}

// GenerateSessions draws the sessions a user opens during window. The result
// is ordered by start time.
func (g *Generator) GenerateSessions(src *random.Source, user *model.User, candidates []model.Adoption, window model.Window, intensity float64) []*model.Session {
	if len(candidates) == 0 || window.Duration() < time.Second {
		return nil
	}

	profile := user.Profile
	hours := window.Hours()
	stance := profile.EffectiveStance()

	var sessions []*model.Session
	for _, cand := range candidates {
		svc := cand.Service
		if _, ok := g.endpoints[svc.Name]; !ok {
			continue
		}

		n := sessionCount(src, profile, cand.Weight, hours, intensity)
		if svc.Status == model.StatusBlocked {
			// one rare attempt, independent of how often the user would otherwise visit
			n = 0
			if src.Bool(profile.BlockedAttemptRate * math.Min(1, intensity*hours)) {
				n = 1
			}
		}

		for i := 0; i < n; i++ {
			sessions = append(sessions, g.newSession(src, user, svc, stance, window))
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Start.Before(sessions[j].Start)
	})
	user.Counters.Sessions += len(sessions)
	return sessions
}

func sessionCount(src *random.Source, profile *model.UserProfile, weight, hours, intensity float64) int {
	mu := profile.SessionsPerHour * intensity * weight * hours
	sigma := profile.SessionsStdDev * math.Sqrt(hours)
	return int(math.Floor(math.Max(0, src.Normal(mu, sigma))))
}

func (g *Generator) newSession(src *random.Source, user *model.User, svc *model.CloudService, stance model.Stance, window model.Window) *model.Session {
	start := window.Start.Add(src.DurationBetween(0, window.Duration()))
	blocked := adoption.IsBlocked(src, svc, user.Profile)

	var length time.Duration
	if blocked {
		length = src.DurationBetween(30*time.Second, 120*time.Second+1)
	} else {
		r := durationFor(svc.Category, stance)
		spread := (r.max - r.min).Minutes()
		minutes := src.Gamma(2, spread/4) + r.min.Minutes()
		length = clampDuration(time.Duration(minutes*float64(time.Minute)), r.min, r.max)
	}

	s := &model.Session{
		User:      user,
		Service:   svc,
		Start:     start,
		End:       start.Add(length),
		Blocked:   blocked,
		UserAgent: user.PreferredAgent,
		SourceIP:  user.SourceIP,
	}

	if src.Bool(mobileRate[stance]) {
		s.Mobile = true
		s.UserAgent = random.Choice(src, g.mobileAgents)
	}
	if src.Bool(g.vpnRate) {
		s.SourceIP = g.alloc.VPN(src)
	}
	s.Host = random.Choice(src, svc.Domains)
	s.DestinationIP = g.alloc.Destination(src, svc)
	return s
}

// GenerateRequests emits the request events of one session in time order and
// folds their byte counts into the session totals.
func (g *Generator) GenerateRequests(src *random.Source, s *model.Session) []model.RequestEvent {
	sampler, ok := g.endpoints[s.Service.Name]
	if !ok || !s.End.After(s.Start) {
		return nil
	}

	var events []model.RequestEvent
	if s.Blocked {
		events = g.blockedRequests(src, s, sampler)
	} else {
		events = g.activeRequests(src, s, sampler)
	}

	for _, ev := range events {
		s.BytesSent += ev.BytesSent
		s.BytesReceived += ev.BytesReceived
	}
	s.Requests += len(events)
	s.User.Counters.Requests += len(events)
	return events
}

func (g *Generator) activeRequests(src *random.Source, s *model.Session, sampler *random.Weighted[model.Endpoint]) []model.RequestEvent {
	var events []model.RequestEvent
	multiplier := s.User.Profile.DataVolumeMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	if src.Bool(authProbability) {
		events = append(events, model.RequestEvent{
			Timestamp:       s.Start,
			Kind:            model.RequestAuth,
			Method:          "POST",
			Host:            s.Host,
			Path:            random.Choice(src, authPaths),
			Status:          drawStatus(src, "POST"),
			BytesSent:       src.Int64Range(200, 500),
			BytesReceived:   src.Int64Range(1000, 5000),
			Duration:        src.DurationBetween(100*time.Millisecond, 500*time.Millisecond),
			Outcome:         model.OutcomeAllowed,
			SourceIP:        s.SourceIP,
			UserAgent:       s.UserAgent,
			DestinationIP:   s.DestinationIP,
			SourcePort:      g.alloc.SourcePort(src),
			DestinationPort: httpsPort,
		})
	}

	rate := s.Service.Traffic.RequestsPerHour
	if rate <= 0 {
		rate = defaultRequestRate
	}
	perSecond := rate / 3600

	cursor := s.Start.Add(src.DurationBetween(time.Second, 5*time.Second))
	if !cursor.Before(s.End) {
		cursor = s.Start
	}

	for cursor.Before(s.End) && len(events) < MaxRequestsPerSession {
		ep := sampler.Pick(src)
		kind := ep.EffectiveKind()
		sent, received := requestSizes(src, kind, s.Service.Traffic, multiplier)

		ev := model.RequestEvent{
			Timestamp:       cursor,
			Kind:            model.RequestActivity,
			Method:          ep.Method,
			Host:            s.Host,
			Path:            ep.Path,
			Status:          drawStatus(src, ep.Method),
			BytesSent:       sent,
			BytesReceived:   received,
			Duration:        requestDuration(src, kind),
			Outcome:         model.OutcomeAllowed,
			SourceIP:        s.SourceIP,
			UserAgent:       s.UserAgent,
			DestinationIP:   s.DestinationIP,
			SourcePort:      g.alloc.SourcePort(src),
			DestinationPort: httpsPort,
		}
		if len(events) > 0 && src.Bool(referrerProbability) {
			ev.Referrer = "https://" + s.Host + events[len(events)-1].Path
		}
		events = append(events, ev)

		gap := src.Exponential(perSecond)
		if math.IsInf(gap, 1) || gap > s.Duration().Seconds() {
			break
		}
		cursor = cursor.Add(time.Duration(gap * float64(time.Second)))
	}
	return events
}

func (g *Generator) blockedRequests(src *random.Source, s *model.Session, sampler *random.Weighted[model.Endpoint]) []model.RequestEvent {
	attempts := src.IntRange(1, 3)
	reasons := BlockReasons(s.Service)

	events := make([]model.RequestEvent, 0, attempts)
	at := s.Start
	for i := 0; i < attempts; i++ {
		if i > 0 {
			at = at.Add(src.DurationBetween(time.Second, 10*time.Second+1))
			if at.After(s.End) {
				break
			}
		}
		events = append(events, model.RequestEvent{
			Timestamp:       at,
			Kind:            model.RequestBlocked,
			Method:          "GET",
			Host:            s.Host,
			Path:            sampler.Pick(src).Path,
			Status:          403,
			BytesSent:       src.Int64Range(100, 300),
			BytesReceived:   src.Int64Range(500, 1500),
			Duration:        src.DurationBetween(10*time.Millisecond, 50*time.Millisecond),
			Outcome:         model.OutcomeBlocked,
			BlockReason:     random.Choice(src, reasons),
			SourceIP:        s.SourceIP,
			UserAgent:       s.UserAgent,
			DestinationIP:   s.DestinationIP,
			SourcePort:      g.alloc.SourcePort(src),
			DestinationPort: httpsPort,
		})
	}
	return events
}

func requestSizes(src *random.Source, kind model.EndpointKind, traffic model.TrafficStats, multiplier float64) (sent, received int64) {
	scale := func(v int64) int64 { return int64(float64(v) * multiplier) }

	switch kind {
	case model.KindUpload:
		return scale(heavyBytes(src, traffic)), src.Int64Range(200, 1000)
	case model.KindDownload:
		return src.Int64Range(200, 1000), scale(heavyBytes(src, traffic))
	case model.KindAPI:
		return src.Int64Range(100, 2000), scale(src.Int64Range(500, 50000))
	default:
		return src.Int64Range(200, 800), scale(src.Int64Range(5000, 100000))
	}
}

func heavyBytes(src *random.Source, traffic model.TrafficStats) int64 {
	v := int64(src.LogNormalMeanStd(traffic.BytesMean, traffic.BytesStdDev))
	if v < minHeavyBytes {
		return minHeavyBytes
	}
	return v
}

func requestDuration(src *random.Source, kind model.EndpointKind) time.Duration {
	switch kind {
	case model.KindUpload, model.KindDownload:
		return src.DurationBetween(500*time.Millisecond, 5*time.Second)
	case model.KindAPI:
		return src.DurationBetween(50*time.Millisecond, 500*time.Millisecond)
	default:
		return src.DurationBetween(100*time.Millisecond, time.Second)
	}
}

func drawStatus(src *random.Source, method string) int {
	if src.Bool(successRate) {
		code := successStatus.Pick(src)
		if code == 304 && method != "GET" {
			return 200
		}
		return code
	}
	return errorStatus.Pick(src)
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
