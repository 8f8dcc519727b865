package session

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/netaddr"
	"shadow-it-generator/internal/random"
)

var (
	slack = &model.CloudService{
		Name: "Slack", Status: model.StatusSanctioned, Category: "collaboration", RiskLevel: "low",
		BaseAdoptionRate: 0.8, Domains: []string{"app.slack.com", "files.slack.com"},
		Traffic: model.TrafficStats{BytesMean: 50000, BytesStdDev: 80000, RequestsPerHour: 120},
		Endpoints: []model.Endpoint{
			{Path: "/client", Method: "GET", Weight: 0.5},
			{Path: "/api/chat.postMessage", Method: "POST", Weight: 0.3},
			{Path: "/files/upload", Method: "POST", Weight: 0.2},
		},
	}
	wetransfer = &model.CloudService{
		Name: "WeTransfer", Status: model.StatusBlocked, Category: "file_sharing", RiskLevel: "high",
		BaseAdoptionRate: 0.5, BlockRate: 1, Domains: []string{"wetransfer.com"},
		Endpoints: []model.Endpoint{{Path: "/", Method: "GET", Weight: 1}},
	}
	dropbox = &model.CloudService{
		Name: "Dropbox", Status: model.StatusUnsanctioned, Category: "cloud_storage", RiskLevel: "medium",
		BaseAdoptionRate: 0.4, BlockRate: 0.5, Domains: []string{"www.dropbox.com"},
		Endpoints: []model.Endpoint{
			{Path: "/home", Method: "GET", Weight: 0.5},
			{Path: "/2/files/download", Method: "POST", Weight: 0.5},
		},
	}
)

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	alloc, err := netaddr.NewAllocator(netaddr.Options{
		Internal: []string{"10.0.0.0/16"},
		VPN:      []string{"172.16.0.0/24"},
	})
	require.NoError(t, err)

	g, err := NewGenerator(alloc, []*model.CloudService{slack, wetransfer, dropbox}, Options{VPNUsageRate: 0.1})
	require.NoError(t, err)
	return g
}

func newUser(profile *model.UserProfile) *model.User {
	return &model.User{
		ID:             "u-1",
		Username:       "jane.doe",
		Profile:        profile,
		SourceIP:       netip.MustParseAddr("10.0.4.20"),
		PreferredAgent: "desktop-agent",
	}
}

func risky() *model.UserProfile {
	return &model.UserProfile{
		Name: "risky", ShadowITLikelihood: 0.9, BlockedAttemptRate: 1,
		DataVolumeMultiplier: 1, SessionsPerHour: 3, SessionsStdDev: 1,
	}
}

func hourWindow() model.Window {
	start := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	return model.Window{Start: start, End: start.Add(time.Hour)}
}

func TestGenerateSessionsDegenerate(t *testing.T) {
	g := newGenerator(t)
	user := newUser(risky())
	src := random.New(1)

	assert.Empty(t, g.GenerateSessions(src, user, nil, hourWindow(), 1))

	w := hourWindow()
	w.End = w.Start.Add(500 * time.Millisecond)
	assert.Empty(t, g.GenerateSessions(src, user, []model.Adoption{{Service: slack, Weight: 1}}, w, 1))
}

func TestSessionsWellFormed(t *testing.T) {
	g := newGenerator(t)
	vpnRange := netip.MustParsePrefix("172.16.0.0/24")
	user := newUser(risky())
	candidates := []model.Adoption{{Service: slack, Weight: 1}, {Service: dropbox, Weight: 0.5}}
	src := random.New(2)
	window := hourWindow()

	var total int
	for i := 0; i < 50; i++ {
		sessions := g.GenerateSessions(src, user, candidates, window, 1)
		for j, s := range sessions {
			total++
			if j > 0 {
				assert.False(t, s.Start.Before(sessions[j-1].Start))
			}
			assert.True(t, s.End.After(s.Start))
			assert.False(t, s.Start.Before(window.Start))
			assert.True(t, s.Start.Before(window.End))
			assert.NotEmpty(t, s.Host)
			assert.True(t, s.DestinationIP.IsValid())
			assert.True(t, s.SourceIP == user.SourceIP || vpnRange.Contains(s.SourceIP))

			if !s.Blocked {
				r := durationFor(s.Service.Category, model.StancePermissive)
				assert.GreaterOrEqual(t, s.Duration(), r.min)
				assert.LessOrEqual(t, s.Duration(), r.max)
			}
			if !s.Mobile {
				assert.Equal(t, "desktop-agent", s.UserAgent)
			}

			events := g.GenerateRequests(src, s)
			require.NotEmpty(t, events)
			checkEvents(t, s, events)
		}
	}
	assert.Greater(t, total, 50)
	assert.Equal(t, total, user.Counters.Sessions)
}

func checkEvents(t *testing.T, s *model.Session, events []model.RequestEvent) {
	t.Helper()
	var sent, received int64
	for i, ev := range events {
		if i > 0 {
			assert.False(t, ev.Timestamp.Before(events[i-1].Timestamp), "timestamps must not go backwards")
		}
		assert.False(t, ev.Timestamp.Before(s.Start))
		assert.False(t, ev.Timestamp.After(s.End))
		assert.GreaterOrEqual(t, ev.BytesSent, int64(0))
		assert.GreaterOrEqual(t, ev.BytesReceived, int64(0))
		assert.Equal(t, s.Host, ev.Host)
		assert.Equal(t, 443, ev.DestinationPort)
		assert.GreaterOrEqual(t, ev.SourcePort, 32768)
		if ev.Status == 304 {
			assert.Equal(t, "GET", ev.Method)
		}
		sent += ev.BytesSent
		received += ev.BytesReceived
	}
	assert.Equal(t, sent, s.BytesSent)
	assert.Equal(t, received, s.BytesReceived)
	assert.Equal(t, len(events), s.Requests)
}

func TestBlockedServiceOnlyShortForbiddenSessions(t *testing.T) {
	g := newGenerator(t)
	candidates := []model.Adoption{{Service: wetransfer, Weight: 0.5}}
	src := random.New(3)

	profiles := []*model.UserProfile{risky(), {Name: "normal", BlockedAttemptRate: 1, SessionsPerHour: 1, SessionsStdDev: 0.5}}
	for _, profile := range profiles {
		user := newUser(profile)
		var seen int
		for i := 0; i < 200; i++ {
			sessions := g.GenerateSessions(src, user, candidates, hourWindow(), 1)
			assert.LessOrEqual(t, len(sessions), 1)
			for _, s := range sessions {
				seen++
				assert.True(t, s.Blocked)
				assert.LessOrEqual(t, s.Duration(), 120*time.Second)
				assert.GreaterOrEqual(t, s.Duration(), 30*time.Second)

				events := g.GenerateRequests(src, s)
				assert.GreaterOrEqual(t, len(events), 1)
				assert.LessOrEqual(t, len(events), 3)
				for _, ev := range events {
					assert.Equal(t, 403, ev.Status)
					assert.Equal(t, model.OutcomeBlocked, ev.Outcome)
					assert.Equal(t, model.RequestBlocked, ev.Kind)
					assert.Contains(t, highRiskReasons, ev.BlockReason)
				}
				checkEvents(t, s, events)
			}
		}
		assert.Greater(t, seen, 0, profile.Name)
	}
}

func TestBlockedAttemptRateZeroMeansNoAttempts(t *testing.T) {
	g := newGenerator(t)
	profile := risky()
	profile.BlockedAttemptRate = 0
	user := newUser(profile)
	src := random.New(4)
	for i := 0; i < 200; i++ {
		assert.Empty(t, g.GenerateSessions(src, user, []model.Adoption{{Service: wetransfer, Weight: 1}}, hourWindow(), 1))
	}
}

func TestIntensityScalesSessionCount(t *testing.T) {
	g := newGenerator(t)
	profile := risky()
	profile.SessionsStdDev = 0.2
	candidates := []model.Adoption{{Service: slack, Weight: 1}}

	count := func(intensity float64) int {
		user := newUser(profile)
		src := random.New(5)
		n := 0
		for i := 0; i < 500; i++ {
			n += len(g.GenerateSessions(src, user, candidates, hourWindow(), intensity))
		}
		return n
	}
	busy, quiet := count(1), count(0.1)
	assert.Greater(t, busy, 4*quiet)
}

func TestRequestMix(t *testing.T) {
	g := newGenerator(t)
	user := newUser(risky())
	src := random.New(6)
	window := hourWindow()

	var total, success, auth, referred int
	for i := 0; i < 300; i++ {
		s := &model.Session{
			User: user, Service: slack, Host: "app.slack.com",
			Start: window.Start, End: window.Start.Add(30 * time.Minute),
		}
		events := g.GenerateRequests(src, s)
		assert.LessOrEqual(t, len(events), MaxRequestsPerSession)
		for i, ev := range events {
			total++
			if ev.Status == 200 || ev.Status == 304 {
				success++
			}
			if ev.Kind == model.RequestAuth {
				auth++
				assert.Equal(t, 0, i)
				assert.Equal(t, s.Start, ev.Timestamp)
				assert.Contains(t, authPaths, ev.Path)
			}
			if ev.Referrer != "" {
				referred++
				assert.Contains(t, ev.Referrer, "https://app.slack.com/")
			}
			assert.Equal(t, model.OutcomeAllowed, ev.Outcome)
		}
	}

	assert.InDelta(t, 0.95, float64(success)/float64(total), 0.02)
	assert.InDelta(t, 0.8, float64(auth)/300, 0.08)
	assert.Greater(t, referred, 0)
}

func TestUploadSizesAreHeavy(t *testing.T) {
	src := random.New(7)
	traffic := model.TrafficStats{BytesMean: 100000, BytesStdDev: 50000}
	for i := 0; i < 1000; i++ {
		sent, received := requestSizes(src, model.KindUpload, traffic, 2)
		assert.GreaterOrEqual(t, sent, int64(2*minHeavyBytes))
		assert.GreaterOrEqual(t, received, int64(200))
		assert.LessOrEqual(t, received, int64(1000))

		sent, received = requestSizes(src, model.KindPage, traffic, 1)
		assert.GreaterOrEqual(t, received, int64(5000))
		assert.LessOrEqual(t, sent, int64(800))
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	run := func() []model.RequestEvent {
		g := newGenerator(t)
		user := newUser(risky())
		src := random.Derive(42, "u-1/10")
		var out []model.RequestEvent
		for _, s := range g.GenerateSessions(src, user, []model.Adoption{{Service: slack, Weight: 1}, {Service: dropbox, Weight: 1}}, hourWindow(), 1) {
			out = append(out, g.GenerateRequests(src, s)...)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestBlockReasons(t *testing.T) {
	assert.Equal(t, highRiskReasons, BlockReasons(wetransfer))
	assert.Equal(t, leisureReasons, BlockReasons(&model.CloudService{Category: "social_media", RiskLevel: "medium"}))
	assert.Equal(t, policyReasons, BlockReasons(dropbox))
}

func TestDurationForStance(t *testing.T) {
	assert.Equal(t, durationRange{20 * time.Minute, 60 * time.Minute}, durationFor("collaboration", model.StanceConservative))
	assert.Equal(t, durationRange{20 * time.Minute, 90 * time.Minute}, durationFor("collaboration", model.StanceBalanced))
	assert.Equal(t, durationRange{20 * time.Minute, 48 * time.Minute}, durationFor("collaboration", model.StancePermissive))
	assert.Equal(t, defaultDuration, durationFor("unknown", model.StanceConservative))
}

func TestNewGeneratorRejectsBadEndpoints(t *testing.T) {
	alloc, err := netaddr.NewAllocator(netaddr.Options{Internal: []string{"10.0.0.0/24"}})
	require.NoError(t, err)
	_, err = NewGenerator(alloc, []*model.CloudService{{Name: "empty"}}, Options{})
	assert.ErrorIs(t, err, random.ErrInvalidWeights)
}
