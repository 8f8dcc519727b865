// Package engine drives the hour-by-hour simulation and hands encoded lines to a sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shadow-it-generator/internal/activity"
	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/encoder"
	"shadow-it-generator/internal/identity"
	"shadow-it-generator/internal/metrics"
	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/netaddr"
	"shadow-it-generator/internal/noise"
	"shadow-it-generator/internal/population"
	"shadow-it-generator/internal/random"
	"shadow-it-generator/internal/session"
	"shadow-it-generator/internal/sink"
)

// RotateLag is how long a finished period stays open for late events.
// Sessions started near the end of an hour run past it.
const RotateLag = 6 * time.Hour

type Options struct {
	Seed    uint64
	Start   time.Time
	End     time.Time
	Workers int
}

type Config struct {
	Enterprise *config.Enterprise
	Services   []*model.CloudService
	Junk       *model.JunkCatalog
	Encoders   []encoder.Encoder
	Sink       sink.Sink
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Options    Options
}

// Summary is what a run produced.
type Summary struct {
	Hours    int `json:"hours"`
	Users    int `json:"users"`
	Sessions int `json:"sessions"`
	Events   int `json:"events"`
	Allowed  int `json:"allowed"`
	Blocked  int `json:"blocked"`
	Noise    int `json:"noise"`
	Lines    int `json:"lines"`
	Rejected int `json:"rejected"`
}

// Status is a progress snapshot for the status endpoint.
type Status struct {
	Running    bool      `json:"running"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Current    time.Time `json:"current"`
	HoursDone  int       `json:"hours_done"`
	HoursTotal int       `json:"hours_total"`
	Summary    Summary   `json:"summary"`
}

type Engine struct {
	ent      *config.Enterprise
	opts     Options
	users    []*model.User
	activity *activity.Model
	selector *population.Selector
	sessions *session.Generator
	noise    *noise.Generator
	alloc    *netaddr.Allocator
	encoders []encoder.Encoder
	sink     sink.Sink
	metrics  *metrics.Metrics
	logger   *zap.Logger

	nextSession uint64
	day         time.Time
	daySummary  Summary

	mu     sync.RWMutex
	status Status
}

func New(cfg Config) (*Engine, error) {
	if cfg.Enterprise == nil {
		return nil, errors.New("engine: enterprise config is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("engine: sink is required")
	}
	if len(cfg.Encoders) == 0 {
		return nil, errors.New("engine: at least one encoder is required")
	}
	opts := cfg.Options
	if !opts.End.After(opts.Start) {
		return nil, fmt.Errorf("engine: empty simulation window %s to %s", opts.Start, opts.End)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ent := cfg.Enterprise
	alloc, err := netaddr.NewAllocator(netaddr.Options{
		Internal:    ent.Network.InternalSubnets,
		VPN:         ent.Network.VPNSubnets,
		Egress:      ent.Network.EgressIPs,
		Destination: ent.Network.DestinationRanges,
		Services:    cfg.Services,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	act, err := activity.New(ent.Traffic, ent.Location())
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	sessions, err := session.NewGenerator(alloc, cfg.Services, session.Options{
		VPNUsageRate: ent.Traffic.VPNUsageRate,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	noiseGen, err := noise.NewGenerator(ent.Junk, cfg.Junk, alloc)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	ids, err := identity.New(ent.Enterprise.Domain, ent.Locales)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	users, err := population.Build(random.Derive(opts.Seed, "population"), ent, cfg.Services, alloc, ids)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		ent:      ent,
		opts:     opts,
		users:    users,
		activity: act,
		selector: population.NewSelector(act),
		sessions: sessions,
		noise:    noiseGen,
		alloc:    alloc,
		encoders: cfg.Encoders,
		sink:     cfg.Sink,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
	e.status = Status{
		Start:      opts.Start,
		End:        opts.End,
		HoursTotal: int(opts.End.Sub(opts.Start).Hours() + 0.5),
		Summary:    Summary{Users: len(users)},
	}

	logger.Info("Population built",
		zap.Int("users", len(users)),
		zap.Int("services", len(cfg.Services)),
		zap.Bool("noise", noiseGen.Enabled()),
		zap.Uint64("seed", opts.Seed))
	return e, nil
}

// Users is the simulated population in creation order.
func (e *Engine) Users() []*model.User {
	return e.users
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Run generates every hour in [Start, End). It stops between hours when ctx is done.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	loc := e.activity.Location()
	start := e.opts.Start.In(loc)
	end := e.opts.End.In(loc)

	e.setRunning(true)
	defer e.setRunning(false)

	hour := 0
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("Generation interrupted", zap.Time("at", t), zap.Error(err))
			return e.Status().Summary, err
		}

		window := model.Window{Start: t, End: t.Add(time.Hour)}
		if window.End.After(end) {
			window.End = end
		}
		if err := e.runHour(ctx, window, hour); err != nil {
			return e.Status().Summary, err
		}
		hour++
	}
	e.logDay()

	summary := e.Status().Summary
	e.logger.Info("Generation complete",
		zap.Int("hours", summary.Hours),
		zap.Int("sessions", summary.Sessions),
		zap.Int("events", summary.Events),
		zap.Int("lines", summary.Lines),
		zap.Int("rejected", summary.Rejected))
	return summary, nil
}

func (e *Engine) runHour(ctx context.Context, window model.Window, hour int) error {
	began := time.Now()

	day := e.activity.DayStart(window.Start)
	if !day.Equal(e.day) {
		e.logDay()
		e.day = day
		e.daySummary = Summary{}
		for _, u := range e.users {
			u.ResetCounters(day)
		}
	}

	intensity := e.activity.Intensity(window.Start)
	hourSrc := random.Derive(e.opts.Seed, "hour/"+strconv.Itoa(hour))
	active := e.selector.Active(hourSrc, e.users, window.Start, intensity)

	batches := make([][]item, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, u := range active {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src := random.Derive(e.opts.Seed, u.ID+"/"+strconv.Itoa(hour))
			batches[i] = e.generateUser(src, u, window, intensity)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var hs Summary
	for i, u := range active {
		if err := e.emit(ctx, u, batches[i], &hs); err != nil {
			return err
		}
	}
	hs.Hours = 1

	if r, ok := e.sink.(sink.Rotator); ok {
		if err := r.Rotate(window.Start.Add(-RotateLag)); err != nil {
			return fmt.Errorf("rotate: %w", err)
		}
	}

	e.mu.Lock()
	e.status.Current = window.Start
	e.status.HoursDone++
	e.status.Summary.add(hs)
	e.mu.Unlock()
	e.daySummary.add(hs)

	if e.metrics != nil {
		e.metrics.SetActiveUsers(len(active))
		e.metrics.ObserveHour(window.Start, time.Since(began))
	}
	e.logger.Debug("Hour generated",
		zap.Time("hour", window.Start),
		zap.Float64("intensity", intensity),
		zap.Int("active_users", len(active)),
		zap.Int("events", hs.Events))
	return nil
}

// generateUser is the per-user unit of parallel work. It touches only u and
// sessions it creates.
func (e *Engine) generateUser(src *random.Source, u *model.User, window model.Window, intensity float64) []item {
	if len(u.Adoption) == 0 {
		e.logger.Debug("User has no adopted services", zap.String("user", u.Username))
		return nil
	}

	var items []item
	for _, s := range e.sessions.GenerateSessions(src, u, u.Adoption, window, intensity) {
		for _, ev := range e.sessions.GenerateRequests(src, s) {
			items = append(items, item{event: ev, session: s})
		}
	}

	for _, ev := range e.noise.GenerateNoise(src, noise.Identity{SourceIP: u.SourceIP, UserAgent: u.PreferredAgent}, window) {
		items = append(items, item{event: ev})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].event.Timestamp.Before(items[j].event.Timestamp)
	})
	for i := range items {
		items[i].egress = e.alloc.Egress(src)
	}
	return items
}

// emit runs on a single goroutine in population order, so session IDs and
// output order do not depend on scheduling.
func (e *Engine) emit(ctx context.Context, u *model.User, items []item, hs *Summary) error {
	for i := range items {
		it := &items[i]
		if s := it.session; s != nil && s.ID == 0 {
			e.nextSession++
			s.ID = e.nextSession
			hs.Sessions++
			if e.metrics != nil {
				e.metrics.ObserveSession(string(s.Service.Status))
			}
		}

		rec := e.buildRecord(u, it)
		hs.Events++
		switch {
		case it.event.IsNoise():
			hs.Noise++
		case rec.Blocked():
			hs.Blocked++
		default:
			hs.Allowed++
		}

		for _, enc := range e.encoders {
			line, err := enc.Encode(rec)
			if err != nil {
				hs.Rejected++
				if e.metrics != nil {
					e.metrics.ObserveReject(enc.Name())
				}
				e.logger.Warn("Event rejected by encoder",
					zap.String("format", enc.Name()),
					zap.String("user", u.Username),
					zap.Time("timestamp", rec.Timestamp),
					zap.Error(err))
				continue
			}

			err = e.sink.Write(ctx, sink.Entry{
				Format:    enc.Name(),
				Timestamp: rec.Timestamp,
				Line:      line,
				Record:    rec,
			})
			if err != nil {
				return fmt.Errorf("write %s: %w", enc.Name(), err)
			}
			hs.Lines++
			if e.metrics != nil {
				e.metrics.ObserveEvent(enc.Name(), string(rec.Outcome), string(rec.Kind))
			}
		}
	}
	return nil
}

func (e *Engine) logDay() {
	if e.day.IsZero() {
		return
	}
	e.logger.Info("Simulated day complete",
		zap.String("date", e.day.Format("2006-01-02")),
		zap.Int("sessions", e.daySummary.Sessions),
		zap.Int("events", e.daySummary.Events),
		zap.Int("blocked", e.daySummary.Blocked),
		zap.Int("noise", e.daySummary.Noise),
		zap.Int("rejected", e.daySummary.Rejected))
}

func (e *Engine) setRunning(running bool) {
	e.mu.Lock()
	e.status.Running = running
	e.mu.Unlock()
}

func (s *Summary) add(o Summary) {
	s.Hours += o.Hours
	s.Sessions += o.Sessions
	s.Events += o.Events
	s.Allowed += o.Allowed
	s.Blocked += o.Blocked
	s.Noise += o.Noise
	s.Lines += o.Lines
	s.Rejected += o.Rejected
}
