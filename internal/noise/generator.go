// Package noise produces background browsing to ordinary websites so that
// cloud service traffic does not stand alone in the logs.
package noise

import (
	"fmt"
	"math"
	"net/netip"
	"sort"
	"time"

	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/netaddr"
	"shadow-it-generator/internal/random"
)

const (
	getRate      = 0.9
	plainHTTP    = 0.1
	referrerRate = 0.3
)

type sizeRange struct {
	lo, hi int64
}

var receivedSizes = map[string]sizeRange{
	"news":      {5000, 50000},
	"reference": {3000, 30000},
	"shopping":  {10000, 100000},
	"blogs":     {2000, 20000},
	"forums":    {1000, 15000},
	"misc":      {1000, 20000},
}

var defaultReceived = sizeRange{1000, 20000}

var searchReferrers = []string{
	"https://www.google.com/search?q=",
	"https://www.bing.com/search?q=",
	"https://duckduckgo.com/?q=",
	"https://search.yahoo.com/search?p=",
}

var successStatus = random.MustWeighted([]int{200, 304}, []float64{0.8, 0.2})

// Identity is who the background traffic is attributed to.
type Identity struct {
	SourceIP  netip.Addr
	UserAgent string
}

type category struct {
	def   *model.JunkCategory
	sites *random.Weighted[model.JunkSite]
}

// Generator is immutable once built.
type Generator struct {
	alloc      *netaddr.Allocator
	rate       config.Rate
	categories *random.Weighted[*category]
}

// NewGenerator resolves the configured category shares against the site
// catalog. Categories without sites are skipped; a generator with no usable
// category emits nothing.
func NewGenerator(junk config.JunkTraffic, catalog *model.JunkCatalog, alloc *netaddr.Allocator) (*Generator, error) {
	g := &Generator{alloc: alloc, rate: junk.RequestsPerUserPerDay}
	if !junk.IsEnabled() || catalog == nil {
		return g, nil
	}

	var (
		cats    []*category
		weights []float64
	)
	for _, name := range junk.CategoryNames() {
		share := junk.Categories[name]
		def, ok := catalog.Category(name)
		if !ok || share <= 0 || len(def.Sites) == 0 {
			continue
		}

		siteWeights := make([]float64, len(def.Sites))
		for i, site := range def.Sites {
			siteWeights[i] = site.Popularity
		}
		sites, err := random.NewWeighted(def.Sites, siteWeights)
		if err != nil {
			return nil, fmt.Errorf("junk category %s: %w", name, err)
		}
		cats = append(cats, &category{def: def, sites: sites})
		weights = append(weights, share)
	}

	if len(cats) == 0 {
		return g, nil
	}
	sampler, err := random.NewWeighted(cats, weights)
	if err != nil {
		return nil, fmt.Errorf("junk categories: %w", err)
	}
	g.categories = sampler
	return g, nil
}

func (g *Generator) Enabled() bool {
	return g.categories != nil
}

// GenerateNoise scatters background requests uniformly over window and
// returns them in time order.
func (g *Generator) GenerateNoise(src *random.Source, id Identity, window model.Window) []model.RequestEvent {
	if !g.Enabled() || window.Duration() <= 0 {
		return nil
	}

	perDay := math.Max(0, src.Normal(g.rate.Mean, g.rate.StdDev))
	count := int(math.Round(perDay * window.Hours() / 24))
	if count == 0 {
		return nil
	}

	stamps := make([]time.Time, count)
	for i := range stamps {
		stamps[i] = window.Start.Add(src.DurationBetween(0, window.Duration()))
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	events := make([]model.RequestEvent, 0, count)
	for _, ts := range stamps {
		events = append(events, g.event(src, id, ts))
	}
	return events
}

func (g *Generator) event(src *random.Source, id Identity, ts time.Time) model.RequestEvent {
	cat := g.categories.Pick(src)
	site := cat.sites.Pick(src)

	ev := model.RequestEvent{
		Timestamp:       ts,
		Kind:            model.RequestNoise,
		Method:          "GET",
		Host:            site.Domain,
		Path:            randomPath(src, cat.def.Name),
		SourceIP:        id.SourceIP,
		UserAgent:       id.UserAgent,
		DestinationIP:   g.alloc.Destination(src, nil),
		SourcePort:      g.alloc.SourcePort(src),
		DestinationPort: 443,
		NoiseCategory:   cat.def.Name,
	}

	if src.Bool(cat.def.AllowedRate) {
		r, ok := receivedSizes[cat.def.Name]
		if !ok {
			r = defaultReceived
		}
		ev.Outcome = model.OutcomeAllowed
		ev.Status = successStatus.Pick(src)
		ev.BytesReceived = src.Int64Range(r.lo, r.hi)
		ev.BytesSent = src.Int64Range(300, 2000)
		ev.Duration = src.DurationBetween(50*time.Millisecond, 500*time.Millisecond)
	} else {
		ev.Outcome = model.OutcomeBlocked
		ev.Status = 403
		ev.BytesReceived = 0
		ev.BytesSent = src.Int64Range(100, 500)
		ev.Duration = src.DurationBetween(10*time.Millisecond, 50*time.Millisecond)
		ev.BlockReason = "Category Blocked: " + cat.def.Name
	}

	if !src.Bool(getRate) {
		ev.Method = "POST"
	}
	if src.Bool(plainHTTP) {
		ev.DestinationPort = 80
	}
	if src.Bool(referrerRate) {
		ev.Referrer = random.Choice(src, searchReferrers) + fill(src, "query")
	}
	return ev
}
