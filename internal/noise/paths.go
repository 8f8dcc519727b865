package noise

import (
	"strconv"
	"strings"

	"shadow-it-generator/internal/random"
)

var pathTemplates = map[string][]string{
	"news": {
		"/article/{id}", "/news/{year}/{month}/{id}", "/{section}/{title}", "/story/{id}",
		"/breaking-news/{id}", "/opinion/{author}/{id}", "/world/{region}/{id}",
		"/politics/{id}", "/business/{id}", "/technology/{id}",
	},
	"reference": {
		"/wiki/{topic}", "/article/{topic}", "/how-to/{action}", "/definition/{word}",
		"/guide/{topic}", "/tutorial/{topic}", "/faq/{section}", "/help/{topic}",
		"/docs/{topic}", "/learn/{topic}",
	},
	"shopping": {
		"/product/{id}", "/category/{department}", "/search?q={query}", "/deals/{section}",
		"/sale/{event}", "/item/{sku}", "/browse/{department}", "/brand/{brand}",
		"/checkout/cart", "/wishlist",
	},
	"blogs": {
		"/post/{id}", "/{year}/{month}/{title}", "/blog/{author}/{title}", "/article/{id}",
		"/story/{slug}", "/{section}/{slug}", "/archives/{year}/{month}", "/tag/{tag}",
		"/author/{author}", "/feed",
	},
	"forums": {
		"/thread/{id}", "/topic/{id}", "/post/{id}", "/board/{section}",
		"/discussion/{id}", "/question/{id}", "/answer/{id}", "/user/{user}",
		"/search?q={query}", "/trending",
	},
	"misc": {
		"/", "/forecast/{location}", "/scores/{sport}", "/results/{event}",
		"/schedule/{team}", "/player/{id}", "/stats/{section}", "/map/{location}",
		"/directions/{location}", "/restaurant/{id}",
	},
}

var fallbackTemplates = []string{"/", "/index.html", "/page/{page}", "/search?q={query}"}

var placeholderValues = map[string][]string{
	"section":    {"tech", "health", "finance", "sports", "entertainment"},
	"region":     {"americas", "europe", "asia", "africa", "middle-east"},
	"topic":      {"python", "cooking", "fitness", "travel", "history"},
	"word":       {"algorithm", "pandemic", "inflation", "climate", "innovation"},
	"action":     {"install", "configure", "troubleshoot", "optimize", "secure"},
	"query":      {"laptop", "shoes", "phone", "book", "game"},
	"brand":      {"electronics", "clothing", "home", "sports", "toys"},
	"department": {"mens", "womens", "kids", "home", "garden"},
	"event":      {"summer", "blackfriday", "clearance", "flash", "weekend"},
	"author":     {"john-doe", "jane-smith", "tech-writer", "news-team"},
	"tag":        {"tutorial", "news", "review", "howto", "update"},
	"sport":      {"nfl", "nba", "mlb", "soccer", "tennis"},
	"location":   {"new-york", "los-angeles", "chicago", "houston", "phoenix"},
	"team":       {"patriots", "lakers", "yankees", "cowboys", "warriors"},
}

func fill(src *random.Source, name string) string {
	switch name {
	case "id":
		return strconv.Itoa(src.IntRange(1000, 999999))
	case "year":
		return strconv.Itoa(src.IntRange(2020, 2024))
	case "month":
		return twoDigits(src.IntRange(1, 12))
	case "day":
		return twoDigits(src.IntRange(1, 28))
	case "page":
		return strconv.Itoa(src.IntRange(2, 50))
	case "title":
		return "article-" + strconv.Itoa(src.IntRange(100, 9999))
	case "slug":
		return "post-" + strconv.Itoa(src.IntRange(100, 9999))
	case "sku":
		return "SKU" + strconv.Itoa(src.IntRange(100000, 999999))
	case "user":
		return "user" + strconv.Itoa(src.IntRange(1000, 99999))
	}
	if values, ok := placeholderValues[name]; ok {
		return random.Choice(src, values)
	}
	return name
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// randomPath picks a template for the category and fills its placeholders left to right.
func randomPath(src *random.Source, category string) string {
	templates, ok := pathTemplates[category]
	if !ok {
		templates = fallbackTemplates
	}
	return expand(src, random.Choice(src, templates))
}

func expand(src *random.Source, template string) string {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:open])
		b.WriteString(fill(src, rest[open+1:open+end]))
		rest = rest[open+end+1:]
	}
}
