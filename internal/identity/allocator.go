// Package identity produces unique synthetic employee identities.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"shadow-it-generator/internal/random"
)

var ErrUnknownLocale = errors.New("unknown locale")

const middleInitialRate = 0.10

type LocaleWeight struct {
	Locale string  `yaml:"locale" json:"locale" validate:"required"`
	Weight float64 `yaml:"weight" json:"weight" validate:"gt=0"`
}

type Identity struct {
	FirstName string
	LastName  string
	FullName  string
	Locale    string
	Username  string
	Email     string
}

// Allocator remembers every email it has issued. It is not safe for concurrent use.
type Allocator struct {
	domain  string
	locales *random.Weighted[string]
	issued  map[string]struct{}
}

// New builds an allocator for domain. An empty locale list uses DefaultLocales.
func New(domain string, locales []LocaleWeight) (*Allocator, error) {
	if domain == "" {
		return nil, errors.New("identity: empty email domain")
	}
	if len(locales) == 0 {
		locales = DefaultLocales
	}

	names := make([]string, 0, len(locales))
	weights := make([]float64, 0, len(locales))
	for _, lw := range locales {
		if !SupportedLocale(lw.Locale) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLocale, lw.Locale)
		}
		names = append(names, lw.Locale)
		weights = append(weights, lw.Weight)
	}

	sampler, err := random.NewWeighted(names, weights)
	if err != nil {
		return nil, fmt.Errorf("identity locales: %w", err)
	}

	return &Allocator{
		domain:  strings.ToLower(domain),
		locales: sampler,
		issued:  make(map[string]struct{}),
	}, nil
}

// Next returns an identity whose email has not been issued before.
func (a *Allocator) Next(src *random.Source) Identity {
	locale := a.locales.Pick(src)
	table := nameTables[locale]

	first := random.Choice(src, table.first)
	last := random.Choice(src, table.last)
	firstKey, lastKey := fold(first), fold(last)

	var middle string
	if src.Bool(middleInitialRate) {
		middle = randomInitial(src)
	}

	local := joinLocal(firstKey, middle, lastKey)
	if a.taken(local) && middle == "" {
		middle = randomInitial(src)
		local = joinLocal(firstKey, middle, lastKey)
	}
	for n := 2; a.taken(local); n++ {
		local = joinLocal(firstKey, middle, lastKey) + strconv.Itoa(n)
	}
	a.issued[local] = struct{}{}

	full := first + " " + last
	if middle != "" {
		full = first + " " + strings.ToUpper(middle) + ". " + last
	}

	return Identity{
		FirstName: first,
		LastName:  last,
		FullName:  full,
		Locale:    locale,
		Username:  local,
		Email:     local + "@" + a.domain,
	}
}

// Issued returns the number of identities handed out.
func (a *Allocator) Issued() int {
	return len(a.issued)
}

func (a *Allocator) taken(local string) bool {
	_, ok := a.issued[local]
	return ok
}

func joinLocal(first, middle, last string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{first, middle, last} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

func randomInitial(src *random.Source) string {
	return string(rune('a' + src.IntN(26)))
}

// fold strips diacritics and anything outside [a-z0-9].
func fold(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'ß':
			b.WriteString("ss")
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
