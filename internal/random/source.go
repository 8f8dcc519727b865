// Package random owns every random draw made by the generator. A Source is
// never shared across goroutines; independent streams come from Derive.
package random

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"time"

	"github.com/spaolacci/murmur3"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	seedSaltA uint32 = 0x9e3779b9
	seedSaltB uint32 = 0x85ebca6b
)

// Source is a seeded ChaCha8 stream. It satisfies rand.Source for gonum
// distributions and io.Reader for uuid generation.
type Source struct {
	chacha *rand.ChaCha8
	rng    *rand.Rand
}

// New returns the top-level source for a run.
func New(seed uint64) *Source {
	return fromKey(seed, "")
}

// Derive returns a stream that depends only on seed and key, so per-user
// generation is reproducible regardless of scheduling.
func Derive(seed uint64, key string) *Source {
	return fromKey(seed, key)
}

func fromKey(seed uint64, key string) *Source {
	data := make([]byte, 8, 8+len(key))
	binary.LittleEndian.PutUint64(data, seed)
	data = append(data, key...)

	var state [32]byte
	h1, h2 := murmur3.Sum128WithSeed(data, seedSaltA)
	h3, h4 := murmur3.Sum128WithSeed(data, seedSaltB)
	binary.LittleEndian.PutUint64(state[0:], h1)
	binary.LittleEndian.PutUint64(state[8:], h2)
	binary.LittleEndian.PutUint64(state[16:], h3)
	binary.LittleEndian.PutUint64(state[24:], h4)

	chacha := rand.NewChaCha8(state)
	return &Source{chacha: chacha, rng: rand.New(chacha)}
}

func (s *Source) Uint64() uint64 {
	return s.chacha.Uint64()
}

func (s *Source) Read(p []byte) (int, error) {
	return s.chacha.Read(p)
}

// Float64 returns a value in [0,1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// IntN returns a value in [0,n). n <= 0 yields 0.
func (s *Source) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.IntN(n)
}

// IntRange returns a value in [lo,hi], inclusive on both ends.
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.IntN(hi-lo+1)
}

// Int64Range is IntRange for byte counts.
func (s *Source) Int64Range(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Int64N(hi-lo+1)
}

// Uniform returns a value in [lo,hi).
func (s *Source) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + (hi-lo)*s.rng.Float64()
}

// Bool returns true with probability p.
func (s *Source) Bool(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.rng.Float64() < p
}

func (s *Source) Normal(mu, sigma float64) float64 {
	if sigma <= 0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s}.Rand()
}

// Gamma draws with the given shape and scale (mean = shape*scale).
func (s *Source) Gamma(shape, scale float64) float64 {
	if shape <= 0 || scale <= 0 {
		return 0
	}
	return distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: s}.Rand()
}

// Exponential draws a waiting time for the given rate.
func (s *Source) Exponential(rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return distuv.Exponential{Rate: rate, Src: s}.Rand()
}

// LogNormalMeanStd draws a heavy-tailed positive value whose distribution has
// the given arithmetic mean and standard deviation.
func (s *Source) LogNormalMeanStd(mean, std float64) float64 {
	if mean <= 0 {
		return 0
	}
	if std <= 0 {
		return mean
	}
	sigma2 := math.Log1p((std * std) / (mean * mean))
	mu := math.Log(mean) - sigma2/2
	return distuv.LogNormal{Mu: mu, Sigma: math.Sqrt(sigma2), Src: s}.Rand()
}

// DurationBetween returns a duration in [lo,hi).
func (s *Source) DurationBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int64N(int64(hi-lo)))
}

func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.rng.Shuffle(n, swap)
}

// Choice returns a uniformly chosen element. It panics on an empty slice.
func Choice[T any](s *Source, items []T) T {
	return items[s.IntN(len(items))]
}
