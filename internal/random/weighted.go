package random

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrInvalidWeights = errors.New("invalid weights")

// Weighted draws items in proportion to their weights. It is immutable after
// construction and may be shared by many goroutines, each passing its own Source.
type Weighted[T any] struct {
	items []T
	cum   []float64
	total float64
}

func NewWeighted[T any](items []T, weights []float64) (*Weighted[T], error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidWeights)
	}
	if len(items) != len(weights) {
		return nil, fmt.Errorf("%w: %d items, %d weights", ErrInvalidWeights, len(items), len(weights))
	}

	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight %d is %v", ErrInvalidWeights, i, w)
		}
		total += w
		cum[i] = total
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}

	owned := make([]T, len(items))
	copy(owned, items)
	return &Weighted[T]{items: owned, cum: cum, total: total}, nil
}

// MustWeighted is NewWeighted for static tables known to be valid.
func MustWeighted[T any](items []T, weights []float64) *Weighted[T] {
	w, err := NewWeighted(items, weights)
	if err != nil {
		panic(err)
	}
	return w
}

// Pick returns one item. Zero-weight items are never returned.
func (w *Weighted[T]) Pick(src *Source) T {
	x := src.Float64() * w.total
	i := sort.Search(len(w.cum), func(i int) bool { return w.cum[i] > x })
	if i >= len(w.items) {
		i = len(w.items) - 1
	}
	return w.items[i]
}

func (w *Weighted[T]) Len() int {
	return len(w.items)
}

// SampleWeighted picks k distinct indices without replacement, each with
// probability proportional to its weight, and returns them in ascending order.
func SampleWeighted(src *Source, weights []float64, k int) []int {
	type keyed struct {
		index int
		key   float64
	}

	candidates := make([]keyed, 0, len(weights))
	for i, w := range weights {
		u := src.Float64()
		if w <= 0 {
			continue
		}
		// log(u)/w orders the same way as u^(1/w) without underflow
		candidates = append(candidates, keyed{index: i, key: math.Log(u) / w})
	}

	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return nil
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].key > candidates[b].key
	})

	picked := make([]int, k)
	for i := 0; i < k; i++ {
		picked[i] = candidates[i].index
	}
	sort.Ints(picked)
	return picked
}
