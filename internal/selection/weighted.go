// Package selection implements the weighted-random draw and the tiered
// ignore fallback used to fill rotator slots.
package selection

import (
	"math/rand/v2"
	"time"

	"github.com/avelara/stopsetd/internal/config"
)

// Candidate is anything with an airing window and a selection weight:
// assets and stopsets both qualify.
type Candidate interface {
	ActiveAt(at time.Time) bool
	AirWeight() float64
	EndBound() *time.Time
}

// Boost raises the effective weight of candidates whose end bound is about
// to pass, so they get a chance to air before expiring. Stored weights are
// never modified; the boost only affects the draw.
type Boost struct {
	Multiplier float64
	Boundary   string
}

func (b Boost) applies(c Candidate, at time.Time) bool {
	if b.Multiplier <= 0 {
		return false
	}
	end := c.EndBound()
	if end == nil {
		return false
	}
	switch b.Boundary {
	case config.Boundary24h:
		return end.Sub(at) <= 24*time.Hour
	default:
		y1, m1, d1 := end.Date()
		y2, m2, d2 := at.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	}
}

func (b Boost) effectiveWeight(c Candidate, at time.Time) float64 {
	w := c.AirWeight()
	if b.applies(c, at) {
		w *= b.Multiplier
	}
	return w
}

// Eligible filters to enabled candidates whose airing window contains at.
func Eligible[T Candidate](items []T, at time.Time) []T {
	var out []T
	for _, item := range items {
		if item.ActiveAt(at) {
			out = append(out, item)
		}
	}
	return out
}

// PickWeighted draws one candidate with probability proportional to its
// effective weight. An empty pool or an all-zero total yields ok=false;
// zero-weight candidates are never drawn while a positive-weight one
// exists.
func PickWeighted[T Candidate](rng *rand.Rand, items []T, at time.Time, boost Boost) (T, bool) {
	var zero T
	var total float64
	for _, item := range items {
		total += boost.effectiveWeight(item, at)
	}
	if total <= 0 {
		return zero, false
	}

	r := rng.Float64() * total
	var cumulative float64
	for _, item := range items {
		cumulative += boost.effectiveWeight(item, at)
		if r < cumulative {
			return item, true
		}
	}
	// Unreachable barring float rounding on the final boundary.
	return items[len(items)-1], true
}
