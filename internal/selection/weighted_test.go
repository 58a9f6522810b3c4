package selection

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelara/stopsetd/internal/catalog"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(42, 1))
}

func asset(id int64, weight float64) *catalog.Asset {
	return &catalog.Asset{ID: id, Name: "asset", Weight: weight, Enabled: true}
}

func TestPickWeightedFairness(t *testing.T) {
	rng := testRNG()
	a := asset(1, 1)
	b := asset(2, 3)
	now := time.Now()

	counts := map[int64]int{}
	const draws = 40000
	for i := 0; i < draws; i++ {
		picked, ok := PickWeighted(rng, []*catalog.Asset{a, b}, now, Boost{})
		require.True(t, ok)
		counts[picked.ID]++
	}

	ratio := float64(counts[2]) / draws
	assert.InDelta(t, 0.75, ratio, 0.02, "weight 3 should win about 3x as often as weight 1")
}

func TestPickWeightedAllZero(t *testing.T) {
	_, ok := PickWeighted(testRNG(), []*catalog.Asset{asset(1, 0), asset(2, 0)}, time.Now(), Boost{})
	assert.False(t, ok, "an all-zero pool yields no pick")

	_, ok = PickWeighted(testRNG(), []*catalog.Asset{}, time.Now(), Boost{})
	assert.False(t, ok, "an empty pool yields no pick")
}

func TestPickWeightedZeroNeverPicked(t *testing.T) {
	rng := testRNG()
	zero := asset(1, 0)
	positive := asset(2, 0.5)
	now := time.Now()

	for i := 0; i < 1000; i++ {
		picked, ok := PickWeighted(rng, []*catalog.Asset{zero, positive}, now, Boost{})
		require.True(t, ok)
		assert.Equal(t, int64(2), picked.ID)
	}
}

func TestEligibleWindows(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	inWindow := asset(1, 1)
	inWindow.Window = catalog.Window{Begin: &past, End: &future}
	expired := asset(2, 1)
	expired.Window = catalog.Window{End: &past}
	notYet := asset(3, 1)
	notYet.Window = catalog.Window{Begin: &future}
	disabled := asset(4, 1)
	disabled.Enabled = false
	unbounded := asset(5, 1)

	got := Eligible([]*catalog.Asset{inWindow, expired, notYet, disabled, unbounded}, now)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(5), got[1].ID)
}

func TestBoostAppliesDayBoundary(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.Local)
	endToday := time.Date(2025, 6, 15, 23, 0, 0, 0, time.Local)
	endTomorrow := time.Date(2025, 6, 16, 1, 0, 0, 0, time.Local)

	boost := Boost{Multiplier: 5, Boundary: "day"}

	today := asset(1, 2)
	today.Window.End = &endToday
	tomorrow := asset(2, 2)
	tomorrow.Window.End = &endTomorrow

	assert.Equal(t, 10.0, boost.effectiveWeight(today, now))
	assert.Equal(t, 2.0, boost.effectiveWeight(tomorrow, now))

	// The 24h boundary catches tomorrow's 1am end as well.
	boost24 := Boost{Multiplier: 5, Boundary: "24h"}
	assert.Equal(t, 10.0, boost24.effectiveWeight(tomorrow, now))
}

func TestBoostDisabled(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Hour)
	a := asset(1, 2)
	a.Window.End = &end

	assert.Equal(t, 2.0, Boost{}.effectiveWeight(a, now))
	assert.Equal(t, 2.0, Boost{Multiplier: 0, Boundary: "day"}.effectiveWeight(a, now))
}
