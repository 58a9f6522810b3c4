package selection

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/avelara/stopsetd/internal/avoidance"
	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/config"
)

// Picker fills rotator slots. It consults the config store for the current
// tunables and the avoidance state for soft-ignore and cycle bookkeeping.
type Picker struct {
	RNG    *rand.Rand
	Config *config.Store
	State  *avoidance.State
}

func NewPicker(cfg *config.Store, state *avoidance.State) *Picker {
	return &Picker{
		RNG:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		Config: cfg,
		State:  state,
	}
}

func (p *Picker) CurrentBoost() Boost {
	cfg := p.Config.Current()
	return Boost{
		Multiplier: cfg.EndDatePriorityWeightMultiplier,
		Boundary:   cfg.EndDatePriorityBoundary,
	}
}

// AssetFor picks an asset from the rotator using tiered fallback:
//
//	soft ignored:   recently played assets excluded (skipped for
//	                evenly-cycle rotators; cycling already rotates)
//	medium ignored: assets visible elsewhere excluded
//	hard ignored:   assets already in the stopset being generated excluded
//	all active:     no exclusion (only when repeats are allowed)
//
// The first tier with a successful pick wins. nil means the slot goes
// unfilled; that is a population shortfall, not an error.
func (p *Picker) AssetFor(rot *catalog.Rotator, mediumIgnore, hardIgnore map[int64]struct{}, at time.Time) *catalog.Asset {
	cfg := p.Config.Current()
	boost := p.CurrentBoost()

	var softIgnore map[int64]struct{}
	if !rot.EvenlyCycle {
		softIgnore = p.State.SoftIgnoreIDs(time.Duration(cfg.NoRepeatAssetsTime)*time.Second, at)
	}

	active := Eligible(rot.Assets, at)
	hardTier := excludeIDs(active, hardIgnore)
	mediumTier := excludeIDs(hardTier, mediumIgnore)
	softTier := excludeIDs(mediumTier, softIgnore)

	tiers := []struct {
		name   string
		assets []*catalog.Asset
	}{
		{"soft ignored", softTier},
		{"medium ignored", mediumTier},
		{"hard ignored", hardTier},
	}
	if cfg.AllowRepeatsInStopset {
		tiers = append(tiers, struct {
			name   string
			assets []*catalog.Asset
		}{"all active", active})
	}

	for _, tier := range tiers {
		var asset *catalog.Asset
		var ok bool
		if rot.EvenlyCycle {
			asset, ok = p.cycleNext(rot, tier.assets)
		} else {
			asset, ok = PickWeighted(p.RNG, tier.assets, at, boost)
		}
		if ok {
			slog.Debug("picked asset",
				"asset", asset.ID, "name", asset.Name,
				"tier", tier.name, "rotator", rot.Name)
			return asset
		}
	}

	slog.Warn("failed to pick an asset entirely", "rotator", rot.Name)
	return nil
}

// cycleNext walks the rotator's id-sorted asset list round robin: the
// first candidate past the last-cycled id, wrapping to the first candidate
// when none qualifies. The chosen id becomes the new cycle position.
// Weights are deliberately ignored so every asset airs.
func (p *Picker) cycleNext(rot *catalog.Rotator, candidates []*catalog.Asset) (*catalog.Asset, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	last, _ := p.State.LastCycled(rot.ID)

	chosen := candidates[0]
	for _, a := range candidates {
		if a.ID > last {
			chosen = a
			break
		}
	}
	p.State.SetLastCycled(rot.ID, chosen.ID)
	return chosen, true
}

func excludeIDs(assets []*catalog.Asset, ignore map[int64]struct{}) []*catalog.Asset {
	if len(ignore) == 0 {
		return assets
	}
	var out []*catalog.Asset
	for _, a := range assets {
		if _, skip := ignore[a.ID]; !skip {
			out = append(out, a)
		}
	}
	return out
}
