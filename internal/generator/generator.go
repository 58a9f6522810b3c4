// Package generator assembles stopset plans: a weighted-random eligible
// stopset with each rotator slot filled by the selection engine.
package generator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/avelara/stopsetd/internal/avoidance"
	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/config"
	"github.com/avelara/stopsetd/internal/selection"
)

// maxGenerateAttempts bounds the retry loop when every generated stopset
// comes out with zero playable slots (e.g. a misconfigured station where
// all rotators are empty).
const maxGenerateAttempts = 3

// Slot pairs a rotator position with its chosen asset. Asset is nil when
// the rotator had nothing eligible; the player renders that as a
// non-playable item.
type Slot struct {
	Rotator *catalog.Rotator
	Asset   *catalog.Asset
}

// Plan is the outcome of one generation: the source stopset and one slot
// per rotator, in the stopset's fixed order.
type Plan struct {
	Stopset *catalog.Stopset
	Slots   []Slot
}

func (p *Plan) Playable() bool {
	for _, s := range p.Slots {
		if s.Asset != nil {
			return true
		}
	}
	return false
}

// EventLogger receives telemetry events. telemetry.Logger satisfies it.
type EventLogger interface {
	Event(eventType, description string)
}

type Generator struct {
	Picker *selection.Picker
	Config *config.Store
	State  *avoidance.State
	Log    EventLogger
}

func New(picker *selection.Picker, cfg *config.Store, state *avoidance.State, log EventLogger) *Generator {
	return &Generator{Picker: picker, Config: cfg, State: state, Log: log}
}

// Generate picks an eligible stopset and fills its slots. Returns nil when
// no stopset is eligible at the given instant. When repeated attempts all
// come out unplayable the last plan is returned anyway so the caller can
// still surface it, with an internal_error logged.
//
// Chosen assets are marked played immediately: a later rotator in the same
// stopset must not re-pick an asset an earlier slot already claimed.
func (g *Generator) Generate(db *catalog.DB, at time.Time, mediumIgnore map[int64]struct{}) *Plan {
	boost := g.Picker.CurrentBoost()

	var last *Plan
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		eligible := selection.Eligible(db.Stopsets, at)
		stopset, ok := selection.PickWeighted(g.Picker.RNG, eligible, at, boost)
		if !ok {
			return nil
		}

		plan := g.fill(stopset, at, mediumIgnore)
		if plan.Playable() {
			return plan
		}
		last = plan
		slog.Warn("generated stopset had no playable assets, retrying",
			"stopset", stopset.Name, "attempt", attempt+1)
	}

	if g.Log != nil {
		g.Log.Event("internal_error",
			fmt.Sprintf("Generated stopset %s but it had no playable assets", last.Stopset.Name))
	}
	return last
}

func (g *Generator) fill(stopset *catalog.Stopset, at time.Time, mediumIgnore map[int64]struct{}) *Plan {
	hardIgnore := make(map[int64]struct{})
	slots := make([]Slot, 0, len(stopset.Rotators))

	// The clock advances by each placed asset's duration so a later
	// slot's end-of-window boost evaluates at its projected air time.
	clock := at
	for _, rot := range stopset.Rotators {
		var asset *catalog.Asset
		if rot.Enabled {
			asset = g.Picker.AssetFor(rot, mediumIgnore, hardIgnore, clock)
			if asset != nil {
				hardIgnore[asset.ID] = struct{}{}
				g.State.MarkPlayed(asset.ID, clock)
				clock = clock.Add(asset.Duration)
			}
		}
		slots = append(slots, Slot{Rotator: rot, Asset: asset})
	}

	return &Plan{Stopset: stopset, Slots: slots}
}
