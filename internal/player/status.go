package player

import "time"

// Read-side accessors and the serializable view the UI/control layer
// consumes. All totals exclude errored items so countdowns reflect audio
// that will actually play.

func (g *GeneratedStopset) CurrentIndex() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

func (g *GeneratedStopset) IsPlaying() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing && !g.destroyed
}

func (g *GeneratedStopset) IsLoaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}

func (g *GeneratedStopset) IsDone() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.destroyed
}

func (g *GeneratedStopset) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}

// Item returns the item at index for inspection. Tests and the control
// layer read it; mutation goes through the operator methods.
func (g *GeneratedStopset) Item(index int) *Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	if index < 0 || index >= len(g.items) {
		return nil
	}
	return g.items[index]
}

func (g *GeneratedStopset) Duration() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total time.Duration
	for _, it := range g.items {
		if it.countsForTotals() {
			total += it.Duration
		}
	}
	return total
}

func (g *GeneratedStopset) Elapsed() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total time.Duration
	for _, it := range g.items {
		if it.countsForTotals() {
			total += it.Elapsed
		}
	}
	return total
}

func (g *GeneratedStopset) Remaining() time.Duration {
	if r := g.Duration() - g.Elapsed(); r > 0 {
		return r
	}
	return 0
}

// AssetIDs returns the ids of every asset slotted in this stopset; the
// controller feeds these into the next generation's medium-ignore set.
func (g *GeneratedStopset) AssetIDs() map[int64]struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make(map[int64]struct{})
	for _, it := range g.items {
		if it.Asset != nil {
			ids[it.Asset.ID] = struct{}{}
		}
	}
	return ids
}

type ItemStatus struct {
	Index    int     `json:"index"`
	Rotator  string  `json:"rotator"`
	Color    string  `json:"color,omitempty"`
	Asset    string  `json:"asset,omitempty"`
	AssetID  int64   `json:"asset_id,omitempty"`
	Playable bool    `json:"playable"`
	State    string  `json:"state"`
	Skipped  bool    `json:"skipped,omitempty"`
	Elapsed  float64 `json:"elapsed"`
	Duration float64 `json:"duration"`
}

type Status struct {
	Name         string       `json:"name"`
	GenerationID int64        `json:"generated_id"`
	Current      int          `json:"current"`
	Playing      bool         `json:"playing"`
	Loaded       bool         `json:"loaded"`
	Done         bool         `json:"done"`
	Elapsed      float64      `json:"elapsed"`
	Duration     float64      `json:"duration"`
	Remaining    float64      `json:"remaining"`
	Items        []ItemStatus `json:"items"`
}

func (g *GeneratedStopset) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := Status{
		Name:         g.stopset.Name,
		GenerationID: g.GenerationID,
		Current:      g.current,
		Playing:      g.playing && !g.destroyed,
		Loaded:       g.loaded,
		Done:         g.destroyed,
	}
	var elapsed, duration time.Duration
	for i, it := range g.items {
		is := ItemStatus{
			Index:    i,
			Rotator:  rotatorName(it),
			Playable: it.Playable(),
			State:    it.State.String(),
			Skipped:  it.Skipped,
			Elapsed:  it.Elapsed.Seconds(),
			Duration: it.Duration.Seconds(),
		}
		if it.Rotator != nil {
			is.Color = it.Rotator.Color
		}
		if it.Asset != nil {
			is.Asset = it.Asset.Name
			is.AssetID = it.Asset.ID
		}
		st.Items = append(st.Items, is)
		if it.countsForTotals() {
			elapsed += it.Elapsed
			duration += it.Duration
		}
	}
	st.Elapsed = elapsed.Seconds()
	st.Duration = duration.Seconds()
	if r := (duration - elapsed).Seconds(); r > 0 {
		st.Remaining = r
	}
	return st
}
