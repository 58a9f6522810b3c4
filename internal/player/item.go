// Package player is the playback sequencing engine: it advances a
// generated stopset through its items, owns the audio handle lifecycle,
// and applies operator mutations to slots that have not yet aired.
package player

import (
	"time"

	"github.com/avelara/stopsetd/internal/audio"
	"github.com/avelara/stopsetd/internal/catalog"
)

type ItemState int

const (
	ItemPending ItemState = iota
	ItemLoading
	ItemPlaying
	ItemFinished
	// ItemError is terminal and counts as finished for sequencing, but
	// the item is excluded from duration/elapsed aggregates.
	ItemError
)

func (s ItemState) String() string {
	switch s {
	case ItemPending:
		return "pending"
	case ItemLoading:
		return "loading"
	case ItemPlaying:
		return "playing"
	case ItemFinished:
		return "finished"
	case ItemError:
		return "error"
	}
	return "unknown"
}

// Item is one slot of a generated stopset. Asset nil means the rotator had
// no eligible asset and the slot is non-playable.
type Item struct {
	Rotator *catalog.Rotator
	Asset   *catalog.Asset

	State    ItemState
	Elapsed  time.Duration
	Duration time.Duration
	Skipped  bool

	handle      audio.Handle
	errorLogged bool
}

func newItem(rot *catalog.Rotator, asset *catalog.Asset) *Item {
	it := &Item{Rotator: rot, Asset: asset}
	if asset != nil {
		it.Duration = asset.Duration
	}
	return it
}

func (it *Item) Playable() bool { return it.Asset != nil }

func (it *Item) Remaining() time.Duration {
	if r := it.Duration - it.Elapsed; r > 0 {
		return r
	}
	return 0
}

func (it *Item) terminal() bool {
	return it.State == ItemFinished || it.State == ItemError
}

// countsForTotals excludes errored items from the stopset's aggregate
// duration so the countdown does not include time that will never play.
func (it *Item) countsForTotals() bool {
	return it.Playable() && it.State != ItemError
}
