package player

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/avelara/stopsetd/internal/audio"
	"github.com/avelara/stopsetd/internal/catalog"
)

// Operator mutations of not-yet-aired slots. All of them reject indexes
// at or before the live item once playback has started: history and the
// active item are immutable.

func (g *GeneratedStopset) validateMutableLocked(index int) error {
	if g.destroyed {
		return ErrDestroyed
	}
	if index < 0 || index >= len(g.items) {
		return ErrOutOfRange
	}
	if g.started && index <= g.current {
		return ErrAlreadyAired
	}
	return nil
}

// SwapAsset replaces the item at index with a new asset. The old item's
// audio handle goes back to the pool before the replacement loads, so no
// handle or listener is orphaned.
func (g *GeneratedStopset) SwapAsset(index int, asset *catalog.Asset, rot *catalog.Rotator) error {
	g.mu.Lock()
	if err := g.validateMutableLocked(index); err != nil {
		g.mu.Unlock()
		slog.Warn("rejected swap", "index", index, "err", err)
		return err
	}
	old := g.items[index]
	oldHandle := old.handle
	old.handle = nil

	it := newItem(rot, asset)
	g.items[index] = it
	loaded := g.loaded
	g.mu.Unlock()

	if oldHandle != nil {
		g.pool.Release(oldHandle)
	}
	// Eager load keeps a later Play free of a latency gap.
	if loaded && it.Playable() {
		g.loadItem(it)
	}
	g.notify()
	return nil
}

// InsertAsset adds a new item before or after the item at index.
func (g *GeneratedStopset) InsertAsset(index int, asset *catalog.Asset, rot *catalog.Rotator, before bool) error {
	g.mu.Lock()
	if err := g.validateMutableLocked(index); err != nil {
		g.mu.Unlock()
		slog.Warn("rejected insert", "index", index, "err", err)
		return err
	}
	pos := index
	if !before {
		pos = index + 1
	}
	it := newItem(rot, asset)
	g.items = append(g.items, nil)
	copy(g.items[pos+1:], g.items[pos:])
	g.items[pos] = it
	loaded := g.loaded
	g.mu.Unlock()

	if loaded && it.Playable() {
		g.loadItem(it)
	}
	g.notify()
	return nil
}

// DeleteAsset removes the item at index.
func (g *GeneratedStopset) DeleteAsset(index int) error {
	g.mu.Lock()
	if err := g.validateMutableLocked(index); err != nil {
		g.mu.Unlock()
		slog.Warn("rejected delete", "index", index, "err", err)
		return err
	}
	old := g.items[index]
	oldHandle := old.handle
	old.handle = nil
	g.items = append(g.items[:index], g.items[index+1:]...)
	g.mu.Unlock()

	if oldHandle != nil {
		g.pool.Release(oldHandle)
	}
	g.notify()
	return nil
}

// RegenerateAsset re-runs selection for the slot at index, excluding every
// asset already present in this stopset. The replacement is marked played
// the same way generation-time picks are.
func (g *GeneratedStopset) RegenerateAsset(index int, at time.Time, mediumIgnore map[int64]struct{}) error {
	g.mu.Lock()
	if err := g.validateMutableLocked(index); err != nil {
		g.mu.Unlock()
		slog.Warn("rejected regenerate", "index", index, "err", err)
		return err
	}
	old := g.items[index]
	rot := old.Rotator
	hardIgnore := make(map[int64]struct{})
	for _, it := range g.items {
		if it.Asset != nil {
			hardIgnore[it.Asset.ID] = struct{}{}
		}
	}
	g.mu.Unlock()

	asset := g.picker.AssetFor(rot, mediumIgnore, hardIgnore, at)
	if asset == nil {
		slog.Warn("regenerate found no eligible asset", "rotator", rot.Name, "index", index)
		return fmt.Errorf("no eligible asset for rotator %s", rot.Name)
	}
	g.state.MarkPlayed(asset.ID, at)

	var oldHandle audio.Handle
	g.mu.Lock()
	// Revalidate: playback may have advanced while picking.
	if err := g.validateMutableLocked(index); err != nil {
		g.mu.Unlock()
		return err
	}
	if g.items[index] != old {
		g.mu.Unlock()
		return fmt.Errorf("item at index %d changed during regenerate", index)
	}
	oldHandle = old.handle
	old.handle = nil
	it := newItem(rot, asset)
	g.items[index] = it
	loaded := g.loaded
	g.mu.Unlock()

	if oldHandle != nil {
		g.pool.Release(oldHandle)
	}
	if loaded && it.Playable() {
		g.loadItem(it)
	}
	g.notify()
	return nil
}
