package player

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/avelara/stopsetd/internal/audio"
	"github.com/avelara/stopsetd/internal/avoidance"
	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/generator"
	"github.com/avelara/stopsetd/internal/selection"
)

// EventLogger receives telemetry events. telemetry.Logger satisfies it.
type EventLogger interface {
	Event(eventType, description string)
}

var (
	ErrDestroyed    = errors.New("stopset already finished")
	ErrOutOfRange   = errors.New("index out of range")
	ErrAlreadyAired = errors.New("cannot modify an item that already aired or is live")
)

// GeneratedStopset is the runtime playback object for one generated
// stopset. Its item list matches the source stopset's rotator order; the
// current index only moves forward, and done() is one-shot no matter how
// many trigger paths race to call it.
type GeneratedStopset struct {
	mu sync.Mutex

	stopset      *catalog.Stopset
	GenerationID int64

	items   []*Item
	current int

	loaded    bool
	playing   bool
	started   bool // first Play happened
	destroyed bool
	skipped   bool // operator skipped at some point; flips the end log

	pool   *audio.Pool
	picker *selection.Picker
	state  *avoidance.State
	log    EventLogger
	update func()
	doneCb func()
}

// New builds the playback object from a generation plan. updateCallback
// fires after every observable state change; doneCallback fires exactly
// once when the stopset finishes.
func New(plan *generator.Plan, generationID int64, pool *audio.Pool, picker *selection.Picker,
	state *avoidance.State, log EventLogger, updateCallback, doneCallback func()) *GeneratedStopset {

	g := &GeneratedStopset{
		stopset:      plan.Stopset,
		GenerationID: generationID,
		pool:         pool,
		picker:       picker,
		state:        state,
		log:          log,
		update:       updateCallback,
		doneCb:       doneCallback,
	}
	for _, slot := range plan.Slots {
		g.items = append(g.items, newItem(slot.Rotator, slot.Asset))
	}
	return g
}

func (g *GeneratedStopset) Name() string { return g.stopset.Name }

func (g *GeneratedStopset) notify() {
	if g.update != nil {
		g.update()
	}
}

func (g *GeneratedStopset) event(eventType, description string) {
	if g.log != nil {
		g.log.Event(eventType, description)
	}
}

// LoadAudio checks out a handle for every playable item and begins loading
// its media. Idempotent; non-playable items are no-ops.
func (g *GeneratedStopset) LoadAudio() {
	g.mu.Lock()
	if g.loaded || g.destroyed {
		g.mu.Unlock()
		return
	}
	g.loaded = true
	var toLoad []*Item
	for _, it := range g.items {
		if it.Playable() && it.State == ItemPending {
			toLoad = append(toLoad, it)
		}
	}
	g.mu.Unlock()

	for _, it := range toLoad {
		g.loadItem(it)
	}
	g.notify()
}

func (g *GeneratedStopset) loadItem(it *Item) {
	h := g.pool.Checkout()

	g.mu.Lock()
	if g.destroyed || !it.Playable() {
		g.mu.Unlock()
		g.pool.Release(h)
		return
	}
	it.State = ItemLoading
	it.handle = h
	src := it.Asset.File.LocalPath
	hint := it.Asset.Duration
	g.mu.Unlock()

	h.Load(src, hint, audio.Events{
		OnDuration: func(d time.Duration) { g.onDuration(it, d) },
		OnProgress: func(elapsed time.Duration) { g.onProgress(it, elapsed) },
		OnEnded:    func() { g.itemDone(it, nil) },
		OnError:    func(err error) { g.itemDone(it, err) },
	})
}

func (g *GeneratedStopset) onDuration(it *Item, d time.Duration) {
	g.mu.Lock()
	if g.destroyed || it.terminal() {
		g.mu.Unlock()
		return
	}
	it.Duration = d
	g.mu.Unlock()
	g.notify()
}

func (g *GeneratedStopset) onProgress(it *Item, elapsed time.Duration) {
	g.mu.Lock()
	if g.destroyed || it.terminal() {
		g.mu.Unlock()
		return
	}
	if elapsed > it.Duration {
		elapsed = it.Duration
	}
	it.Elapsed = elapsed
	g.mu.Unlock()
	g.notify()
}

// Play starts the current item, or resumes it after a pause.
func (g *GeneratedStopset) Play() {
	_ = g.playFrom(-1)
}

// PlayFrom jumps forward to the given index: everything strictly between
// the current item and the target is marked skipped and silenced without
// the usual pause side effects, then the target plays.
func (g *GeneratedStopset) PlayFrom(index int) error {
	return g.playFrom(index)
}

func (g *GeneratedStopset) playFrom(index int) error {
	g.LoadAudio()

	var toPause []audio.Handle
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return ErrDestroyed
	}
	if index >= len(g.items) {
		g.mu.Unlock()
		return ErrOutOfRange
	}
	if index >= 0 && index < g.current {
		g.mu.Unlock()
		return ErrAlreadyAired
	}
	if index > g.current {
		for i := g.current; i < index; i++ {
			it := g.items[i]
			if it.terminal() {
				continue
			}
			it.Skipped = true
			it.State = ItemFinished
			if it.handle != nil {
				toPause = append(toPause, it.handle)
			}
			if it.Playable() {
				g.eventLocked("skipped_asset", it)
			}
		}
		g.current = index
	}

	g.started = true
	g.playing = true
	it := g.items[g.current]

	if !it.Playable() || it.terminal() {
		if !it.terminal() {
			it.State = ItemFinished
		}
		g.mu.Unlock()
		for _, h := range toPause {
			h.Pause()
		}
		g.notify()
		g.advance()
		return nil
	}

	it.State = ItemPlaying
	h := it.handle
	name := it.Asset.Name
	g.mu.Unlock()

	for _, ph := range toPause {
		ph.Pause()
	}
	slog.Info("playing asset", "asset", name, "stopset", g.stopset.Name)
	if h != nil {
		h.Play()
	}
	g.notify()
	return nil
}

// Pause stops the active item without advancing. Play resumes it.
func (g *GeneratedStopset) Pause() {
	g.mu.Lock()
	if g.destroyed || !g.playing || g.current >= len(g.items) {
		g.mu.Unlock()
		return
	}
	g.playing = false
	h := g.items[g.current].handle
	g.mu.Unlock()

	if h != nil {
		h.Pause()
	}
	g.notify()
}

// Skip marks the stopset and the active item as explicitly skipped, then
// forces the item to finish so sequencing moves on immediately.
func (g *GeneratedStopset) Skip() {
	g.mu.Lock()
	if g.destroyed || !g.started || g.current >= len(g.items) {
		g.mu.Unlock()
		return
	}
	g.skipped = true
	it := g.items[g.current]
	it.Skipped = true
	h := it.handle
	g.mu.Unlock()

	if h != nil {
		h.Pause()
	}
	g.itemDone(it, nil)
}

// itemDone is the single completion path for an item: natural end, error,
// or forced skip. Terminal items ignore further calls, which keeps the
// racing trigger paths (audio event, error, operator) harmless.
func (g *GeneratedStopset) itemDone(it *Item, playErr error) {
	g.mu.Lock()
	if g.destroyed || it.terminal() {
		g.mu.Unlock()
		return
	}
	index := slices.Index(g.items, it)
	if index < 0 {
		// Replaced by a mutation while its audio event was in flight.
		g.mu.Unlock()
		return
	}

	var logType string
	if playErr != nil {
		it.State = ItemError
		if !it.errorLogged {
			it.errorLogged = true
			logType = "internal_error"
		}
	} else {
		it.State = ItemFinished
		if !it.Skipped {
			it.Elapsed = it.Duration
		}
		if it.Playable() {
			if it.Skipped {
				logType = "skipped_asset"
			} else {
				logType = "played_asset"
			}
		}
	}
	isCurrent := index == g.current && g.started

	switch logType {
	case "":
	case "internal_error":
		g.event(logType, fmt.Sprintf("Error playing asset %s: %v [Stopset=%s]",
			itemName(it), playErr, g.stopset.Name))
	default:
		g.eventLocked(logType, it)
	}
	g.mu.Unlock()

	if playErr != nil {
		slog.Error("error while playing item", "item", itemName(it), "err", playErr)
	}
	g.notify()
	if isCurrent {
		g.advance()
	}
}

// advance is donePlaying: move to the next item or finish the stopset.
func (g *GeneratedStopset) advance() {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return
	}
	g.current++
	more := g.current < len(g.items)
	g.mu.Unlock()

	g.notify()
	if more {
		_ = g.playFrom(-1)
	} else {
		g.Done(false, false)
	}
}

// Done finishes the stopset: all handles go back to the pool and the done
// callback fires. Safe to call more than once; only the first call has
// side effects, since natural completion and operator abort can race here.
func (g *GeneratedStopset) Done(skipCallback, skipLog bool) {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return
	}
	g.destroyed = true
	g.playing = false
	var handles []audio.Handle
	for _, it := range g.items {
		if it.handle != nil {
			handles = append(handles, it.handle)
			it.handle = nil
		}
	}
	started := g.started
	skipped := g.skipped
	g.mu.Unlock()

	for _, h := range handles {
		g.pool.Release(h)
	}

	if !skipLog && started {
		if skipped {
			g.event("skipped_stopset", fmt.Sprintf("Skipped stopset %s", g.stopset.Name))
		} else {
			g.event("played_stopset", fmt.Sprintf("Played stopset %s", g.stopset.Name))
		}
	}
	if !skipCallback && g.doneCb != nil {
		g.doneCb()
	}
	g.notify()
}

// eventLocked emits a per-item telemetry line. Caller holds g.mu.
func (g *GeneratedStopset) eventLocked(eventType string, it *Item) {
	g.event(eventType, fmt.Sprintf("[Stopset=%s] [Rotator=%s] [Asset=%s]",
		g.stopset.Name, rotatorName(it), itemName(it)))
}

func itemName(it *Item) string {
	if it.Asset != nil {
		return it.Asset.Name
	}
	return "non-playable item"
}

func rotatorName(it *Item) string {
	if it.Rotator != nil {
		return it.Rotator.Name
	}
	return "unknown"
}
