package player

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avelara/stopsetd/internal/audio"
	"github.com/avelara/stopsetd/internal/avoidance"
	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/config"
	"github.com/avelara/stopsetd/internal/generator"
	"github.com/avelara/stopsetd/internal/selection"
)

var ErrStaleGeneration = errors.New("command targets a stale stopset generation")

// Controller owns the playback cycle: generate a stopset, load and play
// it, wait, repeat. It is the single entry point for operator commands,
// each validated against the live generation id so commands aimed at a
// stopset that already finished are dropped rather than misapplied.
type Controller struct {
	mu sync.Mutex

	db      *catalog.DB
	cfg     *config.Store
	gen     *generator.Generator
	picker  *selection.Picker
	state   *avoidance.State
	pool    *audio.Pool
	log     EventLogger
	update  func()
	nextGen atomic.Int64

	current    *GeneratedStopset
	generating bool
	lastIDs    map[int64]struct{} // assets of the most recent stopset, medium-ignored next time
	wait       *Wait
	single     *SinglePlayer
	now        func() time.Time
}

func NewController(db *catalog.DB, cfg *config.Store, pool *audio.Pool, picker *selection.Picker,
	state *avoidance.State, log EventLogger, updateCallback func()) *Controller {

	c := &Controller{
		db:     db,
		cfg:    cfg,
		gen:    generator.New(picker, cfg, state, log),
		picker: picker,
		state:  state,
		pool:   pool,
		log:    log,
		update: updateCallback,
		now:    time.Now,
	}
	c.wait = NewWait(log, updateCallback, c.waitExpired)
	c.single = NewSinglePlayer(pool, picker, state, log, updateCallback)
	return c
}

// SetDB swaps in freshly synced content. In-flight playback keeps its
// references to the old graph; only future generations see the new one.
func (c *Controller) SetDB(db *catalog.DB) {
	c.mu.Lock()
	c.db = db
	c.mu.Unlock()
	c.notify()
}

// Start kicks off the first cycle when autoplay is on; otherwise the
// machine sits idle until an operator Play.
func (c *Controller) Start() {
	if c.cfg.Current().Autoplay {
		c.startNextStopset()
	} else {
		c.startWait()
	}
}

// Play resumes a paused stopset or, when none is live, generates and
// starts the next one.
func (c *Controller) Play() {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()

	if cur != nil && !cur.IsDone() {
		cur.Play()
		return
	}
	c.wait.Stop()
	c.startNextStopset()
}

// Pause pauses the live stopset. No-op when nothing is playing.
func (c *Controller) Pause() {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur != nil {
		cur.Pause()
	}
}

// Skip skips the live item of the current stopset.
func (c *Controller) Skip() {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur != nil {
		cur.Skip()
	}
}

// PlaySingle fires one asset from a single-play rotator, independent of
// the stopset cycle.
func (c *Controller) PlaySingle(rotatorID int64) error {
	c.mu.Lock()
	db := c.db
	medium := c.lastIDs
	c.mu.Unlock()

	rot, ok := db.Rotators[rotatorID]
	if !ok || !rot.IsSinglePlay {
		return fmt.Errorf("no single-play rotator with id %d", rotatorID)
	}
	return c.single.PlayFromRotator(rot, medium, c.now())
}

func (c *Controller) StopSingle() { c.single.Stop() }

// startNextStopset generates and begins the next stopset. The generating
// flag reserves the current slot for the duration of the unlocked Generate
// call, so concurrent entries (wait expiry racing an operator play) cannot
// each install a stopset. When generation comes up empty (no eligible
// stopsets, or nothing playable after retries) the controller falls back
// to waiting so the cycle never stalls.
func (c *Controller) startNextStopset() {
	c.mu.Lock()
	if c.generating || (c.current != nil && !c.current.IsDone()) {
		c.mu.Unlock()
		return
	}
	c.generating = true
	db := c.db
	medium := c.lastIDs
	c.mu.Unlock()

	plan := c.gen.Generate(db, c.now(), medium)
	if plan == nil {
		c.mu.Lock()
		c.generating = false
		c.mu.Unlock()
		slog.Warn("no eligible stopset to generate, waiting")
		c.startWait()
		return
	}

	id := c.nextGen.Add(1)
	var g *GeneratedStopset
	g = New(plan, id, c.pool, c.picker, c.state, c.log, c.update, func() { c.stopsetDone(g) })

	c.mu.Lock()
	c.generating = false
	c.current = g
	c.lastIDs = g.AssetIDs()
	c.mu.Unlock()

	g.LoadAudio()
	g.Play()
	c.notify()
}

// stopsetDone runs when a stopset finishes. Only the stopset that is still
// current gets to clear the slot; a stale callback (its stopset already
// replaced or shut down) must not clobber a successor. The wait between
// stopsets starts regardless of autoplay; autoplay only decides what
// happens when it expires.
func (c *Controller) stopsetDone(g *GeneratedStopset) {
	c.mu.Lock()
	if c.current != g {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()
	c.startWait()
}

func (c *Controller) startWait() {
	cfg := c.cfg.Current()
	c.wait.Start(time.Duration(cfg.WaitInterval)*time.Second,
		time.Duration(cfg.StopsetOverdueTime)*time.Second)
}

// waitExpired is the wait machine's done callback. Returning true keeps
// the wait in overtime until an operator acts; returning false ends it
// because the next stopset is starting on its own.
func (c *Controller) waitExpired() bool {
	if c.cfg.Current().Autoplay {
		go c.startNextStopset()
		return false
	}
	return true
}

// Command is an operator or server instruction aimed at the live stopset.
type Command struct {
	Name         string `json:"name"`
	GenerationID int64  `json:"generated_id,omitempty"`
	Index        int    `json:"subindex,omitempty"`
	AssetID      int64  `json:"asset,omitempty"`
	RotatorID    int64  `json:"rotator,omitempty"`
	Before       bool   `json:"before,omitempty"`
}

// HandleCommand dispatches a remote or UI command. Commands carrying a
// generation id are checked against the live stopset first.
func (c *Controller) HandleCommand(cmd Command) error {
	switch cmd.Name {
	case "play":
		c.Play()
		return nil
	case "pause":
		c.Pause()
		return nil
	case "skip":
		c.Skip()
		return nil
	case "play_single":
		return c.PlaySingle(cmd.RotatorID)
	case "stop_single":
		c.StopSingle()
		return nil
	}

	cur, err := c.liveStopset(cmd.GenerationID)
	if err != nil {
		slog.Warn("dropping command", "name", cmd.Name, "generated_id", cmd.GenerationID, "err", err)
		return err
	}

	switch cmd.Name {
	case "play_from":
		return cur.PlayFrom(cmd.Index)
	case "swap":
		asset, rot, err := c.lookup(cmd.AssetID, cmd.RotatorID)
		if err != nil {
			return err
		}
		return cur.SwapAsset(cmd.Index, asset, rot)
	case "insert":
		asset, rot, err := c.lookup(cmd.AssetID, cmd.RotatorID)
		if err != nil {
			return err
		}
		return cur.InsertAsset(cmd.Index, asset, rot, cmd.Before)
	case "delete":
		return cur.DeleteAsset(cmd.Index)
	case "regenerate":
		c.mu.Lock()
		medium := c.lastIDs
		c.mu.Unlock()
		return cur.RegenerateAsset(cmd.Index, c.now(), medium)
	default:
		return fmt.Errorf("unknown command %q", cmd.Name)
	}
}

func (c *Controller) liveStopset(generationID int64) (*GeneratedStopset, error) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil || cur.IsDone() {
		return nil, ErrStaleGeneration
	}
	if generationID != 0 && generationID != cur.GenerationID {
		return nil, ErrStaleGeneration
	}
	return cur, nil
}

func (c *Controller) lookup(assetID, rotatorID int64) (*catalog.Asset, *catalog.Rotator, error) {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()
	asset := db.AssetByID(assetID)
	if asset == nil {
		return nil, nil, fmt.Errorf("unknown asset %d", assetID)
	}
	rot, ok := db.Rotators[rotatorID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown rotator %d", rotatorID)
	}
	return asset, rot, nil
}

// ControllerStatus is the full player snapshot shipped to the UI and the
// server over the control channel.
type ControllerStatus struct {
	Stopset       *Status      `json:"stopset,omitempty"`
	WaitState     string       `json:"wait_state"`
	WaitRemaining float64      `json:"wait_remaining"`
	Overdue       bool         `json:"overdue"`
	Single        SingleStatus `json:"single"`
	SyncedAt      *time.Time   `json:"synced_at,omitempty"`
}

func (c *Controller) Status() ControllerStatus {
	c.mu.Lock()
	cur := c.current
	db := c.db
	c.mu.Unlock()

	st := ControllerStatus{
		WaitState:     c.wait.State().String(),
		WaitRemaining: c.wait.Remaining(c.now()).Seconds(),
		Overdue:       c.wait.Overdue(),
		Single:        c.single.Status(),
	}
	if cur != nil {
		s := cur.Status()
		st.Stopset = &s
	}
	if db != nil && !db.SyncedAt.IsZero() {
		t := db.SyncedAt
		st.SyncedAt = &t
	}
	return st
}

// Shutdown tears everything down for process exit: no final telemetry
// beyond what already fired, no done callback.
func (c *Controller) Shutdown() {
	c.wait.Stop()
	c.single.Stop()
	c.mu.Lock()
	cur := c.current
	c.current = nil
	c.mu.Unlock()
	if cur != nil {
		cur.Done(true, true)
	}
}

func (c *Controller) notify() {
	if c.update != nil {
		c.update()
	}
}
