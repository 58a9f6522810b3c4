package player

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/avelara/stopsetd/internal/audio"
	"github.com/avelara/stopsetd/internal/avoidance"
	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/selection"
)

// SinglePlayer plays one asset from a single-play rotator outside any
// stopset: jingles, legal IDs, anything an operator fires by hand. When an
// asset has alternate cuts one of the files is chosen at random.
type SinglePlayer struct {
	mu sync.Mutex

	pool   *audio.Pool
	picker *selection.Picker
	state  *avoidance.State
	log    EventLogger
	update func()

	handle   audio.Handle
	asset    *catalog.Asset
	rotator  *catalog.Rotator
	session  int
	elapsed  time.Duration
	duration time.Duration
	playing  bool
}

func NewSinglePlayer(pool *audio.Pool, picker *selection.Picker, state *avoidance.State,
	log EventLogger, updateCallback func()) *SinglePlayer {
	return &SinglePlayer{
		pool:   pool,
		picker: picker,
		state:  state,
		log:    log,
		update: updateCallback,
	}
}

// PlayFromRotator picks an asset from the rotator and plays it.
func (sp *SinglePlayer) PlayFromRotator(rot *catalog.Rotator, mediumIgnore map[int64]struct{}, at time.Time) error {
	asset := sp.picker.AssetFor(rot, mediumIgnore, nil, at)
	if asset == nil {
		return fmt.Errorf("no assets to play from %s", rot.Name)
	}
	sp.Play(asset, rot, at)
	return nil
}

// Play starts the asset immediately, stopping any single play in
// progress.
func (sp *SinglePlayer) Play(asset *catalog.Asset, rot *catalog.Rotator, at time.Time) {
	sp.Stop()

	file := pickCut(sp.picker.RNG, asset)
	sp.state.MarkPlayed(asset.ID, at)
	if sp.log != nil {
		sp.log.Event("played_single", fmt.Sprintf("[Rotator=%s] [Asset=%s]", rot.Name, asset.Name))
	}

	h := sp.pool.Checkout()
	sp.mu.Lock()
	sp.handle = h
	sp.asset = asset
	sp.rotator = rot
	sp.elapsed = 0
	sp.duration = file.Duration
	sp.playing = true
	sp.session++
	session := sp.session
	sp.mu.Unlock()

	h.Load(file.LocalPath, file.Duration, audio.Events{
		OnDuration: func(d time.Duration) {
			sp.mu.Lock()
			if sp.session == session {
				sp.duration = d
			}
			sp.mu.Unlock()
			sp.notify()
		},
		OnProgress: func(elapsed time.Duration) {
			sp.mu.Lock()
			if sp.session == session {
				sp.elapsed = elapsed
			}
			sp.mu.Unlock()
			sp.notify()
		},
		OnEnded: func() { sp.stopSession(session, nil) },
		OnError: func(err error) { sp.stopSession(session, err) },
	})
	h.Play()
	sp.notify()
}

// Stop halts single playback and releases the handle. No-op when idle.
func (sp *SinglePlayer) Stop() {
	sp.mu.Lock()
	session := sp.session
	sp.mu.Unlock()
	sp.stopSession(session, nil)
}

func (sp *SinglePlayer) stopSession(session int, playErr error) {
	sp.mu.Lock()
	if sp.session != session || sp.handle == nil {
		sp.mu.Unlock()
		return
	}
	h := sp.handle
	asset := sp.asset
	sp.handle = nil
	sp.asset = nil
	sp.rotator = nil
	sp.playing = false
	sp.session++
	sp.mu.Unlock()

	sp.pool.Release(h)
	if playErr != nil {
		slog.Error("error playing single asset", "asset", asset.Name, "err", playErr)
		if sp.log != nil {
			sp.log.Event("internal_error",
				fmt.Sprintf("Error playing single asset %s: %v", asset.Name, playErr))
		}
	}
	sp.notify()
}

func (sp *SinglePlayer) IsPlaying() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.playing
}

type SingleStatus struct {
	Playing  bool    `json:"playing"`
	Asset    string  `json:"asset,omitempty"`
	Rotator  string  `json:"rotator,omitempty"`
	Elapsed  float64 `json:"elapsed"`
	Duration float64 `json:"duration"`
}

func (sp *SinglePlayer) Status() SingleStatus {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	st := SingleStatus{
		Playing:  sp.playing,
		Elapsed:  sp.elapsed.Seconds(),
		Duration: sp.duration.Seconds(),
	}
	if sp.asset != nil {
		st.Asset = sp.asset.Name
	}
	if sp.rotator != nil {
		st.Rotator = sp.rotator.Name
	}
	return st
}

func (sp *SinglePlayer) notify() {
	if sp.update != nil {
		sp.update()
	}
}

// pickCut chooses among the asset's main file and alternates uniformly.
func pickCut(rng *rand.Rand, asset *catalog.Asset) catalog.File {
	files := append([]catalog.File{asset.File}, asset.Alternates...)
	return files[rng.IntN(len(files))]
}
