// Package avoidance tracks which assets aired recently and where each
// evenly-cycling rotator left off. The state is an explicit value owned by
// the session and persisted through Store so a restart does not
// immediately repeat content.
package avoidance

import (
	"log/slog"
	"sync"
	"time"
)

// Store persists the state between runs.
type Store interface {
	LoadPlayTimes() (map[int64]time.Time, error)
	SavePlayTime(assetID int64, playedAt time.Time) error
	PrunePlayTimes(olderThan time.Time) error
	LoadCyclePositions() (map[int64]int64, error)
	SaveCyclePosition(rotatorID, assetID int64) error
	ClearAvoidance() error
}

type State struct {
	mu        sync.Mutex
	playTimes map[int64]time.Time
	cycles    map[int64]int64
	store     Store
	window    func() time.Duration
}

// NewState returns an empty, memory-only state.
func NewState() *State {
	return &State{
		playTimes: make(map[int64]time.Time),
		cycles:    make(map[int64]int64),
	}
}

// Load restores persisted state. A read failure starts fresh rather than
// blocking playback.
func Load(store Store) *State {
	s := NewState()
	s.store = store

	if playTimes, err := store.LoadPlayTimes(); err != nil {
		slog.Warn("could not load play times, starting fresh", "err", err)
	} else if playTimes != nil {
		s.playTimes = playTimes
	}
	if cycles, err := store.LoadCyclePositions(); err != nil {
		slog.Warn("could not load cycle positions, starting fresh", "err", err)
	} else if cycles != nil {
		s.cycles = cycles
	}
	return s
}

// SetWindowProvider installs the repeat-window source. While the window is
// non-positive, play times stay in memory only and the store is not
// written. Without a provider every play is persisted.
func (s *State) SetWindowProvider(fn func() time.Duration) {
	s.mu.Lock()
	s.window = fn
	s.mu.Unlock()
}

// MarkPlayed records that an asset aired at the given instant. The
// in-memory record is kept even with repeat avoidance disabled, so turning
// it on mid-session still sees this session's plays.
func (s *State) MarkPlayed(assetID int64, at time.Time) {
	s.mu.Lock()
	s.playTimes[assetID] = at
	window := s.window
	s.mu.Unlock()

	if s.store == nil || (window != nil && window() <= 0) {
		return
	}
	if err := s.store.SavePlayTime(assetID, at); err != nil {
		slog.Warn("could not persist play time", "asset", assetID, "err", err)
	}
}

// SoftIgnoreIDs returns the ids played within the repeat-avoidance window,
// pruning expired entries as a side effect. A non-positive window disables
// repeat avoidance and returns nil.
func (s *State) SoftIgnoreIDs(window time.Duration, now time.Time) map[int64]struct{} {
	if window <= 0 {
		return nil
	}
	cutoff := now.Add(-window)

	s.mu.Lock()
	pruned := false
	ids := make(map[int64]struct{}, len(s.playTimes))
	for id, ts := range s.playTimes {
		if ts.Before(cutoff) {
			delete(s.playTimes, id)
			pruned = true
			continue
		}
		ids[id] = struct{}{}
	}
	s.mu.Unlock()

	if pruned && s.store != nil {
		if err := s.store.PrunePlayTimes(cutoff); err != nil {
			slog.Warn("could not prune play times", "err", err)
		}
	}
	return ids
}

// LastCycled returns the last asset an evenly-cycle rotator handed out.
func (s *State) LastCycled(rotatorID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.cycles[rotatorID]
	return id, ok
}

// SetLastCycled records the cycle position for a rotator.
func (s *State) SetLastCycled(rotatorID, assetID int64) {
	s.mu.Lock()
	s.cycles[rotatorID] = assetID
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveCyclePosition(rotatorID, assetID); err != nil {
			slog.Warn("could not persist cycle position", "rotator", rotatorID, "err", err)
		}
	}
}

// Clear wipes all state, e.g. on logout.
func (s *State) Clear() {
	s.mu.Lock()
	s.playTimes = make(map[int64]time.Time)
	s.cycles = make(map[int64]int64)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ClearAvoidance(); err != nil {
			slog.Warn("could not clear persisted avoidance state", "err", err)
		}
	}
}
