// Package audio abstracts the playback element behind a small handle
// interface plus a bounded reuse pool, so the sequencing engine never
// talks to a concrete player directly.
package audio

import "time"

// Events are the hooks a handle fires as media loads and plays. All
// callbacks may be invoked from a background goroutine; consumers guard
// their own state.
type Events struct {
	// OnDuration reports the authoritative media duration once known.
	OnDuration func(d time.Duration)
	// OnProgress reports elapsed playback time.
	OnProgress func(elapsed time.Duration)
	// OnEnded fires when playback reaches the end of the media.
	OnEnded func()
	// OnError fires at most once for a load or playback failure.
	OnError func(err error)
}

// Handle is one playback element. Handles are reused: Unload returns one
// to a neutral state so the pool can hand it to the next item.
type Handle interface {
	// Load binds event hooks and begins loading the media source.
	// durationHint is the catalog's stated duration, used until the
	// backend can report a real one.
	Load(src string, durationHint time.Duration, ev Events)
	// Play starts or resumes playback. Failures surface via OnError.
	Play()
	// Pause stops playback without losing position.
	Pause()
	// Unload stops playback and detaches all event hooks.
	Unload()
}

// Backend constructs handles for the pool.
type Backend interface {
	NewHandle() Handle
}
