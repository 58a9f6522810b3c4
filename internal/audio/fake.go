package audio

import (
	"sync"
	"time"
)

// FakeBackend is a scriptable in-memory backend for exercising the
// sequencing state machine without a real player process. Tests drive
// playback by calling FinishCurrent / FailCurrent / AdvanceCurrent.
type FakeBackend struct {
	mu      sync.Mutex
	handles []*FakeHandle

	// FailLoads lists sources whose load should error.
	FailLoads map[string]bool
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{FailLoads: make(map[string]bool)}
}

func (b *FakeBackend) NewHandle() Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := &FakeHandle{backend: b}
	b.handles = append(b.handles, h)
	return h
}

// Handles returns every handle the backend ever created.
func (b *FakeBackend) Handles() []*FakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*FakeHandle(nil), b.handles...)
}

// Playing returns the handle currently playing, or nil.
func (b *FakeBackend) Playing() *FakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.handles {
		if h.IsPlaying() {
			return h
		}
	}
	return nil
}

// FinishCurrent completes the playing handle as a natural end.
func (b *FakeBackend) FinishCurrent() bool {
	h := b.Playing()
	if h == nil {
		return false
	}
	h.Finish()
	return true
}

type FakeHandle struct {
	backend *FakeBackend

	mu       sync.Mutex
	src      string
	duration time.Duration
	ev       Events
	elapsed  time.Duration
	playing  bool
	loaded   bool
	unloads  int
}

func (h *FakeHandle) Load(src string, durationHint time.Duration, ev Events) {
	h.mu.Lock()
	h.src = src
	h.duration = durationHint
	h.ev = ev
	h.elapsed = 0
	h.playing = false
	h.loaded = true
	fail := h.backend != nil && h.backend.FailLoads[src]
	onErr := ev.OnError
	onDur := ev.OnDuration
	h.mu.Unlock()

	// Synchronous load completion keeps tests deterministic.
	if fail {
		if onErr != nil {
			onErr(errLoadFailed)
		}
		return
	}
	if onDur != nil {
		onDur(durationHint)
	}
}

func (h *FakeHandle) Play() {
	h.mu.Lock()
	h.playing = true
	h.mu.Unlock()
}

func (h *FakeHandle) Pause() {
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()
}

func (h *FakeHandle) Unload() {
	h.mu.Lock()
	h.playing = false
	h.loaded = false
	h.src = ""
	h.ev = Events{}
	h.unloads++
	h.mu.Unlock()
}

func (h *FakeHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *FakeHandle) IsLoaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

func (h *FakeHandle) Source() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.src
}

func (h *FakeHandle) Unloads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloads
}

// Advance moves playback forward and reports progress.
func (h *FakeHandle) Advance(d time.Duration) {
	h.mu.Lock()
	h.elapsed += d
	cb := h.ev.OnProgress
	elapsed := h.elapsed
	h.mu.Unlock()
	if cb != nil {
		cb(elapsed)
	}
}

// Finish ends playback naturally.
func (h *FakeHandle) Finish() {
	h.mu.Lock()
	h.playing = false
	h.elapsed = h.duration
	cb := h.ev.OnEnded
	h.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Fail reports a playback error.
func (h *FakeHandle) Fail(err error) {
	h.mu.Lock()
	h.playing = false
	cb := h.ev.OnError
	h.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errLoadFailed = fakeErr("fake load failed")
