package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

const progressTick = 250 * time.Millisecond

// FFPlayBackend plays media by shelling out to ffplay. Pause is modeled by
// stopping the process and resuming from the saved offset with -ss, which
// is accurate enough for break content measured in whole seconds.
type FFPlayBackend struct {
	// Extra device/driver selection passed through the environment,
	// e.g. "pulse". Empty uses ffplay's default output.
	Device string
}

func (b *FFPlayBackend) NewHandle() Handle {
	return &ffplayHandle{device: b.Device}
}

type ffplayHandle struct {
	device string

	mu        sync.Mutex
	src       string
	duration  time.Duration
	ev        Events
	offset    time.Duration
	startedAt time.Time
	playing   bool
	cancel    context.CancelFunc
	gen       int // invalidates goroutines from a previous play/unload
}

func (h *ffplayHandle) Load(src string, durationHint time.Duration, ev Events) {
	h.mu.Lock()
	h.src = src
	h.duration = durationHint
	h.ev = ev
	h.offset = 0
	h.playing = false
	h.gen++
	h.mu.Unlock()

	// Loading a local file is a stat check; a missing or unreadable
	// file is this handle's load error.
	go func() {
		if _, err := os.Stat(src); err != nil {
			h.fireError(fmt.Errorf("media not available: %w", err))
			return
		}
		h.mu.Lock()
		cb := h.ev.OnDuration
		d := h.duration
		h.mu.Unlock()
		if cb != nil {
			cb(d)
		}
	}()
}

func (h *ffplayHandle) Play() {
	h.mu.Lock()
	if h.playing || h.src == "" {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.playing = true
	h.gen++
	gen := h.gen
	src := h.src
	offset := h.offset
	duration := h.duration
	device := h.device
	h.mu.Unlock()

	args := []string{"-hide_banner", "-loglevel", "error", "-nodisp", "-autoexit"}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offset.Seconds()))
	}
	args = append(args, "-i", src)

	cmd := exec.CommandContext(ctx, "ffplay", args...)
	if device != "" {
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER="+device)
	}
	if err := cmd.Start(); err != nil {
		h.mu.Lock()
		h.playing = false
		h.cancel = nil
		h.mu.Unlock()
		cancel()
		h.fireError(fmt.Errorf("ffplay start: %w", err))
		return
	}

	started := time.Now()
	h.mu.Lock()
	h.startedAt = started
	h.mu.Unlock()

	// Progress comes from the wall clock, which can drift from the decoder
	// position; good enough for a countdown display.
	go func() {
		ticker := time.NewTicker(progressTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.mu.Lock()
				stale := h.gen != gen
				cb := h.ev.OnProgress
				h.mu.Unlock()
				if stale {
					return
				}
				if cb != nil {
					cb(offset + time.Since(started))
				}
			}
		}
	}()

	go func() {
		err := cmd.Wait()
		cancel()

		h.mu.Lock()
		if h.gen != gen {
			// Paused or unloaded; the kill is ours, not an end.
			h.mu.Unlock()
			return
		}
		h.playing = false
		h.cancel = nil
		h.offset = duration
		ended := h.ev.OnEnded
		h.mu.Unlock()

		if err != nil && ctx.Err() == nil {
			h.fireError(fmt.Errorf("ffplay: %w", err))
			return
		}
		if ended != nil {
			ended()
		}
	}()
}

func (h *ffplayHandle) Pause() {
	h.mu.Lock()
	if !h.playing {
		h.mu.Unlock()
		return
	}
	h.playing = false
	h.gen++
	h.offset += time.Since(h.startedAt)
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (h *ffplayHandle) Unload() {
	h.mu.Lock()
	h.gen++
	cancel := h.cancel
	h.cancel = nil
	h.playing = false
	h.src = ""
	h.offset = 0
	h.ev = Events{}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (h *ffplayHandle) fireError(err error) {
	h.mu.Lock()
	cb := h.ev.OnError
	h.mu.Unlock()
	if cb != nil {
		cb(err)
	} else {
		slog.Error("audio error with no handler", "err", err)
	}
}
