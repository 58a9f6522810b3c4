package audio

import (
	"log/slog"
	"sync"
)

// DefaultSoftCap is how many handles the pool will grow to before
// complaining. Exceeding it strongly suggests a checkout leak somewhere in
// the sequencing code.
const DefaultSoftCap = 50

// Pool hands out reusable handles with checkout/release semantics. At most
// one owner holds a given handle at a time; the pool tracks the in-use
// flag itself rather than trusting callers.
type Pool struct {
	mu      sync.Mutex
	backend Backend
	free    []Handle
	inUse   map[Handle]bool
	softCap int
	warned  bool
}

func NewPool(backend Backend, softCap int) *Pool {
	if softCap <= 0 {
		softCap = DefaultSoftCap
	}
	return &Pool{
		backend: backend,
		inUse:   make(map[Handle]bool),
		softCap: softCap,
	}
}

// Checkout returns a free handle, growing the pool when none is available.
func (p *Pool) Checkout() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	var h Handle
	if n := len(p.free); n > 0 {
		h = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		h = p.backend.NewHandle()
	}
	p.inUse[h] = true

	if total := len(p.inUse) + len(p.free); total > p.softCap && !p.warned {
		p.warned = true
		slog.Warn("audio handle pool exceeds soft cap, something may be very wrong",
			"total", total, "softCap", p.softCap)
	}
	return h
}

// Release unloads a handle and returns it to the free list. Releasing a
// handle that is not checked out is a no-op; the checkout discipline makes
// double release a bug worth logging, not crashing over.
func (p *Pool) Release(h Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if !p.inUse[h] {
		p.mu.Unlock()
		slog.Warn("release of audio handle that was not checked out")
		return
	}
	delete(p.inUse, h)
	p.mu.Unlock()

	h.Unload()

	p.mu.Lock()
	p.free = append(p.free, h)
	p.mu.Unlock()
}

// InUse reports how many handles are currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

// Size reports the total number of handles the pool has created.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse) + len(p.free)
}
