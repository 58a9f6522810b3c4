package player

import (
	"fmt"
	"sync"
	"time"
)

type WaitState int

const (
	WaitIdle WaitState = iota
	WaitActive
	WaitOvertime
	WaitDone
)

func (s WaitState) String() string {
	switch s {
	case WaitIdle:
		return "idle"
	case WaitActive:
		return "active"
	case WaitOvertime:
		return "overtime"
	case WaitDone:
		return "done"
	}
	return "unknown"
}

// waitTick is the countdown poll cadence. Expiry compares wall-clock
// deadlines rather than counting ticks, so a suspended or drifting timer
// cannot stretch the wait.
const waitTick = 30 * time.Millisecond

// Wait models the dead air between stopsets: idle → active → overtime
// (optional) → done. When the countdown expires the done callback decides
// whether to keep counting overtime; hitting the overdue threshold raises
// a flag for alerting but never self-terminates the machine.
type Wait struct {
	mu            sync.Mutex
	state         WaitState
	startedAt     time.Time
	expiresAt     time.Time
	overdueAfter  time.Duration
	overdue       bool
	waitedLogged  bool
	overdueLogged bool
	stop          chan struct{}

	log    EventLogger
	update func()
	doneCb func() bool
	now    func() time.Time
}

func NewWait(log EventLogger, updateCallback func(), doneCallback func() bool) *Wait {
	return &Wait{
		log:    log,
		update: updateCallback,
		doneCb: doneCallback,
		now:    time.Now,
	}
}

// Start begins a countdown of the given duration. overdueAfter is how far
// past expiry the overdue flag raises; 0 disables it.
func (w *Wait) Start(duration, overdueAfter time.Duration) {
	w.mu.Lock()
	if w.state == WaitActive || w.state == WaitOvertime {
		w.mu.Unlock()
		return
	}
	now := w.now()
	w.state = WaitActive
	w.startedAt = now
	w.expiresAt = now.Add(duration)
	w.overdueAfter = overdueAfter
	w.overdue = false
	w.waitedLogged = false
	w.overdueLogged = false
	stop := make(chan struct{})
	w.stop = stop
	w.mu.Unlock()

	w.notify()
	go w.run(stop)
}

func (w *Wait) run(stop chan struct{}) {
	ticker := time.NewTicker(waitTick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.advance(w.now())
		}
	}
}

// advance runs one tick against the given instant. The ticker goroutine
// calls it continuously; tests call it directly.
func (w *Wait) advance(now time.Time) {
	w.mu.Lock()
	switch w.state {
	case WaitActive:
		if now.Before(w.expiresAt) {
			w.mu.Unlock()
			w.notify()
			return
		}
		logWaited := !w.waitedLogged
		w.waitedLogged = true
		waited := w.expiresAt.Sub(w.startedAt)
		w.mu.Unlock()

		if logWaited && w.log != nil {
			w.log.Event("waited", fmt.Sprintf("Waited %.0f seconds between stopsets", waited.Seconds()))
		}

		continueOvertime := false
		if w.doneCb != nil {
			continueOvertime = w.doneCb()
		}

		w.mu.Lock()
		if w.state != WaitActive {
			w.mu.Unlock()
			return
		}
		if continueOvertime {
			w.state = WaitOvertime
			w.mu.Unlock()
			w.notify()
			return
		}
		w.finishLocked()
		return

	case WaitOvertime:
		if w.overdueAfter > 0 && !w.overdue && !now.Before(w.expiresAt.Add(w.overdueAfter)) {
			w.overdue = true
			logOverdue := !w.overdueLogged
			w.overdueLogged = true
			w.mu.Unlock()
			if logOverdue && w.log != nil {
				w.log.Event("overdue", "Stopset overdue to play")
			}
			w.notify()
			return
		}
		w.mu.Unlock()
		w.notify()

	default:
		w.mu.Unlock()
	}
}

// Stop ends the wait (the next stopset is starting). Idempotent.
func (w *Wait) Stop() {
	w.mu.Lock()
	if w.state == WaitDone || w.state == WaitIdle {
		w.mu.Unlock()
		return
	}
	w.finishLocked()
}

// finishLocked transitions to done and releases the ticker goroutine.
// Caller holds w.mu; the lock is released before notifying.
func (w *Wait) finishLocked() {
	w.state = WaitDone
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
	w.mu.Unlock()
	w.notify()
}

func (w *Wait) notify() {
	if w.update != nil {
		w.update()
	}
}

func (w *Wait) State() WaitState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Wait) Overdue() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.overdue
}

// Remaining is the time left in the countdown; negative once in overtime,
// so callers can render "-0:12" the way the original client does.
func (w *Wait) Remaining(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WaitIdle || w.state == WaitDone {
		return 0
	}
	return w.expiresAt.Sub(now)
}
