package player

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneRecorder struct {
	mu       sync.Mutex
	calls    int
	overtime bool
}

func (d *doneRecorder) cb() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.overtime
}

func (d *doneRecorder) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// newTestWait returns a wait pinned to a fake clock; tests drive ticks by
// calling advance directly.
func newTestWait(log EventLogger, done *doneRecorder, start time.Time) *Wait {
	w := NewWait(log, nil, done.cb)
	w.now = func() time.Time { return start }
	return w
}

func TestWaitExpiresIntoDone(t *testing.T) {
	log := &logRecorder{}
	done := &doneRecorder{overtime: false}
	start := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	w := newTestWait(log, done, start)

	w.Start(10*time.Second, 0)
	assert.Equal(t, WaitActive, w.State())
	assert.Equal(t, 10*time.Second, w.Remaining(start))

	w.advance(start.Add(5 * time.Second))
	assert.Equal(t, WaitActive, w.State())

	w.advance(start.Add(10 * time.Second))
	assert.Equal(t, WaitDone, w.State())
	assert.Equal(t, 1, done.count())
	assert.Equal(t, []string{"waited"}, log.Types())
}

func TestWaitOvertimeAndOverdue(t *testing.T) {
	log := &logRecorder{}
	done := &doneRecorder{overtime: true}
	start := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	w := newTestWait(log, done, start)

	w.Start(10*time.Second, 5*time.Second)

	w.advance(start.Add(10 * time.Second))
	assert.Equal(t, WaitOvertime, w.State())
	assert.False(t, w.Overdue())
	assert.Equal(t, -2*time.Second, w.Remaining(start.Add(12*time.Second)),
		"overtime counts below zero")

	w.advance(start.Add(14 * time.Second))
	assert.False(t, w.Overdue())

	w.advance(start.Add(15 * time.Second))
	assert.True(t, w.Overdue())
	assert.Equal(t, WaitOvertime, w.State(), "overdue flags, it does not terminate")
	assert.Equal(t, []string{"waited", "overdue"}, log.Types())

	// Further ticks never duplicate the events.
	w.advance(start.Add(60 * time.Second))
	assert.Equal(t, []string{"waited", "overdue"}, log.Types())

	w.Stop()
	assert.Equal(t, WaitDone, w.State())
}

func TestWaitOverdueDisabled(t *testing.T) {
	log := &logRecorder{}
	done := &doneRecorder{overtime: true}
	start := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	w := newTestWait(log, done, start)

	w.Start(10*time.Second, 0)
	w.advance(start.Add(10 * time.Second))
	w.advance(start.Add(10 * time.Minute))

	assert.False(t, w.Overdue(), "a zero threshold disables the overdue flag")
	w.Stop()
}

func TestWaitStopIdempotent(t *testing.T) {
	done := &doneRecorder{}
	start := time.Now()
	w := newTestWait(&logRecorder{}, done, start)

	w.Start(time.Minute, 0)
	w.Stop()
	require.Equal(t, WaitDone, w.State())
	w.Stop()
	w.Stop()

	assert.Equal(t, 0, done.count(), "an operator stop never fires the done callback")
	assert.Zero(t, w.Remaining(start))
}

func TestWaitStartWhileActiveIgnored(t *testing.T) {
	start := time.Now()
	w := newTestWait(&logRecorder{}, &doneRecorder{}, start)

	w.Start(time.Minute, 0)
	first := w.Remaining(start)
	w.Start(time.Hour, 0)
	assert.Equal(t, first, w.Remaining(start), "a running wait cannot be restarted")
	w.Stop()
}
