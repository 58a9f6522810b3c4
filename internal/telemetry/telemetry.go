// Package telemetry records playback events (asset played, stopset
// skipped, waits, errors) and ships them to the server. Every event gets
// a uuid and is persisted until the server acknowledges it, so nothing
// is lost across disconnects or restarts.
package telemetry

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelara/stopsetd/internal/repository"
)

// flushInterval is how often unacknowledged events are resent.
const flushInterval = 30 * time.Second

var validTypes = map[string]struct{}{
	"played_asset":    {},
	"skipped_asset":   {},
	"played_stopset":  {},
	"skipped_stopset": {},
	"played_single":   {},
	"waited":          {},
	"overdue":         {},
	"login":           {},
	"logout":          {},
	"internal_error":  {},
	"unspecified":     {},
}

// Entry is one telemetry event as sent over the wire.
type Entry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
}

// Store persists events until they are acknowledged.
type Store interface {
	InsertPendingLog(repository.PendingLog) error
	ListPendingLogs() ([]repository.PendingLog, error)
	DeletePendingLogs(ids []string) error
}

// Logger queues events in memory and in Store. A Sender (the control
// channel) is attached once connected; until then events just accumulate.
type Logger struct {
	mu      sync.Mutex
	pending map[string]Entry
	store   Store
	send    func(entries []Entry)
	now     func() time.Time
}

func NewLogger(store Store) *Logger {
	l := &Logger{
		pending: make(map[string]Entry),
		store:   store,
		now:     time.Now,
	}
	if store != nil {
		logs, err := store.ListPendingLogs()
		if err != nil {
			slog.Warn("could not load pending telemetry", "err", err)
		}
		for _, pl := range logs {
			l.pending[pl.ID] = Entry{
				ID:          pl.ID,
				Type:        pl.EventType,
				CreatedAt:   pl.CreatedAt,
				Description: pl.Description,
			}
		}
	}
	return l
}

// SetSender attaches the transport. Called on (re)connect; a flush follows
// so anything queued while offline goes out immediately.
func (l *Logger) SetSender(send func(entries []Entry)) {
	l.mu.Lock()
	l.send = send
	l.mu.Unlock()
	l.Flush()
}

// Event records one telemetry event. Unknown types are coerced to
// "unspecified" rather than dropped.
func (l *Logger) Event(eventType, description string) {
	if _, ok := validTypes[eventType]; !ok {
		slog.Warn("unknown telemetry event type", "type", eventType)
		eventType = "unspecified"
	}
	e := Entry{
		ID:          uuid.NewString(),
		Type:        eventType,
		CreatedAt:   l.now(),
		Description: description,
	}
	slog.Info("telemetry event", "type", e.Type, "description", e.Description)

	l.mu.Lock()
	l.pending[e.ID] = e
	send := l.send
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.InsertPendingLog(repository.PendingLog{
			ID:          e.ID,
			EventType:   e.Type,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		}); err != nil {
			slog.Warn("could not persist telemetry event", "id", e.ID, "err", err)
		}
	}
	if send != nil {
		send([]Entry{e})
	}
}

// Ack removes events the server confirmed receiving.
func (l *Logger) Ack(ids []string) {
	l.mu.Lock()
	for _, id := range ids {
		delete(l.pending, id)
	}
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.DeletePendingLogs(ids); err != nil {
			slog.Warn("could not delete acknowledged telemetry", "err", err)
		}
	}
}

// Flush resends everything still unacknowledged, oldest first.
func (l *Logger) Flush() {
	l.mu.Lock()
	send := l.send
	entries := make([]Entry, 0, len(l.pending))
	for _, e := range l.pending {
		entries = append(entries, e)
	}
	l.mu.Unlock()

	if send == nil || len(entries) == 0 {
		return
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	send(entries)
}

// Pending reports how many events await acknowledgment.
func (l *Logger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Run periodically flushes until done closes.
func (l *Logger) Run(done <-chan struct{}) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			l.Flush()
		}
	}
}
