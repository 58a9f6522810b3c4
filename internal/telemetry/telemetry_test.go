package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelara/stopsetd/internal/repository"
)

type memLogStore struct {
	mu   sync.Mutex
	logs map[string]repository.PendingLog
}

func newMemLogStore() *memLogStore {
	return &memLogStore{logs: map[string]repository.PendingLog{}}
}

func (m *memLogStore) InsertPendingLog(l repository.PendingLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[l.ID] = l
	return nil
}

func (m *memLogStore) ListPendingLogs() ([]repository.PendingLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.PendingLog, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l)
	}
	return out, nil
}

func (m *memLogStore) DeletePendingLogs(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.logs, id)
	}
	return nil
}

func (m *memLogStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func TestEventQueuesUntilAck(t *testing.T) {
	store := newMemLogStore()
	l := NewLogger(store)

	l.Event("played_asset", "[Stopset=s] [Rotator=r] [Asset=a]")
	l.Event("waited", "Waited 90 seconds between stopsets")

	assert.Equal(t, 2, l.Pending())
	assert.Equal(t, 2, store.count(), "events persist before any transport exists")
}

func TestSenderReceivesEventsImmediately(t *testing.T) {
	l := NewLogger(nil)
	var mu sync.Mutex
	var got []Entry
	l.SetSender(func(entries []Entry) {
		mu.Lock()
		got = append(got, entries...)
		mu.Unlock()
	})

	l.Event("played_stopset", "Played stopset morning drive")
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "played_stopset", got[0].Type)
	assert.NotEmpty(t, got[0].ID)
}

func TestAckClearsPending(t *testing.T) {
	store := newMemLogStore()
	l := NewLogger(store)

	l.Event("played_asset", "a")
	l.Event("played_asset", "b")

	var ids []string
	l.SetSender(func(entries []Entry) {
		ids = ids[:0]
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
	})
	require.Len(t, ids, 2, "attaching a sender flushes the backlog")

	l.Ack(ids[:1])
	assert.Equal(t, 1, l.Pending())
	assert.Equal(t, 1, store.count())

	l.Ack(ids[1:])
	assert.Zero(t, l.Pending())
	assert.Zero(t, store.count())
}

func TestFlushResendsOldestFirst(t *testing.T) {
	l := NewLogger(nil)
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	step := 0
	l.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	l.Event("played_asset", "first")
	l.Event("played_asset", "second")
	l.Event("played_asset", "third")

	var got []Entry
	l.SetSender(func(entries []Entry) { got = entries })
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Description)
	assert.Equal(t, "third", got[2].Description)
}

func TestUnknownTypeCoerced(t *testing.T) {
	l := NewLogger(nil)
	var got []Entry
	l.SetSender(func(entries []Entry) { got = append(got, entries...) })

	l.Event("made_up_event", "whatever")
	require.Len(t, got, 1)
	assert.Equal(t, "unspecified", got[0].Type)
}

func TestLoggerRestoresPersistedQueue(t *testing.T) {
	store := newMemLogStore()
	first := NewLogger(store)
	first.Event("internal_error", "it broke")

	second := NewLogger(store)
	assert.Equal(t, 1, second.Pending(), "a restart re-queues whatever was never acked")
}
