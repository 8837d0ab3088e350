package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanQueue chan cache.RoomActionRecord

func (q chanQueue) Pop(ctx context.Context, timeout time.Duration) (*cache.RoomActionRecord, error) {
	select {
	case rec := <-q:
		return &rec, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type memStore struct {
	mu        sync.Mutex
	batches   [][]cache.RoomActionRecord
	failures  int
	cutoffs   []time.Time
	abandoned int64
}

func (m *memStore) InsertActions(_ context.Context, recs []cache.RoomActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("db down")
	}
	m.batches = append(m.batches, append([]cache.RoomActionRecord(nil), recs...))
	return nil
}

func (m *memStore) MarkAbandoned(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.abandoned, nil
}

func (m *memStore) stored() []cache.RoomActionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []cache.RoomActionRecord
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func records(n int) []cache.RoomActionRecord {
	session := uuid.New()
	out := make([]cache.RoomActionRecord, n)
	for i := range out {
		out[i] = cache.RoomActionRecord{SessionID: session, RoomCode: "ABC123", ActionIndex: uint64(i + 1), ActionType: "player_answered"}
	}
	return out
}

func runService(t *testing.T, svc *Service) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("historian did not stop")
		}
	}
}

func TestFlushesFullBatches(t *testing.T) {
	q := make(chanQueue, 16)
	store := &memStore{}
	svc := New(q, store, Config{BatchSize: 3, FlushInterval: time.Hour}, quietLogger())
	stop := runService(t, svc)

	for _, rec := range records(6) {
		q <- rec
	}
	assert.Eventually(t, func() bool { return len(store.stored()) == 6 }, time.Second, 5*time.Millisecond)
	stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.batches, 2)
	assert.Len(t, store.batches[0], 3)
}

func TestFlushesPartialBatchOnInterval(t *testing.T) {
	q := make(chanQueue, 16)
	store := &memStore{}
	svc := New(q, store, Config{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, quietLogger())
	stop := runService(t, svc)
	defer stop()

	q <- records(1)[0]
	assert.Eventually(t, func() bool { return len(store.stored()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestFlushesRemainderOnShutdown(t *testing.T) {
	q := make(chanQueue, 16)
	store := &memStore{}
	svc := New(q, store, Config{BatchSize: 100, FlushInterval: time.Hour}, quietLogger())
	stop := runService(t, svc)

	recs := records(2)
	q <- recs[0]
	q <- recs[1]
	assert.Eventually(t, func() bool { return len(q) == 0 }, time.Second, 5*time.Millisecond)
	// The second record may still be in flight inside Pop.
	time.Sleep(20 * time.Millisecond)
	stop()
	assert.Len(t, store.stored(), 2)
}

func TestRetainsBatchAfterFailedFlush(t *testing.T) {
	q := make(chanQueue, 16)
	store := &memStore{failures: 1}
	svc := New(q, store, Config{BatchSize: 2, FlushInterval: 20 * time.Millisecond}, quietLogger())
	stop := runService(t, svc)
	defer stop()

	for _, rec := range records(2) {
		q <- rec
	}
	assert.Eventually(t, func() bool { return len(store.stored()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestSweepMarksAbandoned(t *testing.T) {
	store := &memStore{abandoned: 1}
	svc := New(make(chanQueue), store, Config{
		FlushInterval: 10 * time.Millisecond,
		Inactivity:    time.Hour,
		SweepInterval: 10 * time.Millisecond,
	}, quietLogger())
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	stop := runService(t, svc)

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.cutoffs) > 0
	}, time.Second, 5*time.Millisecond)
	stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, fixed.Add(-time.Hour), store.cutoffs[0])
}
