package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/matchgate/internal/certpool"
	"github.com/energizer-project/matchgate/internal/config"
	"github.com/energizer-project/matchgate/internal/db"
	"github.com/energizer-project/matchgate/internal/events"
)

func setupTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.NewStore(filepath.Join(t.TempDir(), "matchgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []interface{}
}

func (p *recordingPublisher) PublishStatus(status interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
}

func newTestScheduler(t *testing.T, lowWater int) (*Scheduler, *db.Store, *events.EventBus) {
	t.Helper()
	store := setupTestStore(t)
	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	cfg := config.DefaultConfig()
	cfg.Certificates.LowWater = lowWater

	pool := certpool.New(store, certpool.Options{EventBus: bus})
	return NewScheduler(cfg, pool, store, bus, nil), store, bus
}

func TestCheckPoolHealthEmitsOnTransition(t *testing.T) {
	s, store, bus := newTestScheduler(t, 2)
	ctx := context.Background()

	low := make(chan events.Event, 4)
	bus.Subscribe(events.EventPoolLow, "test", func(ctx context.Context, e events.Event) error {
		low <- e
		return nil
	})

	_, err := store.AddCertificates(ctx, "a")
	require.NoError(t, err)

	s.CheckPoolHealth(ctx)
	s.CheckPoolHealth(ctx)

	select {
	case e := <-low:
		payload, ok := e.Payload.(events.PoolPayload)
		require.True(t, ok)
		assert.Equal(t, 1, payload.Available)
		assert.Equal(t, 2, payload.LowWater)
	case <-time.After(2 * time.Second):
		t.Fatal("pool_low not emitted")
	}

	select {
	case <-low:
		t.Fatal("pool_low emitted twice while still low")
	case <-time.After(100 * time.Millisecond):
	}

	// Recover, then drop again.
	_, err = store.AddCertificates(ctx, "b", "c")
	require.NoError(t, err)
	s.CheckPoolHealth(ctx)
	_, err = store.ClaimCertificate(ctx, time.Now())
	require.NoError(t, err)
	_, err = store.ClaimCertificate(ctx, time.Now())
	require.NoError(t, err)
	s.CheckPoolHealth(ctx)

	select {
	case <-low:
	case <-time.After(2 * time.Second):
		t.Fatal("pool_low not emitted after recovery")
	}
}

func TestCollectStats(t *testing.T) {
	s, store, _ := newTestScheduler(t, 0)
	ctx := context.Background()

	_, err := store.AddCertificates(ctx, "a", "b")
	require.NoError(t, err)
	_, err = store.CreateSession(ctx, "csid-1", 1, time.Now())
	require.NoError(t, err)

	stats, err := s.CollectStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sessions[db.SessionCreated])
	assert.Equal(t, 2, stats.Certificates.Available)
	assert.Equal(t, 0, stats.Reports.Total)
}

func TestPublishStatus(t *testing.T) {
	s, _, _ := newTestScheduler(t, 0)
	pub := &recordingPublisher{}
	s.publisher = pub

	s.PublishStatus(context.Background())

	require.Len(t, pub.statuses, 1)
	_, ok := pub.statuses[0].(*Stats)
	assert.True(t, ok)
}

func TestReclaimCertificates(t *testing.T) {
	s, store, _ := newTestScheduler(t, 0)
	ctx := context.Background()

	_, err := store.AddCertificates(ctx, "a")
	require.NoError(t, err)
	_, err = store.ClaimCertificate(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	s.ReclaimCertificates(ctx)

	stats, err := store.CertificateStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Available)
}

func TestStartStops(t *testing.T) {
	s, _, _ := newTestScheduler(t, 0)
	s.cfg.Certificates.ReclaimEnabled = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute uint
	}{
		{"04:00", 4, 0},
		{"23:59", 23, 59},
		{"7:05", 7, 5},
		{"", 4, 0},
		{"25:00", 4, 0},
		{"ab:cd", 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m := parseClock(tt.in)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}
