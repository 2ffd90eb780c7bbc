package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/models"
)

type fakeLogStore struct {
	mu      sync.Mutex
	batches [][]*models.RequestLog
	cutoffs []time.Time
}

func (f *fakeLogStore) CreateBatch(ctx context.Context, logs []*models.RequestLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, logs)
	return nil
}

func (f *fakeLogStore) DeleteOldLogs(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return 0, nil
}

func (f *fakeLogStore) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeLogStore) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRecorderFlushesFullBatch(t *testing.T) {
	store := &fakeLogStore{}
	recorder := NewDecisionRecorder(store, 500, 30)
	recorder.Start()

	for i := 0; i < 100; i++ {
		recorder.Record(models.RequestLog{Endpoint: "/api/data"})
	}

	waitFor(t, "batch insert", func() bool { return store.batchCount() > 0 })

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.batches[0]) != 100 {
		t.Fatalf("expected a full batch of 100, got %d", len(store.batches[0]))
	}

	recorder.Stop()
}

func TestRecorderFlushesOnStop(t *testing.T) {
	store := &fakeLogStore{}
	recorder := NewDecisionRecorder(store, 500, 30)
	recorder.Start()

	recorder.Record(models.RequestLog{Endpoint: "/a"})
	recorder.Record(models.RequestLog{Endpoint: "/b"})
	recorder.Stop()

	if store.batchCount() != 1 || len(store.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 after Stop, got %+v", store.batches)
	}
}

func TestRecorderDropsWhenBufferFull(t *testing.T) {
	store := &fakeLogStore{}
	recorder := NewDecisionRecorder(store, 1, 30)

	// No worker running, so the second entry has nowhere to go
	recorder.Record(models.RequestLog{Endpoint: "/a"})
	recorder.Record(models.RequestLog{Endpoint: "/b"})

	if len(recorder.entries) != 1 {
		t.Fatalf("expected the overflow entry to be dropped, buffer holds %d", len(recorder.entries))
	}
}

func TestRecorderSweepsExpiredLogs(t *testing.T) {
	store := &fakeLogStore{}
	recorder := NewDecisionRecorder(store, 10, 7)
	recorder.sweepEvery = 10 * time.Millisecond
	recorder.Start()

	waitFor(t, "retention sweep", func() bool { return store.sweepCount() > 0 })
	recorder.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	want := time.Now().AddDate(0, 0, -7)
	if diff := want.Sub(store.cutoffs[0]); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expected a 7 day cutoff, got %v", store.cutoffs[0])
	}
}
