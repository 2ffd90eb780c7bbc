package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/storage"
)

func newTestLog(t *testing.T, keyLimit, globalLimit int) (*Log, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := storage.NewRedis(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("storage.NewRedis failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewLog(client, keyLimit, globalLimit), mr
}

func sampleEvent(outcome string) Event {
	return Event{
		Timestamp: time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
		APIKeyID:  "11111111-1111-1111-1111-111111111111",
		Endpoint:  "/api/data",
		Outcome:   outcome,
		LatencyMs: 3,
	}
}

func TestAppendAndRecentNewestFirst(t *testing.T) {
	eventLog, _ := newTestLog(t, 100, 1000)
	ctx := context.Background()

	for i, endpoint := range []string{"/a", "/b", "/c"} {
		event := sampleEvent(OutcomeSuccess)
		event.Endpoint = endpoint
		event.LatencyMs = int64(i)
		if err := eventLog.Append(ctx, "key-1", event); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recent, err := eventLog.Recent(ctx, "key-1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recent))
	}
	if recent[0].Endpoint != "/c" || recent[2].Endpoint != "/a" {
		t.Fatalf("events not newest-first: %+v", recent)
	}
}

func TestAppendWritesGlobalStream(t *testing.T) {
	eventLog, _ := newTestLog(t, 100, 1000)
	ctx := context.Background()

	if err := eventLog.Append(ctx, "key-1", sampleEvent(OutcomeSuccess)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := eventLog.Append(ctx, "key-2", sampleEvent(OutcomeBlocked)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	global, err := eventLog.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(global) != 2 {
		t.Fatalf("expected 2 global events, got %d", len(global))
	}

	perKey, err := eventLog.Recent(ctx, "key-1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(perKey) != 1 {
		t.Fatalf("expected 1 event for key-1, got %d", len(perKey))
	}
}

func TestAnonymousEventsGetPlaceholderStream(t *testing.T) {
	eventLog, mr := newTestLog(t, 100, 1000)

	if err := eventLog.Append(context.Background(), "", sampleEvent(OutcomeUnauthorized)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if !mr.Exists("events:key:anonymous") {
		t.Fatal("expected anonymous events stream to exist")
	}
}

func TestRecentShortReadIsNotAnError(t *testing.T) {
	eventLog, _ := newTestLog(t, 100, 1000)
	ctx := context.Background()

	if err := eventLog.Append(ctx, "key-1", sampleEvent(OutcomeSuccess)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	recent, err := eventLog.Recent(ctx, "key-1", 50)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 event, got %d", len(recent))
	}
}

func TestStreamsTrimmedOpportunistically(t *testing.T) {
	eventLog, mr := newTestLog(t, 10, 20)
	ctx := context.Background()

	// Enough appends to guarantee at least one trim pass
	for i := 0; i < trimEvery*2; i++ {
		if err := eventLog.Append(ctx, "key-1", sampleEvent(OutcomeSuccess)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	keyLen, err := mr.List("events:key:key-1")
	if err != nil {
		t.Fatalf("reading key stream: %v", err)
	}
	if len(keyLen) > trimEvery+10 {
		t.Fatalf("key stream never trimmed: %d entries", len(keyLen))
	}

	globalLen, err := mr.List("events:global")
	if err != nil {
		t.Fatalf("reading global stream: %v", err)
	}
	if len(globalLen) > trimEvery+20 {
		t.Fatalf("global stream never trimmed: %d entries", len(globalLen))
	}
}

func TestBlockedCountFiltersOutcome(t *testing.T) {
	eventLog, _ := newTestLog(t, 100, 1000)
	ctx := context.Background()

	outcomes := []string{
		OutcomeSuccess, OutcomeBlocked, OutcomeSuccess,
		OutcomeBlocked, OutcomeBlocked, OutcomeDisabled,
	}
	for _, outcome := range outcomes {
		if err := eventLog.Append(ctx, "key-1", sampleEvent(outcome)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	blocked, err := eventLog.BlockedCount(ctx, "key-1")
	if err != nil {
		t.Fatalf("BlockedCount failed: %v", err)
	}
	if blocked != 3 {
		t.Fatalf("expected 3 blocked events, got %d", blocked)
	}
}

func TestRecentToleratesCorruptEntries(t *testing.T) {
	eventLog, mr := newTestLog(t, 100, 1000)
	ctx := context.Background()

	if err := eventLog.Append(ctx, "key-1", sampleEvent(OutcomeSuccess)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	mr.Lpush("events:key:key-1", "not json")

	recent, err := eventLog.Recent(ctx, "key-1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected corrupt entry to be skipped, got %d events", len(recent))
	}
}
