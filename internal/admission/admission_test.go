package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/circuitbreaker"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/counter"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/events"
)

type fakeResolver struct {
	key *ResolvedKey
	err error
}

func (f *fakeResolver) Resolve(ctx context.Context, secret string) (*ResolvedKey, error) {
	return f.key, f.err
}

type fakeCounter struct {
	mu     sync.Mutex
	result *counter.Result
	err    error
	calls  int
}

func (f *fakeCounter) CheckAndIncrement(ctx context.Context, key string, minuteLimit, dayLimit int) (*counter.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeCounter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type appended struct {
	key   string
	event events.Event
}

type recordingEvents struct {
	ch chan appended
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{ch: make(chan appended, 16)}
}

func (r *recordingEvents) Append(ctx context.Context, key string, event events.Event) error {
	r.ch <- appended{key: key, event: event}
	return nil
}

func (r *recordingEvents) next(t *testing.T) appended {
	t.Helper()
	select {
	case got := <-r.ch:
		return got
	case <-time.After(time.Second):
		t.Fatal("no event appended within 1s")
		return appended{}
	}
}

func activeKey() *ResolvedKey {
	return &ResolvedKey{
		ID:                "11111111-1111-1111-1111-111111111111",
		Name:              "test key",
		Tier:              "basic",
		RequestsPerMinute: 1200,
		RequestsPerDay:    1728000,
		IsActive:          true,
	}
}

func newTestEngine(resolver Resolver, counters CounterStore, eventLog EventAppender, failOpen bool) *Engine {
	breaker := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 100})
	return NewEngine(resolver, counters, eventLog, breaker, failOpen)
}

func TestMissingSecretRejected(t *testing.T) {
	counters := &fakeCounter{}
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{}, counters, eventLog, false)

	verdict := engine.Check(context.Background(), "", "/api/data")

	if verdict.Admitted {
		t.Fatal("expected rejection")
	}
	if verdict.ReasonCode != ReasonMissingKey {
		t.Fatalf("expected %s, got %s", ReasonMissingKey, verdict.ReasonCode)
	}
	if counters.callCount() != 0 {
		t.Fatal("counter store must not be touched without a credential")
	}

	got := eventLog.next(t)
	if got.key != "" || got.event.Outcome != events.OutcomeUnauthorized {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestUnknownSecretRejected(t *testing.T) {
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{key: nil}, &fakeCounter{}, eventLog, false)

	verdict := engine.Check(context.Background(), "gw_bogus", "/api/data")

	if verdict.Admitted || verdict.ReasonCode != ReasonUnknownKey {
		t.Fatalf("expected unknown_credential rejection, got %+v", verdict)
	}

	got := eventLog.next(t)
	if got.key != "" {
		t.Fatalf("unknown secrets must not mint event streams, got stream for %q", got.key)
	}
}

func TestDisabledKeyRejectedWithoutCounting(t *testing.T) {
	key := activeKey()
	key.IsActive = false
	counters := &fakeCounter{}
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{key: key}, counters, eventLog, false)

	verdict := engine.Check(context.Background(), "gw_secret", "/api/data")

	if verdict.Admitted || verdict.ReasonCode != ReasonDisabled {
		t.Fatalf("expected disabled rejection, got %+v", verdict)
	}
	if counters.callCount() != 0 {
		t.Fatal("disabled key must not spend a counter increment")
	}

	got := eventLog.next(t)
	if got.event.Outcome != events.OutcomeDisabled || got.key != "gw_secret" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestAdmittedVerdictCarriesCounts(t *testing.T) {
	counters := &fakeCounter{result: &counter.Result{MinuteCount: 7, DayCount: 42}}
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{key: activeKey()}, counters, eventLog, false)

	verdict := engine.Check(context.Background(), "gw_secret", "/api/data")

	if !verdict.Admitted {
		t.Fatalf("expected admission, got %+v", verdict)
	}
	if verdict.MinuteCount != 7 || verdict.DayCount != 42 {
		t.Fatalf("counts not carried: %+v", verdict)
	}
	if verdict.MinuteLimit != 1200 || verdict.DayLimit != 1728000 {
		t.Fatalf("limits not carried: %+v", verdict)
	}

	got := eventLog.next(t)
	if got.event.Outcome != events.OutcomeSuccess {
		t.Fatalf("unexpected event outcome: %s", got.event.Outcome)
	}
	if got.event.APIKeyID != activeKey().ID {
		t.Fatalf("event missing key id: %+v", got.event)
	}
}

func TestOverLimitRejectedWithRetryAfter(t *testing.T) {
	counters := &fakeCounter{result: &counter.Result{MinuteCount: 1201, DayCount: 1201, OverLimit: true}}
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{key: activeKey()}, counters, eventLog, false)
	engine.now = func() time.Time {
		return time.Date(2025, 6, 15, 10, 30, 25, 0, time.UTC)
	}

	verdict := engine.Check(context.Background(), "gw_secret", "/api/data")

	if verdict.Admitted || verdict.ReasonCode != ReasonOverLimit {
		t.Fatalf("expected over_limit rejection, got %+v", verdict)
	}
	if verdict.RetryAfterSeconds != 35 {
		t.Fatalf("expected retry after 35s (second 25 of minute), got %d", verdict.RetryAfterSeconds)
	}

	got := eventLog.next(t)
	if got.event.Outcome != events.OutcomeBlocked {
		t.Fatalf("unexpected event outcome: %s", got.event.Outcome)
	}
}

func TestRetryAfterAlwaysWithinMinute(t *testing.T) {
	for second := 0; second < 60; second++ {
		at := time.Date(2025, 6, 15, 10, 30, second, 0, time.UTC)
		got := secondsToNextMinute(at)
		if got < 1 || got > 60 {
			t.Fatalf("second %d: retry-after %d outside [1,60]", second, got)
		}
	}
}

func TestCounterFailureFailsClosed(t *testing.T) {
	counters := &fakeCounter{err: errors.New("redis timeout")}
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{key: activeKey()}, counters, eventLog, false)

	verdict := engine.Check(context.Background(), "gw_secret", "/api/data")

	if verdict.Admitted {
		t.Fatal("fail-closed engine must reject when counters are unavailable")
	}
	if verdict.ReasonCode != ReasonUnavailable {
		t.Fatalf("expected %s, got %s", ReasonUnavailable, verdict.ReasonCode)
	}
}

func TestCounterFailureEventsLandOnKeyStream(t *testing.T) {
	counters := &fakeCounter{err: errors.New("redis timeout")}
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{key: activeKey()}, counters, eventLog, false)

	engine.Check(context.Background(), "gw_secret", "/api/data")

	got := eventLog.next(t)
	if got.key != "gw_secret" {
		t.Fatalf("outage for a resolved credential must reach its own stream, got %q", got.key)
	}
	if got.event.Reason != ReasonUnavailable || got.event.APIKeyID != activeKey().ID {
		t.Fatalf("unexpected event: %+v", got.event)
	}
}

func TestCounterFailureFailsOpenWhenConfigured(t *testing.T) {
	counters := &fakeCounter{err: errors.New("redis timeout")}
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{key: activeKey()}, counters, eventLog, true)

	verdict := engine.Check(context.Background(), "gw_secret", "/api/data")

	if !verdict.Admitted {
		t.Fatalf("fail-open engine must admit when counters are unavailable, got %+v", verdict)
	}
}

func TestResolverFailureFollowsPolicy(t *testing.T) {
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{err: errors.New("db down")}, &fakeCounter{}, eventLog, false)

	verdict := engine.Check(context.Background(), "gw_secret", "/api/data")

	if verdict.Admitted || verdict.ReasonCode != ReasonUnavailable {
		t.Fatalf("expected fail-closed rejection on resolver failure, got %+v", verdict)
	}
}

func TestInvalidStoredLimitsNeverReachCounter(t *testing.T) {
	key := activeKey()
	key.RequestsPerMinute = 0
	counters := &fakeCounter{}
	eventLog := newRecordingEvents()
	engine := newTestEngine(&fakeResolver{key: key}, counters, eventLog, false)

	verdict := engine.Check(context.Background(), "gw_secret", "/api/data")

	if verdict.Admitted {
		t.Fatal("expected rejection for misconfigured limits")
	}
	if counters.callCount() != 0 {
		t.Fatal("counter store must not see non-positive limits")
	}
}

func TestOpenCircuitRejectsFast(t *testing.T) {
	counters := &fakeCounter{err: errors.New("redis timeout")}
	eventLog := newRecordingEvents()
	breaker := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 1, OpenFor: time.Minute})
	engine := NewEngine(&fakeResolver{key: activeKey()}, counters, eventLog, breaker, false)

	engine.Check(context.Background(), "gw_secret", "/api/data")
	before := counters.callCount()

	verdict := engine.Check(context.Background(), "gw_secret", "/api/data")

	if verdict.Admitted || verdict.ReasonCode != ReasonUnavailable {
		t.Fatalf("expected unavailable rejection from open circuit, got %+v", verdict)
	}
	if counters.callCount() != before {
		t.Fatal("open circuit must not hit the counter store")
	}
}
