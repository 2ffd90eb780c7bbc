package admission

import (
	"context"
	"log"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/circuitbreaker"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/counter"
	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/events"
)

// Reason codes carried on rejected verdicts
const (
	ReasonMissingKey  = "missing_credential"
	ReasonUnknownKey  = "unknown_credential"
	ReasonDisabled    = "disabled"
	ReasonOverLimit   = "over_limit"
	ReasonUnavailable = "limiter_unavailable"
)

// Verdict is the admit/reject decision for one request. Admitted verdicts
// carry the counts observed by this request's own increment so callers can
// surface remaining-quota headers.
type Verdict struct {
	Admitted          bool   `json:"admitted"`
	ReasonCode        string `json:"reason_code,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	MinuteCount       int64  `json:"minute_count"`
	DayCount          int64  `json:"day_count"`
	MinuteLimit       int    `json:"minute_limit"`
	DayLimit          int    `json:"day_limit"`
	KeyID             string `json:"-"`
	KeyName           string `json:"-"`
}

// ResolvedKey is the credential snapshot the engine decides against
type ResolvedKey struct {
	ID                string
	Name              string
	Tier              string
	RequestsPerMinute int
	RequestsPerDay    int
	IsActive          bool
}

// Resolver finds the credential for a secret, trying the metadata cache
// before the database and repairing the cache on a miss. nil means unknown.
type Resolver interface {
	Resolve(ctx context.Context, secret string) (*ResolvedKey, error)
}

type CounterStore interface {
	CheckAndIncrement(ctx context.Context, key string, minuteLimit, dayLimit int) (*counter.Result, error)
}

type EventAppender interface {
	Append(ctx context.Context, key string, event events.Event) error
}

// Engine runs the per-request decision flow:
// resolve -> disabled check -> atomic counter check -> event -> verdict.
// Constructed once at boot and shared by every request handler - there is
// no package-level state.
type Engine struct {
	resolver Resolver
	counters CounterStore
	events   EventAppender
	breaker  *circuitbreaker.CircuitBreaker

	// A request whose limits cannot be verified is rejected unless failOpen
	// is set. Rejecting is the default: admitting under a counter store
	// outage would suspend every limit at once.
	failOpen bool

	now func() time.Time
}

func NewEngine(resolver Resolver, counters CounterStore, eventLog EventAppender, breaker *circuitbreaker.CircuitBreaker, failOpen bool) *Engine {
	return &Engine{
		resolver: resolver,
		counters: counters,
		events:   eventLog,
		breaker:  breaker,
		failOpen: failOpen,
		now:      time.Now,
	}
}

// Check decides whether the request presenting secret may proceed. It always
// returns a verdict - store failures become reject/admit per the configured
// policy, never an error the caller has to interpret.
func (e *Engine) Check(ctx context.Context, secret, endpoint string) *Verdict {
	start := e.now()

	if secret == "" {
		verdict := &Verdict{Admitted: false, ReasonCode: ReasonMissingKey}
		e.emit("", "", endpoint, events.OutcomeUnauthorized, ReasonMissingKey, start)
		return verdict
	}

	key, err := e.resolver.Resolve(ctx, secret)
	if err != nil {
		// The secret was never verified, so its outage event stays on the
		// anonymous stream like any other unknown credential
		log.Printf("admission: resolve failed for endpoint %s: %v", endpoint, err)
		return e.unverifiable("", "", endpoint, start)
	}

	if key == nil {
		verdict := &Verdict{Admitted: false, ReasonCode: ReasonUnknownKey}
		// Unknown secrets share the anonymous stream so an attacker cannot
		// mint one event stream per guess
		e.emit("", "", endpoint, events.OutcomeUnauthorized, ReasonUnknownKey, start)
		return verdict
	}

	if !key.IsActive {
		// Checked before the counters: a disabled key spends no increments
		verdict := &Verdict{Admitted: false, ReasonCode: ReasonDisabled, KeyID: key.ID, KeyName: key.Name}
		e.emit(secret, key.ID, endpoint, events.OutcomeDisabled, ReasonDisabled, start)
		return verdict
	}

	if key.RequestsPerMinute <= 0 || key.RequestsPerDay <= 0 {
		log.Printf("admission: key %s has invalid limits (%d/min %d/day)", key.ID, key.RequestsPerMinute, key.RequestsPerDay)
		return e.unverifiable(secret, key.ID, endpoint, start)
	}

	var result *counter.Result
	err = e.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = e.counters.CheckAndIncrement(ctx, secret, key.RequestsPerMinute, key.RequestsPerDay)
		return callErr
	})
	if err != nil {
		log.Printf("admission: counter check failed for key %s: %v", key.ID, err)
		return e.unverifiable(secret, key.ID, endpoint, start)
	}

	if result.OverLimit {
		verdict := &Verdict{
			Admitted:          false,
			ReasonCode:        ReasonOverLimit,
			RetryAfterSeconds: secondsToNextMinute(start),
			MinuteCount:       result.MinuteCount,
			DayCount:          result.DayCount,
			MinuteLimit:       key.RequestsPerMinute,
			DayLimit:          key.RequestsPerDay,
			KeyID:             key.ID,
			KeyName:           key.Name,
		}
		e.emit(secret, key.ID, endpoint, events.OutcomeBlocked, ReasonOverLimit, start)
		return verdict
	}

	verdict := &Verdict{
		Admitted:    true,
		MinuteCount: result.MinuteCount,
		DayCount:    result.DayCount,
		MinuteLimit: key.RequestsPerMinute,
		DayLimit:    key.RequestsPerDay,
		KeyID:       key.ID,
		KeyName:     key.Name,
	}
	e.emit(secret, key.ID, endpoint, events.OutcomeSuccess, "", start)
	return verdict
}

// unverifiable applies the fail-open/fail-closed policy. For a resolved
// credential the event carries its secret so the outage shows up in that
// key's history.
func (e *Engine) unverifiable(secret, keyID, endpoint string, start time.Time) *Verdict {
	if e.failOpen {
		e.emit(secret, keyID, endpoint, events.OutcomeSuccess, ReasonUnavailable, start)
		return &Verdict{Admitted: true, KeyID: keyID}
	}

	e.emit(secret, keyID, endpoint, events.OutcomeUnauthorized, ReasonUnavailable, start)
	return &Verdict{Admitted: false, ReasonCode: ReasonUnavailable, KeyID: keyID}
}

// emit appends the decision event without ever blocking or failing the
// verdict. The request context is deliberately not reused - the response may
// be written before the append lands.
func (e *Engine) emit(secret, keyID, endpoint, outcome, reason string, start time.Time) {
	event := events.Event{
		Timestamp: start,
		APIKeyID:  keyID,
		Endpoint:  endpoint,
		Outcome:   outcome,
		Reason:    reason,
		LatencyMs: time.Since(start).Milliseconds(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := e.events.Append(ctx, secret, event); err != nil {
			log.Printf("admission: event append failed: %v", err)
		}
	}()
}

func secondsToNextMinute(t time.Time) int {
	remaining := 60 - t.Second()
	if remaining <= 0 {
		remaining = 60
	}
	return remaining
}
