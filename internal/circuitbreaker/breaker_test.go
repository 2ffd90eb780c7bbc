package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errStoreDown = errors.New("store down")

func failing(ctx context.Context) error { return errStoreDown }
func succeeding(ctx context.Context) error { return nil }

func TestOpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{MaxFailures: 3, OpenFor: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Call(ctx, failing); !errors.Is(err, errStoreDown) {
			t.Fatalf("call %d: expected store error, got %v", i, err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	if err := cb.Call(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected fail-fast ErrCircuitOpen, got %v", err)
	}
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	cb := New(Config{MaxFailures: 1, OpenFor: 10 * time.Millisecond})
	ctx := context.Background()

	cb.Call(ctx, failing)
	if cb.State() != StateOpen {
		t.Fatalf("expected open after failure, got %v", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Call(ctx, succeeding); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(Config{MaxFailures: 1, OpenFor: 10 * time.Millisecond})
	ctx := context.Background()

	cb.Call(ctx, failing)
	time.Sleep(20 * time.Millisecond)
	cb.Call(ctx, failing)

	if cb.State() != StateOpen {
		t.Fatalf("expected reopen after failed probe, got %v", cb.State())
	}
}

func TestCallEnforcesTimeout(t *testing.T) {
	cb := New(Config{CallTimeout: 20 * time.Millisecond})

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{MaxFailures: 2, OpenFor: time.Minute})
	ctx := context.Background()

	cb.Call(ctx, failing)
	cb.Call(ctx, succeeding)
	cb.Call(ctx, failing)

	if cb.State() != StateClosed {
		t.Fatalf("expected closed (failures interleaved with success), got %v", cb.State())
	}
}

func TestReset(t *testing.T) {
	cb := New(Config{MaxFailures: 1})
	ctx := context.Background()

	cb.Call(ctx, failing)
	cb.Reset()

	if cb.State() != StateClosed {
		t.Fatalf("expected closed after Reset, got %v", cb.State())
	}
	if err := cb.Call(ctx, succeeding); err != nil {
		t.Fatalf("call after Reset failed: %v", err)
	}
}
