package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/storage"
)

const (
	OutcomeSuccess      = "success"
	OutcomeBlocked      = "blocked"
	OutcomeUnauthorized = "unauthorized"
	OutcomeDisabled     = "disabled"
)

// Placeholder stream for requests that carried no API key at all
const anonymousKey = "anonymous"

// Trimming on every append would double the write cost, so streams are
// trimmed once every trimEvery appends. Lengths are approximate by design.
const trimEvery = 50

// One admission decision as recorded in the event streams
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	APIKeyID  string    `json:"api_key_id,omitempty"`
	Endpoint  string    `json:"endpoint"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
}

// Append-only decision streams in Redis, one list per key plus one global.
// Readers get newest-first slices; writers never block on trimming.
type Log struct {
	redis       *storage.RedisClient
	keyLimit    int64
	globalLimit int64
	appends     atomic.Int64
}

func NewLog(redis *storage.RedisClient, keyLimit, globalLimit int) *Log {
	if keyLimit <= 0 {
		keyLimit = 1000
	}
	if globalLimit <= 0 {
		globalLimit = 10000
	}

	return &Log{
		redis:       redis,
		keyLimit:    int64(keyLimit),
		globalLimit: int64(globalLimit),
	}
}

func streamKey(key string) string {
	if key == "" {
		key = anonymousKey
	}
	return "events:key:" + key
}

const globalStream = "events:global"

// Append records one event on the key's stream and the global stream.
func (l *Log) Append(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := l.redis.LPush(ctx, streamKey(key), payload); err != nil {
		return fmt.Errorf("failed to append key event: %w", err)
	}
	if err := l.redis.LPush(ctx, globalStream, payload); err != nil {
		return fmt.Errorf("failed to append global event: %w", err)
	}

	if l.appends.Add(1)%trimEvery == 0 {
		l.trim(ctx, streamKey(key))
	}

	return nil
}

func (l *Log) trim(ctx context.Context, keyStream string) {
	// Best effort - an untrimmed stream is caught on a later pass
	l.redis.LTrim(ctx, keyStream, 0, l.keyLimit-1)
	l.redis.LTrim(ctx, globalStream, 0, l.globalLimit-1)
}

// Recent returns up to count events newest-first. An empty key reads the
// global stream. Fewer events than asked for is not an error.
func (l *Log) Recent(ctx context.Context, key string, count int) ([]Event, error) {
	stream := globalStream
	if key != "" {
		stream = streamKey(key)
	}

	raw, err := l.redis.LRange(ctx, stream, 0, int64(count)-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, entry := range raw {
		var event Event
		if err := json.Unmarshal([]byte(entry), &event); err != nil {
			// Skip corrupt entries rather than failing the whole read
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// BlockedCount derives how many of the key's retained events were rate-limit
// rejections. Bounded by the per-key stream cap, so this is a recent count,
// not an all-time total.
func (l *Log) BlockedCount(ctx context.Context, key string) (int, error) {
	raw, err := l.redis.LRange(ctx, streamKey(key), 0, -1)
	if err != nil {
		return 0, fmt.Errorf("failed to read events: %w", err)
	}

	blocked := 0
	for _, entry := range raw {
		var event Event
		if err := json.Unmarshal([]byte(entry), &event); err != nil {
			continue
		}
		if event.Outcome == OutcomeBlocked {
			blocked++
		}
	}

	return blocked, nil
}
