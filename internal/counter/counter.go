package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/storage"
	"github.com/redis/go-redis/v9"
)

// ErrInvalidLimit is returned when a caller passes a non-positive limit.
var ErrInvalidLimit = errors.New("rate limits must be positive")

// Bucket TTLs outlive their window slightly so a bucket that is still being
// read at the boundary does not vanish mid-request. Stale buckets self-clean.
const (
	minuteBucketTTL = 90 * time.Second
	dayBucketTTL    = 25 * time.Hour
)

// Both counters move, both TTLs are set on first write, and the comparison
// happens in the same script invocation. Two separate INCRs with a comparison
// in Go would let concurrent callers see a torn state.
const checkAndIncrementScript = `
local minute = redis.call("INCR", KEYS[1])
if minute == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local day = redis.call("INCR", KEYS[2])
if day == 1 then
  redis.call("EXPIRE", KEYS[2], ARGV[2])
end
local over = 0
if minute > tonumber(ARGV[3]) or day > tonumber(ARGV[4]) then
  over = 1
end
return {minute, day, over}
`

var checkAndIncrementLua = redis.NewScript(checkAndIncrementScript)

type Store struct {
	redis *storage.RedisClient
	now   func() time.Time
}

// Counts observed by one CheckAndIncrement call, including its own increment
type Result struct {
	MinuteCount int64
	DayCount    int64
	OverLimit   bool
}

// Current counts without the side effect of counting
type Usage struct {
	Minute int64
	Day    int64
}

func NewStore(redis *storage.RedisClient) *Store {
	return &Store{
		redis: redis,
		now:   time.Now,
	}
}

// Bucket keys are derived from UTC wall-clock time, so window rollover is
// just a fresh key. This format is persisted - counters survive restarts.
func MinuteKey(key string, t time.Time) string {
	return fmt.Sprintf("usage:%s:minute:%s", key, t.UTC().Format("200601021504"))
}

func DayKey(key string, t time.Time) string {
	return fmt.Sprintf("usage:%s:day:%s", key, t.UTC().Format("20060102"))
}

// CheckAndIncrement counts this request against the key's minute and day
// buckets and reports whether either limit is now exceeded. The increments
// and the comparison are a single atomic unit on the Redis side.
func (s *Store) CheckAndIncrement(ctx context.Context, key string, minuteLimit, dayLimit int) (*Result, error) {
	if minuteLimit <= 0 || dayLimit <= 0 {
		return nil, ErrInvalidLimit
	}

	now := s.now()
	keys := []string{MinuteKey(key, now), DayKey(key, now)}

	raw, err := s.redis.RunScript(ctx, checkAndIncrementLua, keys,
		int(minuteBucketTTL.Seconds()),
		int(dayBucketTTL.Seconds()),
		minuteLimit,
		dayLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("counter script failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected counter script response: %v", raw)
	}

	minuteCount, _ := values[0].(int64)
	dayCount, _ := values[1].(int64)
	over, _ := values[2].(int64)

	return &Result{
		MinuteCount: minuteCount,
		DayCount:    dayCount,
		OverLimit:   over == 1,
	}, nil
}

// CurrentUsage reads both buckets without touching them. Missing or expired
// buckets read as zero.
func (s *Store) CurrentUsage(ctx context.Context, key string) (*Usage, error) {
	now := s.now()

	minute, err := s.readBucket(ctx, MinuteKey(key, now))
	if err != nil {
		return nil, err
	}

	day, err := s.readBucket(ctx, DayKey(key, now))
	if err != nil {
		return nil, err
	}

	return &Usage{Minute: minute, Day: day}, nil
}

func (s *Store) readBucket(ctx context.Context, bucketKey string) (int64, error) {
	val, err := s.redis.Get(ctx, bucketKey)
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter bucket %s: %w", bucketKey, err)
	}

	return count, nil
}
