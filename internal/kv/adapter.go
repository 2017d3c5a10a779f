// Package kv provides a thin, atomic contract over the KV store (Redis)
// that the Decision Engine and Privacy Manager build on (spec.md §4.1).
package kv

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wisbric/quotagate/internal/telemetry"
)

// Adapter exposes the atomic KV primitives named in spec.md §4.1.
type Adapter interface {
	// IncrBy atomically increments key by delta and returns the
	// post-increment value.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Get returns the integer value stored at key, or 0 if key does not
	// exist. Used by the Privacy Manager to aggregate consumed cost across
	// a subject's footprint (spec.md §4.4 step 2); never used on the
	// decision path, which reads the post-increment value from IncrBy.
	Get(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on key. Returns false if key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL returns the remaining seconds for key: a non-negative integer
	// when key exists with a TTL, -1 when it exists without a TTL, -2 when
	// it does not exist (spec.md §4.1).
	TTL(ctx context.Context, key string) (int64, error)

	// Del deletes key and returns the number of keys removed (0 or 1).
	Del(ctx context.Context, key string) (int64, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// ScanMatch returns a lazy, restartable iterator over keys matching
	// pattern. It must not buffer the entire key space (spec.md §4.1, §9).
	ScanMatch(pattern string) *KeyIterator

	// Ping measures KV reachability and round-trip latency.
	Ping(ctx context.Context) (time.Duration, error)
}

// RedisAdapter implements Adapter over a *redis.Client. Every method call
// is bounded by opTimeout, independent of the caller's context deadline
// (spec.md §5: "every KV call carries a deadline (≤100ms nominal)").
type RedisAdapter struct {
	client     *redis.Client
	opTimeout  time.Duration
	scanCount  int64
}

// New creates a RedisAdapter. opTimeout bounds every individual operation.
func New(client *redis.Client, opTimeout time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, opTimeout: opTimeout, scanCount: 100}
}

func (a *RedisAdapter) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.opTimeout)
}

func (a *RedisAdapter) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	defer observe("incr_by")()
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()

	v, err := a.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, classify(err)
	}
	return v, nil
}

func (a *RedisAdapter) Get(ctx context.Context, key string) (int64, error) {
	defer observe("get")()
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()

	v, err := a.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, classify(err)
	}
	return v, nil
}

func (a *RedisAdapter) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	defer observe("expire")()
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()

	ok, err := a.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func (a *RedisAdapter) TTL(ctx context.Context, key string) (int64, error) {
	defer observe("ttl")()
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()

	d, err := a.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, classify(err)
	}
	return ttlSecondsFromDuration(d), nil
}

// ttlSecondsFromDuration maps go-redis's TTL sentinels (-1 key exists
// without expiry, -2 key missing, represented as negative durations) onto
// the integer contract in spec.md §4.1.
func ttlSecondsFromDuration(d time.Duration) int64 {
	switch {
	case d == -1:
		return -1
	case d == -2:
		return -2
	default:
		secs := int64(d / time.Second)
		if secs < 0 {
			return -2
		}
		return secs
	}
}

func (a *RedisAdapter) Del(ctx context.Context, key string) (int64, error) {
	defer observe("del")()
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()

	n, err := a.client.Del(ctx, key).Result()
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (a *RedisAdapter) Exists(ctx context.Context, key string) (bool, error) {
	defer observe("exists")()
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()

	n, err := a.client.Exists(ctx, key).Result()
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

func (a *RedisAdapter) ScanMatch(pattern string) *KeyIterator {
	return &KeyIterator{
		client:  a.client,
		pattern: pattern,
		timeout: a.opTimeout,
		count:   a.scanCount,
	}
}

func (a *RedisAdapter) Ping(ctx context.Context) (time.Duration, error) {
	defer observe("ping")()
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	if err := a.client.Ping(ctx).Err(); err != nil {
		return 0, classify(err)
	}
	return time.Since(start), nil
}

// observe starts a Prometheus timer for op and returns a function that
// records the elapsed duration when called (typically via defer).
func observe(op string) func() {
	start := time.Now()
	return func() {
		telemetry.KVOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// classify maps a go-redis error onto the closed KV error taxonomy
// (spec.md §4.1, §7).
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, redis.Nil) {
		// redis.Nil is a normal "no such key" result for GET-style calls;
		// Get handles it before calling classify, so it is passed through
		// unchanged here rather than reported as ErrUnavailable.
		return err
	}
	return ErrUnavailable
}

// KeyIterator is a lazy, restartable sequence of keys matching a pattern.
// It never materialises the full key space (spec.md §9): it holds at most
// one SCAN batch at a time, and Next issues another SCAN round-trip only
// when that batch is used up (repeating while the server returns empty
// batches).
type KeyIterator struct {
	client  *redis.Client
	pattern string
	timeout time.Duration
	count   int64

	cursor  uint64
	buf     []string
	started bool
	done    bool
}

// NewKeyIteratorAt resumes scanning from a previously observed server-side
// cursor, per spec.md §9 ("delete_subject must handle a restart by
// continuing from the KV-provided cursor, not from a remembered offset").
func NewKeyIteratorAt(client *redis.Client, pattern string, cursor uint64, timeout time.Duration) *KeyIterator {
	return &KeyIterator{client: client, pattern: pattern, cursor: cursor, timeout: timeout, count: 100, started: cursor != 0}
}

// Cursor returns the current server-side cursor, for callers that want to
// persist a restart point. It points past the last fetched SCAN batch:
// keys of that batch not yet returned by Next are not covered by a scan
// resumed from it, and a cursor of 0 resumes from the start.
func (it *KeyIterator) Cursor() uint64 {
	return it.cursor
}

// Next returns the next matching key. ok is false once the scan has
// completed (the server returned cursor 0 after the iterator had started).
func (it *KeyIterator) Next(ctx context.Context) (key string, ok bool, err error) {
	for len(it.buf) == 0 {
		if it.done {
			return "", false, nil
		}

		scanCtx, cancel := context.WithTimeout(ctx, it.timeout)
		keys, cursor, scanErr := it.client.Scan(scanCtx, it.cursor, it.pattern, it.count).Result()
		cancel()
		if scanErr != nil {
			return "", false, classify(scanErr)
		}

		it.buf = keys
		it.cursor = cursor
		it.started = true
		if cursor == 0 {
			it.done = true
		}
	}

	key = it.buf[0]
	it.buf = it.buf[1:]
	return key, true, nil
}
