// Package ratelimit implements the sliding-discrete-window Decision Engine
// (spec.md §4.2) — the hard part of QuotaGate. It is memoryless: the only
// state lives in the KV store.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/wisbric/quotagate/internal/kv"
	"github.com/wisbric/quotagate/internal/telemetry"
)

// ErrEngineUnavailable wraps a KV failure encountered while computing a
// decision (spec.md §4.2, §7: "Failure semantics ... surface as
// EngineUnavailable; no retry at this layer").
var ErrEngineUnavailable = errors.New("ratelimit: engine unavailable")

const keyPrefix = "rate_limit:"

// Engine computes allow/deny decisions from KV primitives. It assumes the
// caller (the Request Contract Layer) has already validated the policy:
// 1 <= cost <= limit, limit >= 1, window >= 1.
type Engine struct {
	kv     kv.Adapter
	clock  Clock
	logger *slog.Logger
}

// New creates a Decision Engine over the given KV adapter.
func New(adapter kv.Adapter, clock Clock, logger *slog.Logger) *Engine {
	return &Engine{kv: adapter, clock: clock, logger: logger}
}

// BucketKey returns the Window Bucket key for a fingerprint at a given
// window index (spec.md §3).
func BucketKey(fingerprint string, windowIndex int64) string {
	return keyPrefix + fingerprint + ":" + strconv.FormatInt(windowIndex, 10)
}

// WindowIndex returns floor(now/windowSeconds).
func WindowIndex(now time.Time, windowSeconds int64) int64 {
	return now.Unix() / windowSeconds
}

// Check implements the algorithm in spec.md §4.2:
//
//  1. new_value = INCR(bucket_key, cost)
//  2. if new_value == cost, best-effort EXPIRE(bucket_key, window)
//  3. reset_in = TTL(bucket_key), falling back to window on a negative TTL
//  4. allow iff new_value <= limit
//
// The increment happens before the allow check is known; a denied request
// still charges the bucket (spec.md §4.2 rationale — this is documented,
// not a bug). The engine never fails open: any KV error from the INCR step
// surfaces as ErrEngineUnavailable and no decision is returned.
func (e *Engine) Check(ctx context.Context, p Policy) (Decision, error) {
	start := time.Now()
	defer func() {
		telemetry.DecisionDuration.Observe(time.Since(start).Seconds())
	}()

	now := e.clock.Now()
	windowIndex := WindowIndex(now, p.WindowSeconds)
	bucketKey := BucketKey(p.Fingerprint, windowIndex)

	newValue, err := e.kv.IncrBy(ctx, bucketKey, p.Cost)
	if err != nil {
		telemetry.DecisionsTotal.WithLabelValues("error").Inc()
		return Decision{}, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	// Best-effort TTL repair: set it on the first write in this window, and
	// re-issue it whenever a later reader discovers the TTL was never set
	// (spec.md §4.2 "Failure at step 3" mitigation).
	if newValue == p.Cost {
		if _, expErr := e.kv.Expire(ctx, bucketKey, time.Duration(p.WindowSeconds)*time.Second); expErr != nil {
			e.logger.Warn("best-effort expire failed after first write in window",
				"error", expErr)
		}
	}

	resetIn, err := e.kv.TTL(ctx, bucketKey)
	if err != nil {
		telemetry.DecisionsTotal.WithLabelValues("error").Inc()
		return Decision{}, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	if resetIn < 0 {
		// TTL missing or the key vanished out from under us (e.g. a
		// concurrent privacy sweep) — repair it and fall back to the full
		// window, per spec.md §4.2 step 4.
		if _, expErr := e.kv.Expire(ctx, bucketKey, time.Duration(p.WindowSeconds)*time.Second); expErr != nil {
			e.logger.Warn("best-effort expire failed after negative TTL observation",
				"error", expErr)
		}
		resetIn = p.WindowSeconds
	}

	if newValue <= p.Limit {
		telemetry.DecisionsTotal.WithLabelValues("allow").Inc()
		return Decision{
			Allowed:   true,
			Remaining: p.Limit - newValue,
			ResetIn:   resetIn,
		}, nil
	}

	telemetry.DecisionsTotal.WithLabelValues("deny").Inc()
	retryAfter := resetIn
	return Decision{
		Allowed:    false,
		Remaining:  0,
		ResetIn:    resetIn,
		RetryAfter: &retryAfter,
	}, nil
}
