package privacy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisbric/quotagate/internal/kv"
)

func newTestManager(t *testing.T, extraPatterns []string) (*Manager, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	adapter := kv.New(client, 200*time.Millisecond)
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
	return New(adapter, nil, "test-audit-secret", extraPatterns, 30, logger), client
}

// Erase step of scenario 5 (spec.md §8): only the subject's own buckets go.
func TestDeleteSubject_RemovesAllMatchingKeys(t *testing.T) {
	m, client := newTestManager(t, nil)
	ctx := context.Background()

	_, err := client.IncrBy(ctx, "rate_limit:u:3:0", 5).Result()
	require.NoError(t, err)
	_, err = client.IncrBy(ctx, "rate_limit:u:3:1", 2).Result()
	require.NoError(t, err)
	_, err = client.IncrBy(ctx, "rate_limit:other:0", 9).Result()
	require.NoError(t, err)

	result, err := m.DeleteSubject(ctx, "u:3", "user requested erasure")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(2), result.DeletedCount)

	exists, err := client.Exists(ctx, "rate_limit:u:3:0", "rate_limit:u:3:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)

	remaining, err := client.Exists(ctx, "rate_limit:other:0").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestDeleteSubject_IsIdempotent(t *testing.T) {
	m, client := newTestManager(t, nil)
	ctx := context.Background()

	_, err := client.IncrBy(ctx, "rate_limit:u:4:0", 1).Result()
	require.NoError(t, err)

	first, err := m.DeleteSubject(ctx, "u:4", "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.DeletedCount)

	second, err := m.DeleteSubject(ctx, "u:4", "test")
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.DeletedCount)
	assert.True(t, second.Success)
}

func TestSummarizeSubject_AggregatesAcrossKeys(t *testing.T) {
	m, client := newTestManager(t, nil)
	ctx := context.Background()

	_, err := client.IncrBy(ctx, "rate_limit:u:5:0", 3).Result()
	require.NoError(t, err)
	client.Expire(ctx, "rate_limit:u:5:0", 60*time.Second)
	_, err = client.IncrBy(ctx, "rate_limit:u:5:1", 4).Result()
	require.NoError(t, err)
	// No TTL on this second key: counts toward key_count and
	// aggregate_consumed but not active_windows.

	summary, err := m.SummarizeSubject(ctx, "u:5")
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.KeyCount)
	assert.Equal(t, int64(7), summary.AggregateConsumed)
	assert.Equal(t, int64(1), summary.ActiveWindows)
	assert.Equal(t, 30, summary.RetentionDays)
}

// After a successful delete_subject, summarize_subject must report zero
// (spec.md §8: "After delete_subject(S) completes with success=true, a
// subsequent summarize_subject(S) returns key_count=0 and
// total_requests=0").
func TestSummarizeSubject_ZeroAfterDeletion(t *testing.T) {
	m, client := newTestManager(t, nil)
	ctx := context.Background()

	_, err := client.IncrBy(ctx, "rate_limit:u:6:0", 1).Result()
	require.NoError(t, err)

	_, err = m.DeleteSubject(ctx, "u:6", "test")
	require.NoError(t, err)

	summary, err := m.SummarizeSubject(ctx, "u:6")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.KeyCount)
	assert.Equal(t, int64(0), summary.AggregateConsumed)
}

func TestDeleteSubject_SweepsExtraPatterns(t *testing.T) {
	m, client := newTestManager(t, []string{"burst_guard:%s:*"})
	ctx := context.Background()

	client.IncrBy(ctx, "rate_limit:u:7:0", 1)
	client.IncrBy(ctx, "burst_guard:u:7:0", 1)

	result, err := m.DeleteSubject(ctx, "u:7", "test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.DeletedCount)
}
