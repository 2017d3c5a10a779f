package kv

import "errors"

// ErrUnavailable indicates a connectivity failure to the KV store
// (spec.md §4.1: "every operation fails with KvUnavailable on connectivity
// failure").
var ErrUnavailable = errors.New("kv: store unavailable")

// ErrTimeout indicates the per-operation deadline was exceeded
// (spec.md §4.1: "KvTimeout when the configured per-operation deadline is
// exceeded").
var ErrTimeout = errors.New("kv: operation timed out")

// IsTimeout reports whether err (or one of its wrapped causes) is ErrTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
