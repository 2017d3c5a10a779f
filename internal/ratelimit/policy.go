package ratelimit

// Policy is the immutable input to one decision (spec.md §3).
type Policy struct {
	// Fingerprint is an opaque, caller-chosen identifier that namespaces a
	// quota (e.g. "user:42", "ip:1.2.3.4", "route:/v1/search").
	Fingerprint string
	// Limit is the maximum cost permitted within one window.
	Limit int64
	// WindowSeconds is the discrete window length in seconds.
	WindowSeconds int64
	// Cost is the quantity this request consumes. Must satisfy
	// 1 <= Cost <= Limit; enforced by the Request Contract Layer, not here.
	Cost int64
}

// Decision is the transient result of one Check call (spec.md §3).
type Decision struct {
	Allowed   bool
	Remaining int64
	ResetIn   int64
	// RetryAfter is non-nil iff Allowed is false.
	RetryAfter *int64
}
