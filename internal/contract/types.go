package contract

import (
	"time"
	"unicode/utf8"

	"github.com/wisbric/quotagate/internal/ratelimit"
)

const maxFingerprintBytes = 256

// DecisionRequest is the wire shape for a check() call (spec.md §6).
type DecisionRequest struct {
	Key    string `json:"key" validate:"required"`
	Limit  int64  `json:"limit" validate:"required"`
	Window int64  `json:"window" validate:"required"`
	Cost   int64  `json:"cost" validate:"required"`
}

// DecisionResponse is the wire shape for a Decision (spec.md §6).
type DecisionResponse struct {
	Allowed    bool   `json:"allowed"`
	Remaining  int64  `json:"remaining"`
	ResetIn    int64  `json:"reset_in"`
	RetryAfter *int64 `json:"retry_after"`
}

// ToDecisionResponse renders an engine Decision as its wire shape.
func ToDecisionResponse(d ratelimit.Decision) DecisionResponse {
	return DecisionResponse{
		Allowed:    d.Allowed,
		Remaining:  d.Remaining,
		ResetIn:    d.ResetIn,
		RetryAfter: d.RetryAfter,
	}
}

// ValidatePolicy enforces spec.md §3/§7's range checks and produces the
// validated ratelimit.Policy the Decision Engine is allowed to see. No KV
// access has occurred by the time this returns (spec.md §4.6: "Rejections
// here never touch the KV").
func ValidatePolicy(req DecisionRequest) (ratelimit.Policy, *Error) {
	if req.Key == "" {
		return ratelimit.Policy{}, New(InvalidRequest, "key must not be empty")
	}
	if len(req.Key) > maxFingerprintBytes {
		return ratelimit.Policy{}, New(InvalidRequest, "key must not exceed 256 bytes")
	}
	if !utf8.ValidString(req.Key) {
		return ratelimit.Policy{}, New(InvalidRequest, "key must be valid UTF-8")
	}
	if req.Limit < 1 {
		return ratelimit.Policy{}, New(InvalidRequest, "limit must be >= 1")
	}
	if req.Window < 1 {
		return ratelimit.Policy{}, New(InvalidRequest, "window must be >= 1")
	}
	if req.Cost < 1 {
		return ratelimit.Policy{}, New(InvalidRequest, "cost must be >= 1")
	}
	if req.Cost > req.Limit {
		return ratelimit.Policy{}, New(InvalidRequest, "cost must not exceed limit")
	}

	return ratelimit.Policy{
		Fingerprint:   req.Key,
		Limit:         req.Limit,
		WindowSeconds: req.Window,
		Cost:          req.Cost,
	}, nil
}

// PrivacyDeleteRequest is the wire shape for delete_subject (spec.md §6).
type PrivacyDeleteRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Reason string `json:"reason"`
}

// PrivacyDeleteResponse is the wire shape for a delete_subject result.
type PrivacyDeleteResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	DeletedKeys int64  `json:"deleted_keys"`
}

// PrivacySummaryRequest is the wire shape for summarize_subject (spec.md §6).
type PrivacySummaryRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// PrivacySummaryResponse is the wire shape for a summarize_subject result.
type PrivacySummaryResponse struct {
	UserID            string `json:"user_id"`
	TotalKeys         int64  `json:"total_keys"`
	TotalRequests     int64  `json:"total_requests"`
	ActiveWindows     int64  `json:"active_windows"`
	DataRetentionDays int    `json:"data_retention_days"`
}

// ValidateSubjectID enforces the same fingerprint shape rules as a policy
// key, since subject ids share the fingerprint namespace (spec.md
// GLOSSARY: "Subject: typically identical to the fingerprint prefix").
func ValidateSubjectID(userID string) *Error {
	if userID == "" {
		return New(InvalidRequest, "user_id must not be empty")
	}
	if len(userID) > maxFingerprintBytes {
		return New(InvalidRequest, "user_id must not exceed 256 bytes")
	}
	if !utf8.ValidString(userID) {
		return New(InvalidRequest, "user_id must be valid UTF-8")
	}
	return nil
}

// LivenessResponse is the wire shape for the liveness endpoint (spec.md §6).
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DependencyStatus is one dependency's reported health (spec.md §6).
type DependencyStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

// ReadinessResponse is the wire shape for the readiness endpoint (spec.md §6).
type ReadinessResponse struct {
	Status       string                      `json:"status"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies ReadinessResponseDependencies `json:"dependencies"`
}

// ReadinessResponseDependencies holds each probed dependency.
type ReadinessResponseDependencies struct {
	Redis DependencyStatus `json:"redis"`
}

// FormatTimestamp renders t as ISO-8601, matching spec.md §6's literal
// `<ISO-8601>` placeholder.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
