// Package privacy implements the Privacy Manager (spec.md §4.4): it
// enumerates and purges all KV state belonging to a subject and reports a
// summary of that footprint on demand.
package privacy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wisbric/quotagate/internal/auditlog"
	"github.com/wisbric/quotagate/internal/kv"
	"github.com/wisbric/quotagate/internal/telemetry"
)

// defaultPattern is the minimum namespace every sweep covers (spec.md §4.4
// step 1: "at minimum rate_limit:{subject_id}:*").
const defaultPattern = "rate_limit:%s:*"

// DeleteResult is the outcome of one delete_subject invocation.
type DeleteResult struct {
	DeletedCount int64
	Success      bool
}

// Summary is the outcome of one summarize_subject invocation.
type Summary struct {
	KeyCount          int64
	AggregateConsumed int64
	ActiveWindows     int64
	RetentionDays     int
}

// Manager implements delete_subject and summarize_subject over the KV
// Adapter, with a durable audit trail for deletions.
type Manager struct {
	kv            kv.Adapter
	audit         *auditlog.Writer
	auditSecret   string
	extraPatterns []string
	retentionDays int
	logger        *slog.Logger
}

// New creates a Manager. extraPatterns are additional "%s"-templated scan
// patterns swept in addition to defaultPattern (spec.md §4.4 step 1:
// "configured namespace pattern"). audit may be nil, in which case
// deletions are not durably recorded (still logged structurally).
func New(adapter kv.Adapter, audit *auditlog.Writer, auditSecret string, extraPatterns []string, retentionDays int, logger *slog.Logger) *Manager {
	return &Manager{
		kv:            adapter,
		audit:         audit,
		auditSecret:   auditSecret,
		extraPatterns: extraPatterns,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

func (m *Manager) patterns(subjectID string) []string {
	patterns := make([]string, 0, 1+len(m.extraPatterns))
	patterns = append(patterns, fmt.Sprintf(defaultPattern, subjectID))
	for _, p := range m.extraPatterns {
		patterns = append(patterns, fmt.Sprintf(p, subjectID))
	}
	return patterns
}

// DeleteSubject implements spec.md §4.4's delete_subject algorithm. The
// sweep is not transactional across keys: a KV failure partway through
// reports success=false with the partial deleted_count already
// accumulated. The operation is idempotent — re-running it against an
// already-empty footprint returns deleted_count=0, success=true.
func (m *Manager) DeleteSubject(ctx context.Context, subjectID, reason string) (DeleteResult, error) {
	var deleted int64
	var sweepErr error

	for _, pattern := range m.patterns(subjectID) {
		it := m.kv.ScanMatch(pattern)
		for {
			key, ok, err := it.Next(ctx)
			if err != nil {
				sweepErr = err
				break
			}
			if !ok {
				break
			}
			n, err := m.kv.Del(ctx, key)
			if err != nil {
				sweepErr = err
				break
			}
			deleted += n
		}
		if sweepErr != nil {
			break
		}
	}

	result := DeleteResult{DeletedCount: deleted, Success: sweepErr == nil}

	outcome := "success"
	if !result.Success {
		outcome = "partial_failure"
	}
	telemetry.PrivacyDeletionsTotal.WithLabelValues(outcome).Inc()
	telemetry.PrivacyKeysDeletedTotal.Add(float64(deleted))

	subjectHash := auditlog.HashSubject(subjectID, m.auditSecret)
	m.logger.Info("delete_subject completed",
		"subject_hash", subjectHash, "reason", reason,
		"deleted_count", deleted, "outcome", outcome)
	if m.audit != nil {
		m.audit.Log(auditlog.Entry{
			SubjectHash:  subjectHash,
			Reason:       reason,
			DeletedCount: deleted,
			Outcome:      outcome,
		})
	}

	if sweepErr != nil {
		return result, fmt.Errorf("sweeping subject footprint: %w", sweepErr)
	}
	return result, nil
}

// SummarizeSubject implements spec.md §4.4's summarize_subject algorithm.
// It is read-only: it never mutates a bucket or its TTL.
func (m *Manager) SummarizeSubject(ctx context.Context, subjectID string) (Summary, error) {
	summary := Summary{RetentionDays: m.retentionDays}

	for _, pattern := range m.patterns(subjectID) {
		it := m.kv.ScanMatch(pattern)
		for {
			key, ok, err := it.Next(ctx)
			if err != nil {
				return Summary{}, fmt.Errorf("scanning subject footprint: %w", err)
			}
			if !ok {
				break
			}

			value, err := m.kv.Get(ctx, key)
			if err != nil {
				return Summary{}, fmt.Errorf("reading bucket value: %w", err)
			}
			ttl, err := m.kv.TTL(ctx, key)
			if err != nil {
				return Summary{}, fmt.Errorf("reading bucket ttl: %w", err)
			}

			summary.KeyCount++
			summary.AggregateConsumed += value
			if ttl > 0 {
				summary.ActiveWindows++
			}
		}
	}

	return summary, nil
}
