// Package health implements the Health Prober (spec.md §4.5): liveness is
// pure, readiness checks KV reachability with a short deadline.
package health

import (
	"context"
	"time"

	"github.com/wisbric/quotagate/internal/kv"
)

// Status is one dependency's health outcome.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// Liveness is the pure, always-succeeding liveness result.
type Liveness struct {
	Status    Status
	Timestamp time.Time
	Version   string
}

// DependencyStatus reports one dependency's reachability and latency.
type DependencyStatus struct {
	Status    Status
	LatencyMS int64
}

// Readiness aggregates dependency health into a single overall status.
type Readiness struct {
	Status    Status
	Timestamp time.Time
	Redis     DependencyStatus
}

// Prober reports liveness and readiness.
type Prober struct {
	kv             kv.Adapter
	version        string
	readinessDeadline time.Duration
}

// New creates a Prober. readinessDeadline bounds the KV ping issued by
// Readiness (spec.md §4.5: "Issues kv.ping() with a short deadline").
func New(adapter kv.Adapter, version string, readinessDeadline time.Duration) *Prober {
	return &Prober{kv: adapter, version: version, readinessDeadline: readinessDeadline}
}

// Liveness always reports ok; it touches no external dependency.
func (p *Prober) Liveness() Liveness {
	return Liveness{
		Status:    StatusOK,
		Timestamp: time.Now().UTC(),
		Version:   p.version,
	}
}

// Readiness pings the KV store and maps the outcome to ok/degraded.
func (p *Prober) Readiness(ctx context.Context) Readiness {
	ctx, cancel := context.WithTimeout(ctx, p.readinessDeadline)
	defer cancel()

	latency, err := p.kv.Ping(ctx)
	redisStatus := DependencyStatus{Status: StatusOK, LatencyMS: latency.Milliseconds()}
	overall := StatusOK
	if err != nil {
		redisStatus = DependencyStatus{Status: StatusDegraded}
		overall = StatusDegraded
	}

	return Readiness{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Redis:     redisStatus,
	}
}
