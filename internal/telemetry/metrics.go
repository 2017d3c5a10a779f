package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// DecisionsTotal counts every Check() outcome, labeled allow, deny or error.
var DecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quotagate",
		Subsystem: "decisions",
		Name:      "total",
		Help:      "Total number of rate-limit decisions, labeled by outcome.",
	},
	[]string{"outcome"},
)

// DecisionDuration measures the wall-clock time of a single Check() call,
// including its KV round-trips.
var DecisionDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "quotagate",
		Subsystem: "decisions",
		Name:      "duration_seconds",
		Help:      "Decision engine check() latency in seconds.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	},
)

// KVOpDuration measures individual KV Adapter operation latency.
var KVOpDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "quotagate",
		Subsystem: "kv",
		Name:      "operation_duration_seconds",
		Help:      "KV Adapter operation latency in seconds, labeled by operation.",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	},
	[]string{"op"},
)

// CredentialChecksTotal counts verifier outcomes, labeled by ok/unauthorized.
var CredentialChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quotagate",
		Subsystem: "credential",
		Name:      "checks_total",
		Help:      "Total number of credential verification attempts, labeled by outcome.",
	},
	[]string{"outcome"},
)

// PrivacyDeletionsTotal counts privacy-manager sweep invocations.
var PrivacyDeletionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quotagate",
		Subsystem: "privacy",
		Name:      "deletions_total",
		Help:      "Total number of delete_subject invocations, labeled by success/failure.",
	},
	[]string{"outcome"},
)

// PrivacyKeysDeletedTotal counts individual KV keys removed by the privacy manager.
var PrivacyKeysDeletedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "quotagate",
		Subsystem: "privacy",
		Name:      "keys_deleted_total",
		Help:      "Total number of KV keys removed across all delete_subject invocations.",
	},
)

// HTTPRequestDuration measures end-to-end request latency by route and status.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "quotagate",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"method", "route", "status"},
)

// All returns every QuotaGate metric for registration with a Prometheus registry.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		DecisionsTotal,
		DecisionDuration,
		KVOpDuration,
		CredentialChecksTotal,
		PrivacyDeletionsTotal,
		PrivacyKeysDeletedTotal,
		HTTPRequestDuration,
	}
}

// NewMetricsRegistry creates a Prometheus registry with the standard
// Go/process collectors plus every QuotaGate-specific collector.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
