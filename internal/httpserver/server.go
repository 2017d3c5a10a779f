package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wisbric/quotagate/internal/contract"
	"github.com/wisbric/quotagate/internal/credential"
	"github.com/wisbric/quotagate/internal/health"
	"github.com/wisbric/quotagate/internal/kv"
	"github.com/wisbric/quotagate/internal/privacy"
	"github.com/wisbric/quotagate/internal/ratelimit"
)

// Server holds the HTTP transport and the three core components it fronts
// (spec.md §2 data-flow diagrams: Decision Engine, Privacy Manager, Health
// Prober), all gated by the Credential Verifier.
type Server struct {
	Router *chi.Mux
	Logger *slog.Logger

	engine   *ratelimit.Engine
	manager  *privacy.Manager
	prober   *health.Prober
	verifier *credential.Verifier
}

// Config holds the parameters NewServer needs beyond the core components.
type Config struct {
	CORSAllowedOrigins []string
}

// NewServer creates the HTTP server, wiring the global middleware stack,
// the bearer-auth gate, and the decision/privacy/health route trees.
func NewServer(
	cfg Config,
	logger *slog.Logger,
	engine *ratelimit.Engine,
	manager *privacy.Manager,
	prober *health.Prober,
	verifier *credential.Verifier,
	metricsReg *prometheus.Registry,
) *Server {
	s := &Server{
		Router:   chi.NewRouter(),
		Logger:   logger,
		engine:   engine,
		manager:  manager,
		prober:   prober,
		verifier: verifier,
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints are unauthenticated (spec.md §6: "on all operations
	// except the two health endpoints").
	s.Router.Get("/healthz", s.handleLiveness)
	s.Router.Get("/readyz", s.handleReadiness)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Group(func(r chi.Router) {
		r.Use(RequireBearer(s.verifier.Verify))

		r.Post("/v1/check", s.handleCheck)
		r.Post("/v1/privacy/delete", s.handlePrivacyDelete)
		r.Post("/v1/privacy/summary", s.handlePrivacySummary)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req contract.DecisionRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	policy, cerr := contract.ValidatePolicy(req)
	if cerr != nil {
		RespondError(w, cerr)
		return
	}

	decision, err := s.engine.Check(r.Context(), policy)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	Respond(w, http.StatusOK, contract.ToDecisionResponse(decision))
}

func (s *Server) handlePrivacyDelete(w http.ResponseWriter, r *http.Request) {
	var req contract.PrivacyDeleteRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if cerr := contract.ValidateSubjectID(req.UserID); cerr != nil {
		RespondError(w, cerr)
		return
	}

	result, err := s.manager.DeleteSubject(r.Context(), req.UserID, req.Reason)
	if err != nil && result.DeletedCount == 0 {
		s.respondEngineError(w, err)
		return
	}
	if err != nil {
		s.Logger.Error("privacy sweep interrupted", "error", err, "deleted_count", result.DeletedCount)
	}

	message := "subject footprint deleted"
	if !result.Success {
		message = "partial deletion: a KV error interrupted the sweep"
	}
	Respond(w, http.StatusOK, contract.PrivacyDeleteResponse{
		Success:     result.Success,
		Message:     message,
		DeletedKeys: result.DeletedCount,
	})
}

func (s *Server) handlePrivacySummary(w http.ResponseWriter, r *http.Request) {
	var req contract.PrivacySummaryRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if cerr := contract.ValidateSubjectID(req.UserID); cerr != nil {
		RespondError(w, cerr)
		return
	}

	summary, err := s.manager.SummarizeSubject(r.Context(), req.UserID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	Respond(w, http.StatusOK, contract.PrivacySummaryResponse{
		UserID:            req.UserID,
		TotalKeys:         summary.KeyCount,
		TotalRequests:     summary.AggregateConsumed,
		ActiveWindows:     summary.ActiveWindows,
		DataRetentionDays: summary.RetentionDays,
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	l := s.prober.Liveness()
	Respond(w, http.StatusOK, contract.LivenessResponse{
		Status:    string(l.Status),
		Timestamp: contract.FormatTimestamp(l.Timestamp),
		Version:   l.Version,
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ready := s.prober.Readiness(r.Context())

	status := http.StatusOK
	if ready.Status != health.StatusOK {
		status = http.StatusServiceUnavailable
	}

	Respond(w, status, contract.ReadinessResponse{
		Status:    string(ready.Status),
		Timestamp: contract.FormatTimestamp(ready.Timestamp),
		Dependencies: contract.ReadinessResponseDependencies{
			Redis: contract.DependencyStatus{
				Status:    string(ready.Redis.Status),
				LatencyMS: ready.Redis.LatencyMS,
			},
		},
	})
}

// respondEngineError classifies a KV-layer error into the closed taxonomy
// (spec.md §7) without leaking KV topology or stack frames to the caller.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case kv.IsTimeout(err):
		s.Logger.Error("kv operation timed out", "error", err)
		RespondError(w, contract.New(contract.KvTimeout, "the rate-limit store did not respond in time"))
	default:
		s.Logger.Error("kv operation failed", "error", err)
		RespondError(w, contract.New(contract.KvUnavailable, "the rate-limit store is currently unavailable"))
	}
}
