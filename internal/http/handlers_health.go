package http

import (
	"context"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the database and reports request counters.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if err := s.deps.Storage.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "check", "database", "error", err)
		checks["database"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	traceMetrics := s.tracer.GetMetrics()
	checks["requests"] = map[string]any{
		"total":         traceMetrics.TotalRequests,
		"server_errors": traceMetrics.ServerErrors,
	}
	limitMetrics := s.limiter.GetMetrics()
	checks["rate_limiter"] = map[string]any{
		"active_clients": limitMetrics.ClientCount,
		"rejected":       limitMetrics.Rejected,
	}
	checks["security"] = map[string]any{
		"suspicious_requests": s.detector.GetMetrics().SuspiciousRequests,
	}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  s.cfg.Services,
		"checks":    checks,
	})
}
