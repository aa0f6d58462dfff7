package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"finanzas/internal/log"
)

// handleHealth is a liveness probe; it touches no dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports 503 until the storage backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	switch {
	case s.ready == nil:
		checks["storage"] = "not_configured"
	default:
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			checks["storage"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.trace.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("transactions_created_total", "counter", "Transactions created manually", atomic.LoadInt64(&s.appMetrics.created))
	metric("transactions_updated_total", "counter", "Transactions updated", atomic.LoadInt64(&s.appMetrics.updated))
	metric("transactions_deleted_total", "counter", "Transactions deleted", atomic.LoadInt64(&s.appMetrics.deleted))
	metric("imports_total", "counter", "Completed statement imports", atomic.LoadInt64(&s.appMetrics.imports))
	metric("imported_rows_total", "counter", "Rows stored by statement imports", atomic.LoadInt64(&s.appMetrics.importedRows))
	if cs, ok := s.stats.(CacheStats); ok {
		hits, misses := cs.Stats()
		metric("stats_cache_hits_total", "counter", "Stats cache hits", hits)
		metric("stats_cache_misses_total", "counter", "Stats cache misses", misses)
	}
	metric("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", limitMetrics.Rejected)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}
