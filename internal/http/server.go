// Package http serves the finance JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/importer"
	"finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/services"
	"finanzas/internal/stats"
)

const (
	DefaultImportMaxBytes = 5 << 20
	// jsonMaxBytes bounds every body other than imports.
	jsonMaxBytes = 64 << 10
	readyTimeout = 5 * time.Second
)

// TransactionService is the write and listing side used by the handlers.
type TransactionService interface {
	Create(ctx context.Context, ownerID int64, in services.CreateInput) (core.Transaction, error)
	Import(ctx context.Context, req importer.Request) (core.ImportReport, error)
	List(ctx context.Context, ownerID int64, f core.TransactionFilter, page, limit int) (services.Page, error)
	Get(ctx context.Context, ownerID, id int64) (core.Transaction, error)
	Update(ctx context.Context, ownerID, id int64, in services.CreateInput) (core.Transaction, error)
	Delete(ctx context.Context, ownerID, id int64) error
	Categories(ctx context.Context, ownerID int64, typ *core.TransactionType) ([]core.Category, error)
}

var _ TransactionService = (*services.TransactionService)(nil)

// CacheStats is implemented by stats providers that memoize.
type CacheStats interface {
	Stats() (hits, misses int64)
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	ImportMaxBytes     int64
	TrustedProxies     []string
}

type Dependencies struct {
	Transactions TransactionService
	Stats        stats.Provider
	// Ready checks the storage backend; nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

type Server struct {
	http.Server
	transactions TransactionService
	stats        stats.Provider
	ready        func(ctx context.Context) error
	logger       *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	trace    *trace.Middleware

	importMaxBytes int64
	appMetrics     *appMetrics
	shutdownOnce   sync.Once
	now            func() time.Time
}

type appMetrics struct {
	uptime       time.Time
	created      int64
	imports      int64
	importedRows int64
	updated      int64
	deleted      int64
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if cfg.ImportMaxBytes <= 0 {
		cfg.ImportMaxBytes = DefaultImportMaxBytes
	}

	detector := security.NewDetector(logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s := &Server{
		transactions:   deps.Transactions,
		stats:          deps.Stats,
		ready:          deps.Ready,
		logger:         logger,
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}, logger),
		detector:       detector,
		trace:          trace.NewMiddleware(detector.ExtractClientIP, logger),
		importMaxBytes: cfg.ImportMaxBytes,
		appMetrics:     &appMetrics{uptime: time.Now()},
		now:            time.Now,
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/transactions/import", s.withOwner(s.handleImport))
	api.HandleFunc("POST /api/transactions", s.withOwner(s.handleCreateTransaction))
	api.HandleFunc("GET /api/transactions", s.withOwner(s.handleListTransactions))
	api.HandleFunc("GET /api/transactions/{id}", s.withOwner(s.handleGetTransaction))
	api.HandleFunc("PUT /api/transactions/{id}", s.withOwner(s.handleUpdateTransaction))
	api.HandleFunc("DELETE /api/transactions/{id}", s.withOwner(s.handleDeleteTransaction))
	api.HandleFunc("GET /api/categories", s.withOwner(s.handleListCategories))
	api.HandleFunc("GET /api/stats/summary", s.withOwner(s.handleSummary))
	api.HandleFunc("GET /api/stats/categories", s.withOwner(s.handleCategoryStats))
	api.HandleFunc("GET /api/stats/monthly", s.withOwner(s.handleMonthly))
	api.HandleFunc("GET /api/stats/trends", s.withOwner(s.handleTrends))
	api.HandleFunc("GET /api/stats/top-transactions", s.withOwner(s.handleTopTransactions))
	api.HandleFunc("GET /api/stats/overview", s.withOwner(s.handleOverview))

	mux := http.NewServeMux()
	mux.Handle("/api/", s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimit)(api))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.trace.Middleware(headers.Middleware(detector.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID int64)

// withOwner rejects requests without a usable owner id and tags the
// request logger with it.
func (s *Server) withOwner(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ParseOwnerID(r)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected request without owner",
				log.FieldPath, r.URL.Path,
				log.FieldErrorType, log.ErrorTypeAuth)
			UnauthorizedError(msgOwnerRequired).Write(w)
			return
		}
		logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).With(log.FieldOwnerID, ownerID)
		ctx := log.WithLogger(r.Context(), logger)
		next(w, r.WithContext(ctx), ownerID)
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	TooManyRequestsError(s.limiter.RetryAfter(s.detector.ExtractClientIP(r))).Write(w)
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
