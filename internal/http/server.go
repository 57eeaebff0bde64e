// Package http serves the bolso JSON API.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bolso/internal/log"
	"bolso/internal/middleware/ratelimit"
	"bolso/internal/middleware/security"
	"bolso/internal/middleware/trace"
	"bolso/internal/services"
)

const readyTimeout = 5 * time.Second

// Config configures the API server.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	// Ready reports whether backing services are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	finance  *services.FinanceService
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	ready    func(ctx context.Context) error
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, finance *services.FinanceService, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	mux := http.NewServeMux()

	s := &Server{
		finance:  finance,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: security.NewDetector(),
		ready:    cfg.Ready,
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/categories", handleCategories)

	api := map[string]http.HandlerFunc{
		"GET /api/transactions":          s.handleListTransactions,
		"POST /api/transactions/expense": s.handleAddExpense,
		"POST /api/transactions/income":  s.handleAddIncome,
		"DELETE /api/transactions/{id}":  s.handleDeleteTransaction,
		"POST /api/card-purchases":       s.handleAddCardPurchase,

		"GET /api/cards":                            s.handleListCards,
		"POST /api/cards":                           s.handleAddCard,
		"DELETE /api/cards/{id}":                    s.handleDeleteCard,
		"GET /api/cards/{id}/usage":                 s.handleCardUsage,
		"GET /api/cards/{id}/installments":          s.handleFutureInstallments,
		"GET /api/cards/{id}/installments/by-month": s.handleInstallmentsByMonth,

		"GET /api/goals":         s.handleListGoals,
		"PUT /api/goals/{month}": s.handlePutGoal,
		"GET /api/summary":       s.handleSummary,

		"GET /api/fixed-payments":              s.handleListFixedPayments,
		"POST /api/fixed-payments":             s.handleAddFixedPayment,
		"POST /api/fixed-payments/{id}/toggle": s.handleTogglePaid,
		"DELETE /api/fixed-payments/{id}":      s.handleDeleteFixedPayment,
		"GET /api/fixed-payments/totals":       s.handleFixedPaymentTotals,

		"GET /api/urgent":      s.handleUrgentItems,
		"POST /api/dismissals": s.handleDismiss,

		"GET /api/notifications":            s.handleListNotifications,
		"POST /api/notifications/{id}/read": s.handleMarkNotificationRead,

		"GET /api/webhook": s.handleGetWebhook,
		"PUT /api/webhook": s.handlePutWebhook,
		"GET /api/profile": s.handleGetProfile,
		"PUT /api/profile": s.handlePutProfile,
	}
	for pattern, h := range api {
		mux.HandleFunc(pattern, requireUser(h))
	}

	limit := s.limiter.Middleware(s.rateKey, s.onRateLimit, http.MethodPost, http.MethodPut, http.MethodDelete)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.tracer.Middleware(headers.Middleware(s.detector.Middleware(limit(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// rateKey limits per user when the gateway supplied one, else per client IP.
func (s *Server) rateKey(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get(HeaderUserID)); id != "" {
		return "user:" + id
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request, retry time.Duration) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Kind: "rate_limited"})
}

// Shutdown stops the limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the record store within a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status := http.StatusOK
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			checks["store"] = "failed"
			status = http.StatusServiceUnavailable
		}
	}
	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	total, failed := s.tracer.Counts()
	writeJSON(w, status, map[string]any{
		"status":          state,
		"checks":          checks,
		"requests":        total,
		"failed_requests": failed,
		"rate_limited":    s.limiter.Rejected(),
		"suspicious":      s.detector.SuspiciousCount(),
	})
}
