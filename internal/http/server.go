package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"montaxi/internal/log"
	"montaxi/internal/services"
)

// mutationsPerMinute is the write budget of one client IP.
const mutationsPerMinute = 120

type Server struct {
	http.Server
	mux         *http.ServeMux
	ledger      *services.LedgerService
	logger      *log.Logger
	metrics     *metrics
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		mux:         http.NewServeMux(),
		ledger:      ledger,
		logger:      logger,
		metrics:     newMetrics(ledger.Collectors()...),
		rateLimiter: newRateLimiter(mutationsPerMinute, time.Minute),
	}
	s.routes()

	var handler http.Handler = s.mux
	handler = log.RequestIDMiddleware(func(r *http.Request) string { return r.Header.Get("X-Request-ID") })(handler)
	handler = withRequestID(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.route("GET /healthz", handleHealth)
	s.route("GET /readyz", s.handleReady)
	s.mux.Handle("GET /metrics", s.metrics.handler())

	s.route("GET /api/settings", s.handleGetSettings)
	s.route("PUT /api/settings", s.handlePutSettings)

	s.route("GET /api/drivers", s.handleListDrivers)
	s.route("POST /api/drivers", s.handleCreateDriver)
	s.route("GET /api/drivers/names", s.handleDriverNames)
	s.route("GET /api/drivers/{id}", s.handleGetDriver)
	s.route("PUT /api/drivers/{id}", s.handleUpdateDriver)
	s.route("DELETE /api/drivers/{id}", s.handleDeleteDriver)

	s.route("GET /api/taxis", s.handleListTaxis)
	s.route("POST /api/taxis", s.handleCreateTaxi)
	s.route("GET /api/taxis/{id}", s.handleGetTaxi)
	s.route("PUT /api/taxis/{id}", s.handleUpdateTaxi)
	s.route("DELETE /api/taxis/{id}", s.handleDeleteTaxi)

	s.route("GET /api/expenses", s.handleListExpenses)
	s.route("POST /api/expenses", s.handleCreateExpense)
	s.route("POST /api/expenses/preview", s.handlePreviewExpense)
	s.route("GET /api/expenses/{id}", s.handleGetExpense)
	s.route("PUT /api/expenses/{id}", s.handleUpdateExpense)
	s.route("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	s.route("GET /api/revenues", s.handleListRevenues)
	s.route("POST /api/revenues", s.handleCreateRevenue)
	s.route("POST /api/revenues/preview", s.handlePreviewRevenue)
	s.route("GET /api/revenues/{id}", s.handleGetRevenue)
	s.route("PUT /api/revenues/{id}", s.handleUpdateRevenue)
	s.route("DELETE /api/revenues/{id}", s.handleDeleteRevenue)
	s.route("GET /api/revenues/{id}/sheet.pdf", s.handleRevenueSheetPDF)

	s.route("GET /api/summary", s.handleSummary)
	s.route("GET /api/audit", s.handleAudit)
	s.route("GET /api/years", s.handleYears)
	s.route("GET /api/reports/summary.pdf", s.handleSummaryPDF)
	s.route("GET /api/reports/summary.xlsx", s.handleSummaryXLSX)
}

func (s *Server) route(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(pattern, h))
}

// instrument adds security headers, rate limiting of writes, metrics and
// request logging to one route.
func (s *Server) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)
		sl := log.NewStructuredLogger(log.FromContext(ctx))
		sl.LogHTTPStart(ctx, r, clientIP)

		if isSuspicious(r) {
			s.metrics.suspicious.Inc()
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request", log.NewFields().
				WithClientIP(clientIP).WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).ToSlice()...)
		}

		setSecurityHeaders(w.Header())
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		if isMutation(r.Method) && !s.rateLimiter.allow(clientIP) {
			s.metrics.rateLimited.Inc()
			log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded", log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
				Header("Retry-After", "60").Write(rw)
		} else {
			next(rw, r)
		}

		elapsed := time.Since(start)
		s.metrics.observe(route, rw.statusCode, elapsed)
		sl.LogHTTPEnd(ctx, r, rw.statusCode, elapsed.Milliseconds(), clientIP)
	})
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// withRequestID settles the request ID once and echoes it to the client.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		r.Header.Set("X-Request-ID", id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
