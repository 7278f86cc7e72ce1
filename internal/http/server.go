package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fincore/internal/log"
	"fincore/internal/metrics"
	"fincore/internal/middleware/ratelimit"
	"fincore/internal/middleware/security"
	"fincore/internal/middleware/trace"
	"fincore/internal/services"
)

// AccountHeader carries the caller's account id, set by the auth proxy in
// front of this service.
const AccountHeader = "X-Account-ID"

// Deps are the services the API exposes.
type Deps struct {
	Distributor *services.Distributor
	Summaries   *services.SummaryService
	Projections *services.ProjectionService
	Metrics     *metrics.Metrics
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(context.Context) error

	RateLimitPerMinute int
	AllowedOrigins     []string
	RequestTimeout     time.Duration
}

type Server struct {
	http.Server
	router   *chi.Mux
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *log.Logger
}

// NewServer configures middleware and routes, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		router:   chi.NewRouter(),
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector: security.NewDetector(),
		logger:   log.Default(log.ComponentHTTP),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      deps.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(log.Middleware(s.logger))
	s.router.Use(trace.NewMiddleware(s.detector.ExtractClientIP).Middleware)
	s.router.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))
	s.router.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", AccountHeader},
		ExposedHeaders: []string{trace.RequestIDHeader},
		MaxAge:         300,
	}))
	s.router.Use(middleware.Timeout(s.deps.RequestTimeout))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.detectSuspicious)
		r.With(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)).
			Post("/distributions", s.handleDistribute)
		r.Get("/summary", s.handleSummary)
		r.Get("/insights", s.handleInsights)
		r.Post("/simulations", s.handleSimulate)
	})
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Retryable: true})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
