package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"lifedash/internal/auth"
	applog "lifedash/internal/log"
	"lifedash/internal/middleware/ratelimit"
	"lifedash/internal/middleware/security"
	"lifedash/internal/middleware/trace"
	"lifedash/internal/session"
)

// SessionProvider hands out the session owned by a user. The session stays
// in memory until release is called.
type SessionProvider interface {
	Acquire(ctx context.Context, userID string) (sess *session.Session, release func(), err error)
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Server is the JSON API over per-user sessions.
type Server struct {
	http.Server

	sessions SessionProvider
	auth     *auth.Authenticator
	limiter  *ratelimit.Limiter
	detector *security.Detector
	observer trace.RequestObserver
	metrics  http.Handler
	checks   map[string]ReadinessCheck
	logger   *applog.Logger
	started  time.Time
}

type Option func(*Server)

// WithAuthenticator sets how callers are identified. The default trusts the
// X-User-ID header.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithRateLimiter throttles mutating calls per user.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithDetector replaces the default request screener.
func WithDetector(d *security.Detector) Option {
	return func(s *Server) { s.detector = d }
}

// WithMetrics mounts h on /metrics and reports per-route request counts to o.
func WithMetrics(h http.Handler, o trace.RequestObserver) Option {
	return func(s *Server) {
		s.metrics = h
		s.observer = o
	}
}

// WithReadinessCheck adds a named dependency check to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithLogger sets the request logger.
func WithLogger(l *applog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(addr string, sessions SessionProvider, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		checks:   make(map[string]ReadinessCheck),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = auth.New("")
	}
	if s.detector == nil {
		s.detector = security.NewDetector()
	}
	if s.logger == nil {
		s.logger = applog.FromContext(context.Background()).WithComponent(applog.ComponentHTTP)
	}

	traceOpts := []trace.Option{trace.WithLogger(s.logger)}
	if s.observer != nil {
		traceOpts = append(traceOpts, trace.WithObserver(s.observer))
	}
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, traceOpts...)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(s.detector.Middleware(headers.Middleware(s.routes()))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	read := func(h sessionHandler) http.Handler { return s.authed(s.withSession(h)) }
	write := func(h sessionHandler) http.Handler { return s.authed(s.throttled(s.withSession(h))) }

	mux.Handle("GET /api/transactions", read(s.handleListTransactions))
	mux.Handle("POST /api/transactions", write(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions/{id}", read(s.handleGetTransaction))
	mux.Handle("PATCH /api/transactions/{id}", write(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", write(s.handleDeleteTransaction))

	mux.Handle("GET /api/stats", read(s.handleStats))
	mux.Handle("GET /api/stats/monthly", read(s.handleMonthlyStats))

	mux.Handle("GET /api/filter", read(s.handleGetFilter))
	mux.Handle("PUT /api/filter", write(s.handleSetFilter))
	mux.Handle("DELETE /api/filter", write(s.handleClearFilter))

	mux.Handle("GET /api/pagination", read(s.handlePagination))
	mux.Handle("POST /api/pagination/refresh", write(s.handleRefresh))
	mux.Handle("POST /api/pagination/more", write(s.handleLoadMore))

	mux.Handle("GET /api/events", read(s.handleListEvents))
	mux.Handle("POST /api/events", write(s.handleCreateEvent))
	mux.Handle("GET /api/events/day", read(s.handleEventsOnDay))
	mux.Handle("PATCH /api/events/{id}", write(s.handleUpdateEvent))
	mux.Handle("DELETE /api/events/{id}", write(s.handleDeleteEvent))

	return mux
}

type sessionHandler func(http.ResponseWriter, *http.Request, *session.Session)

func (s *Server) authed(next http.Handler) http.Handler {
	return s.auth.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		ErrorResponse(http.StatusUnauthorized, err.Error()).Header("WWW-Authenticate", "Bearer").Write(w)
	})(next)
}

func (s *Server) throttled(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	key := func(r *http.Request) string {
		if uid, err := auth.UserIDFromContext(r.Context()); err == nil {
			return "user:" + uid
		}
		return "ip:" + s.detector.ExtractClientIP(r)
	}
	return s.limiter.Middleware(key, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})(next)
}

func (s *Server) withSession(h sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := auth.UserIDFromContext(r.Context())
		if err != nil {
			ErrorResponse(http.StatusUnauthorized, err.Error()).Write(w)
			return
		}
		sess, release, err := s.sessions.Acquire(r.Context(), uid)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer release()
		h(w, r, sess)
	})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every registered dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

// Shutdown drains connections and stops background helpers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.Server.Shutdown(ctx)
}
