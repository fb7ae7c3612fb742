// Package trace assigns request ids and logs every HTTP request.
package trace

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "lifedash/internal/log"
)

// HeaderRequestID carries the request id in and out.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLength = 64

type requestIDKey struct{}

// RequestObserver is notified once per completed request. route is the
// matched ServeMux pattern, or "unmatched".
type RequestObserver interface {
	ObserveRequest(route string, code int)
}

// Middleware tags requests with an id, puts a request-scoped logger in the
// context and writes one access line per request.
type Middleware struct {
	clientIP func(*http.Request) string
	logger   *applog.Logger
	observer RequestObserver

	requests     atomic.Int64
	totalLatency atomic.Int64
}

type Option func(*Middleware)

// WithObserver reports route and status of each request.
func WithObserver(o RequestObserver) Option {
	return func(m *Middleware) { m.observer = o }
}

// WithLogger replaces the default logger.
func WithLogger(l *applog.Logger) Option {
	return func(m *Middleware) { m.logger = l }
}

// NewMiddleware builds the tracer. clientIP may be nil.
func NewMiddleware(clientIP func(*http.Request) string, opts ...Option) *Middleware {
	m := &Middleware{clientIP: clientIP}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = applog.FromContext(context.Background()).WithComponent(applog.ComponentHTTP)
	}
	return m
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(HeaderRequestID)
		if !validRequestID(id) {
			id = NewRequestID()
		}
		w.Header().Set(HeaderRequestID, id)

		var ip string
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}

		logger := m.logger.With(applog.FieldRequestID, id)
		ctx := applog.NewContext(context.WithValue(r.Context(), requestIDKey{}, id), logger)
		r = r.WithContext(ctx)
		logger.DebugContext(ctx, "HTTP request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, ip)

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		status := sw.Status()

		elapsed := time.Since(start)
		m.requests.Add(1)
		m.totalLatency.Add(int64(elapsed))
		m.logger.HTTPCompleted(ctx, r, id, status, elapsed.Milliseconds(), ip)

		if m.observer != nil {
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.observer.ObserveRequest(route, status)
		}
	})
}

// Stats is a running summary of handled requests.
type Stats struct {
	Requests    int64
	MeanLatency time.Duration
}

func (m *Middleware) Stats() Stats {
	n := m.requests.Load()
	if n == 0 {
		return Stats{}
	}
	return Stats{Requests: n, MeanLatency: time.Duration(m.totalLatency.Load() / n)}
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Status is the code sent to the client; 200 when the handler wrote nothing.
func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// NewRequestID returns "req_" followed by 32 random hex digits.
func NewRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// validRequestID accepts caller-supplied ids made of [A-Za-z0-9_.-].
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	return strings.IndexFunc(id, func(c rune) bool {
		return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '.')
	}) < 0
}

// GetRequestID returns the id assigned by Middleware, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
