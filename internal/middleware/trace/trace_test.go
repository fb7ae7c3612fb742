package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	applog "lifedash/internal/log"
)

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
	codes  []int
}

func (o *recordingObserver) ObserveRequest(route string, code int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, route)
	o.codes = append(o.codes, code)
}

func newTestMiddleware(buf *bytes.Buffer, obs RequestObserver) *Middleware {
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Component: applog.ComponentHTTP, Format: "json", Output: buf})
	return NewMiddleware(func(*http.Request) string { return "192.0.2.1" }, WithLogger(logger), WithObserver(obs))
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	obs := &recordingObserver{}
	m := newTestMiddleware(&buf, obs)

	var seen string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		applog.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	m.Middleware(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("expected generated request id, got %q", seen)
	}
	if got := rec.Header().Get(HeaderRequestID); got != seen {
		t.Fatalf("response header %q != context id %q", got, seen)
	}
	if !strings.Contains(buf.String(), `"inside handler"`) || !strings.Contains(buf.String(), seen) {
		t.Fatalf("handler log missing request id: %s", buf.String())
	}
	if len(obs.routes) != 1 || obs.routes[0] != "GET /items/{id}" || obs.codes[0] != http.StatusTeapot {
		t.Fatalf("unexpected observations: %v %v", obs.routes, obs.codes)
	}
	if st := m.Stats(); st.Requests != 1 || st.MeanLatency < 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestMiddlewareHonoursIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	obs := &recordingObserver{}
	m := newTestMiddleware(&buf, obs)
	h := m.Middleware(http.NotFoundHandler())

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"valid", "abc-123_x.y", true},
		{"too long", strings.Repeat("a", 65), false},
		{"bad characters", "id with spaces", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/missing", nil)
			req.Header.Set(HeaderRequestID, tt.incoming)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			if tt.keep && got != tt.incoming {
				t.Fatalf("expected %q to be echoed, got %q", tt.incoming, got)
			}
			if !tt.keep && got == tt.incoming {
				t.Fatalf("expected %q to be replaced", tt.incoming)
			}
		})
	}
	if obs.routes[0] != "unmatched" || obs.codes[0] != http.StatusNotFound {
		t.Fatalf("unexpected observation: %v %v", obs.routes, obs.codes)
	}
}

func TestNewRequestIDIsAccepted(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if a == b || len(a) != len("req_")+32 {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
	if !validRequestID(a) {
		t.Fatalf("generated id %q rejected", a)
	}
}
