package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(perMinute int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewLimiter(Config{RequestsPerMinute: perMinute, Clock: clock.Now}), clock
}

func TestLimiterAllow(t *testing.T) {
	rl, clock := newTestLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("alice") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("alice") {
		t.Fatal("fourth request in the window should be rejected")
	}
	if !rl.Allow("bob") {
		t.Fatal("other keys have their own bucket")
	}

	// Continuous traffic must not extend the window.
	clock.Advance(30 * time.Second)
	if rl.Allow("alice") {
		t.Fatal("still inside the window")
	}
	clock.Advance(30 * time.Second)
	if !rl.Allow("alice") {
		t.Fatal("a new window should start after one minute")
	}

	if got := rl.Stats(); got.Rejected != 2 || got.Keys != 2 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter(10)
	defer rl.Stop()

	rl.Allow("old")
	clock.Advance(11 * time.Minute)
	rl.Allow("fresh")

	if removed := rl.Sweep(); removed != 1 {
		t.Fatalf("expected 1 idle key removed, got %d", removed)
	}
	if keys := rl.Stats().Keys; keys != 1 {
		t.Fatalf("expected 1 tracked key, got %d", keys)
	}
}

func TestLimiterMiddleware(t *testing.T) {
	rl, clock := newTestLimiter(1)
	defer rl.Stop()

	h := rl.Middleware(func(r *http.Request) string { return r.Header.Get("X-User-ID") }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)
		req.Header.Set("X-User-ID", "alice")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusNoContent {
		t.Fatalf("first request: %d", rec.Code)
	}
	clock.Advance(20 * time.Second)
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "40" {
		t.Fatalf("Retry-After = %q, want 40", got)
	}
}
