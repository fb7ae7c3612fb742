// Package ratelimit throttles callers with a fixed one-minute window per key.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

// Config tunes a Limiter. Zero values fall back to DefaultConfig.
type Config struct {
	RequestsPerMinute int
	// CleanupInterval is how often idle keys are swept.
	CleanupInterval time.Duration
	// IdleTTL is how long a key may stay silent before it is forgotten.
	IdleTTL time.Duration
	// Clock overrides time.Now; a custom clock also disables the background
	// sweeper.
	Clock func() time.Time
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

// bucket counts the requests of one key inside the current window.
type bucket struct {
	opened time.Time
	seen   time.Time
	count  int
}

// take charges one request against b and reports whether it fits.
func (b *bucket) take(now time.Time, limit int) bool {
	b.seen = now
	if now.Sub(b.opened) >= window {
		b.opened, b.count = now, 0
	}
	if b.count >= limit {
		return false
	}
	b.count++
	return true
}

// Limiter hands out per-key request budgets.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	rejected atomic.Int64
	done     chan struct{}
	stopOnce sync.Once
}

func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}

	l := &Limiter{
		cfg:     cfg,
		now:     cfg.Clock,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	if l.now == nil {
		l.now = time.Now
		go l.sweepLoop()
	}
	return l
}

// Allow reports whether one more request for key fits in the current window.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{opened: now}
		l.buckets[key] = b
	}
	allowed := b.take(now, l.cfg.RequestsPerMinute)
	l.mu.Unlock()

	if !allowed {
		l.rejected.Add(1)
	}
	return allowed
}

// RetryAfter returns how long key must wait for a fresh window.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	return max(window-l.now().Sub(b.opened), 0)
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Sweep forgets keys idle for longer than IdleTTL and returns how many
// were dropped.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.cfg.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// Stop ends the background sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Stats is a point-in-time view of the limiter.
type Stats struct {
	Rejected int64
	Keys     int
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	keys := len(l.buckets)
	l.mu.Unlock()
	return Stats{Rejected: l.rejected.Load(), Keys: keys}
}

// Middleware rejects requests whose key is over budget with 429 and a
// Retry-After header. key picks the bucket for a request; onLimit writes the
// rejection body and may be nil.
func (l *Limiter) Middleware(key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if l.Allow(k) {
				next.ServeHTTP(w, r)
				return
			}
			secs := max(int(l.RetryAfter(k).Round(time.Second)/time.Second), 1)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			onLimit(w, r)
		})
	}
}
