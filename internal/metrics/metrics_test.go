package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifedash/internal/core"
)

type publisherFunc func(context.Context, core.RecordChange) error

func (f publisherFunc) PublishChange(ctx context.Context, c core.RecordChange) error { return f(ctx, c) }

func TestObserveFetch(t *testing.T) {
	m := New()
	m.ObserveFetch(1, 20*time.Millisecond, nil)
	m.ObserveFetch(2, 30*time.Millisecond, errors.New("timeout"))
	m.ObserveFetch(3, 10*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchPages.WithLabelValues("refresh", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchPages.WithLabelValues("more", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchPages.WithLabelValues("more", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.fetchDuration))
}

func TestInstrumentPublisher(t *testing.T) {
	m := New()
	fail := errors.New("broker down")
	calls := 0
	p := m.InstrumentPublisher(publisherFunc(func(_ context.Context, c core.RecordChange) error {
		calls++
		if c.Op == core.ChangeDelete {
			return fail
		}
		return nil
	}))

	ctx := context.Background()
	require.NoError(t, p.PublishChange(ctx, core.RecordChange{Op: core.ChangeUpsert}))
	require.ErrorIs(t, p.PublishChange(ctx, core.RecordChange{Op: core.ChangeDelete}), fail)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("upsert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("delete", "error")))
}

func TestAcksExportsAndGauge(t *testing.T) {
	m := New()
	m.ObserveAck(true)
	m.ObserveAck(false)
	m.ObserveAck(false)
	m.ObserveExport(core.ChangeUpsert, nil)
	m.ObserveRequest("GET /api/stats", http.StatusOK)
	require.NoError(t, m.Gauge("resident_sessions", "Sessions held in memory.", func() float64 { return 3 }))
	require.Error(t, m.Gauge("resident_sessions", "duplicate", func() float64 { return 0 }))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.acks.WithLabelValues("applied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.acks.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("upsert", "ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "lifedash_resident_sessions 3"), body)
	assert.True(t, strings.Contains(body, `lifedash_http_requests_total{code="200",route="GET /api/stats"} 1`))
}
