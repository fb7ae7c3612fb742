// Package metrics exposes Prometheus instrumentation for fetches, change
// publishing, acknowledgements and exports.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifedash/internal/core"
)

const namespace = "lifedash"

// Metrics owns a private registry so tests and multiple binaries never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	fetchDuration *prometheus.HistogramVec
	fetchPages    *prometheus.CounterVec
	published     *prometheus.CounterVec
	acks          *prometheus.CounterVec
	exports       *prometheus.CounterVec
	requests      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Remote page fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		fetchPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_pages_total",
			Help:      "Remote page fetches by kind and outcome.",
		}, []string{"kind", "outcome"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_published_total",
			Help:      "Record changes handed to the change publisher.",
		}, []string{"op", "outcome"}),
		acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_acks_total",
			Help:      "Sync acknowledgements received, by whether they marked a record synced.",
		}, []string{"result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Record changes written to the export sink.",
		}, []string{"op", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetchDuration, m.fetchPages, m.published, m.acks, m.exports, m.requests,
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gauge registers a gauge whose value is read from fn on every scrape.
func (m *Metrics) Gauge(name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// ObserveFetch implements pagination.Observer.
func (m *Metrics) ObserveFetch(page int, elapsed time.Duration, err error) {
	kind := "more"
	if page == 1 {
		kind = "refresh"
	}
	o := outcome(err)
	m.fetchDuration.WithLabelValues(o).Observe(elapsed.Seconds())
	m.fetchPages.WithLabelValues(kind, o).Inc()
}

// ObserveAck counts an acknowledgement.
func (m *Metrics) ObserveAck(applied bool) {
	if applied {
		m.acks.WithLabelValues("applied").Inc()
		return
	}
	m.acks.WithLabelValues("stale").Inc()
}

// ObserveExport counts one export attempt.
func (m *Metrics) ObserveExport(op core.ChangeOp, err error) {
	m.exports.WithLabelValues(string(op), outcome(err)).Inc()
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

type changePublisher interface {
	PublishChange(ctx context.Context, change core.RecordChange) error
}

// Publisher counts every change passed through to next.
type Publisher struct {
	next    changePublisher
	metrics *Metrics
}

// InstrumentPublisher wraps a change publisher with publish counters.
func (m *Metrics) InstrumentPublisher(next changePublisher) *Publisher {
	return &Publisher{next: next, metrics: m}
}

func (p *Publisher) PublishChange(ctx context.Context, change core.RecordChange) error {
	err := p.next.PublishChange(ctx, change)
	p.metrics.published.WithLabelValues(string(change.Op), outcome(err)).Inc()
	return err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
