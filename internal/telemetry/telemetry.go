// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for the autotagger service.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "autotagger"

// Metrics holds all autotagger Prometheus metrics
type Metrics struct {
	// Pipeline metrics
	Classifications  *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec

	// Linking metrics
	TermsLinked         *prometheus.CounterVec
	FeatureLinkFailures *prometheus.CounterVec

	// Batch metrics
	BatchItems   *prometheus.CounterVec
	BatchRetries prometheus.Counter
	BatchSize    prometheus.Histogram
}

// Provider wraps telemetry providers. A nil *Provider is valid and records nothing.
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics

	gatherer prometheus.Gatherer
}

// NewProvider initializes telemetry against the default Prometheus registry.
func NewProvider() *Provider {
	return newProvider(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewProviderWithRegistry registers metrics on reg. Tests use a fresh
// registry per provider to avoid duplicate registration.
func NewProviderWithRegistry(reg *prometheus.Registry) *Provider {
	return newProvider(reg, reg)
}

func newProvider(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Provider {
	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		gatherer: gatherer,
	}
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	if p == nil || p.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func initMetrics(factory promauto.Factory) *Metrics {
	m := &Metrics{}
	initPipelineMetrics(factory, m)
	initLinkMetrics(factory, m)
	initBatchMetrics(factory, m)
	return m
}

func initPipelineMetrics(factory promauto.Factory, m *Metrics) {
	m.Classifications = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "autotagger_classifications_total",
		Help: "Classify calls by operation and outcome kind",
	}, []string{"operation", "outcome"})

	m.AnalysisDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autotagger_analysis_duration_seconds",
		Help:    "Latency of provider analysis requests",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})
}

func initLinkMetrics(factory promauto.Factory, m *Metrics) {
	m.TermsLinked = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "autotagger_terms_linked_total",
		Help: "Terms associated with content, by feature",
	}, []string{"feature"})

	m.FeatureLinkFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "autotagger_feature_link_failures_total",
		Help: "Features whose linking failed",
	}, []string{"feature"})
}

func initBatchMetrics(factory promauto.Factory, m *Metrics) {
	m.BatchItems = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "autotagger_batch_items_total",
		Help: "Batch items by final status (succeeded, failed, skipped)",
	}, []string{"status"})

	m.BatchRetries = factory.NewCounter(prometheus.CounterOpts{
		Name: "autotagger_batch_retries_total",
		Help: "Retries of transport failures during batch runs",
	})

	m.BatchSize = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "autotagger_batch_size",
		Help:    "Number of content items per batch run",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordClassification counts one classify call by its outcome kind.
func (p *Provider) RecordClassification(_ context.Context, operation, outcome string) {
	if p == nil {
		return
	}
	p.Metrics.Classifications.WithLabelValues(operation, outcome).Inc()
}

// RecordAnalysis observes one provider request.
func (p *Provider) RecordAnalysis(_ context.Context, outcome string, duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.AnalysisDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordLink records the outcome of linking one feature.
func (p *Provider) RecordLink(_ context.Context, feature string, terms int, failed bool) {
	if p == nil {
		return
	}
	if failed {
		p.Metrics.FeatureLinkFailures.WithLabelValues(feature).Inc()
		return
	}
	p.Metrics.TermsLinked.WithLabelValues(feature).Add(float64(terms))
}

// RecordBatchItem counts one batch item by final status.
func (p *Provider) RecordBatchItem(status string) {
	if p == nil {
		return
	}
	p.Metrics.BatchItems.WithLabelValues(status).Inc()
}

// IncrementBatchRetries increments the batch retry counter
func (p *Provider) IncrementBatchRetries() {
	if p == nil {
		return
	}
	p.Metrics.BatchRetries.Inc()
}

// RecordBatchSize records the size of a batch run
func (p *Provider) RecordBatchSize(size int) {
	if p == nil {
		return
	}
	p.Metrics.BatchSize.Observe(float64(size))
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p == nil || p.Tracer == nil {
		return otel.Tracer(serviceName).Start(ctx, name, trace.WithAttributes(attrs...))
	}
	return p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
