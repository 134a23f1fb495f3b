// Package metrics provides Prometheus instrumentation for rate limiters.
//
// Wrap any decider.Limiter to automatically record request counts,
// latency, and backend errors:
//
//	collector := metrics.NewCollector()
//	limiter, _ := decider.NewBuilder().TokenBucket(100, 10).Build()
//	limiter = metrics.Wrap(limiter, metrics.TokenBucket, collector)
//
// All metrics are partitioned by algorithm name. Request counts carry an
// additional "decision" label (allowed / denied).
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	decider "github.com/ratelimitd/decider"
)

// Algorithm name constants for the algorithm label.
const (
	TokenBucket   = "token_bucket"
	LeakyBucket   = "leaky_bucket"
	SlidingWindow = "sliding_window"
)

// Collector holds Prometheus metric vectors for rate limiter instrumentation.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

type collectorConfig struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer
	buckets   []float64
}

// CollectorOption configures a Collector.
type CollectorOption func(*collectorConfig)

// WithNamespace sets the Prometheus metric namespace (prefix).
func WithNamespace(ns string) CollectorOption {
	return func(c *collectorConfig) { c.namespace = ns }
}

// WithSubsystem sets the Prometheus metric subsystem.
func WithSubsystem(sub string) CollectorOption {
	return func(c *collectorConfig) { c.subsystem = sub }
}

// WithRegistry registers metrics with the given Registerer instead of
// prometheus.DefaultRegisterer.
func WithRegistry(r prometheus.Registerer) CollectorOption {
	return func(c *collectorConfig) { c.registry = r }
}

// WithBuckets sets custom histogram buckets for request duration.
func WithBuckets(b []float64) CollectorOption {
	return func(c *collectorConfig) { c.buckets = b }
}

var defaultBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}

// NewCollector creates a Collector and registers its metrics.
//
// Metrics registered:
//   - {namespace}_requests_total        counter   (algorithm, decision)
//   - {namespace}_request_duration_seconds  histogram (algorithm)
//   - {namespace}_errors_total          counter   (algorithm)
//
// Default namespace is "ratelimit".
func NewCollector(opts ...CollectorOption) *Collector {
	cfg := &collectorConfig{
		namespace: "ratelimit",
		registry:  prometheus.DefaultRegisterer,
		buckets:   defaultBuckets,
	}
	for _, o := range opts {
		o(cfg)
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "requests_total",
		Help:      "Total rate limit checks partitioned by algorithm and decision.",
	}, []string{"algorithm", "decision"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "request_duration_seconds",
		Help:      "Latency of rate limit Check/CheckN calls in seconds.",
		Buckets:   cfg.buckets,
	}, []string{"algorithm"})

	errors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "errors_total",
		Help:      "Total rate limiter backend errors.",
	}, []string{"algorithm"})

	cfg.registry.MustRegister(requests, duration, errors)

	return &Collector{
		requests: requests,
		duration: duration,
		errors:   errors,
	}
}

// Wrap returns a Limiter that transparently records Prometheus metrics
// for every Check and CheckN call delegated to inner.
func Wrap(inner decider.Limiter, algorithm string, c *Collector) decider.Limiter {
	return &instrumentedLimiter{
		inner:     inner,
		algorithm: algorithm,
		collector: c,
	}
}

type instrumentedLimiter struct {
	inner     decider.Limiter
	algorithm string
	collector *Collector
}

func (l *instrumentedLimiter) Check(ctx context.Context, subject string) (decider.Envelope, error) {
	return l.CheckN(ctx, subject, 1)
}

func (l *instrumentedLimiter) CheckN(ctx context.Context, subject string, n float64) (decider.Envelope, error) {
	start := time.Now()
	envelope, err := l.inner.CheckN(ctx, subject, n)
	l.collector.duration.WithLabelValues(l.algorithm).Observe(time.Since(start).Seconds())

	if err != nil {
		l.collector.errors.WithLabelValues(l.algorithm).Inc()
		return envelope, err
	}

	l.recordDecision(envelope)
	return envelope, nil
}

func (l *instrumentedLimiter) Reset(ctx context.Context, subject string) error {
	return l.inner.Reset(ctx, subject)
}

func (l *instrumentedLimiter) recordDecision(envelope decider.Envelope) {
	decision := "denied"
	if envelope.Allowed {
		decision = "allowed"
	}
	l.collector.requests.WithLabelValues(l.algorithm, decision).Inc()
}
