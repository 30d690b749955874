package telemetry

import (
	"net/http"

	binding "github.com/goliatone/go-binding"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes recorded in the outcome label.
const (
	OutcomeOK        = "ok"
	OutcomeErrors    = "errors"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// Metrics records binding requests on a private Prometheus registry. A
// disabled instance accepts every call and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	records         *prometheus.CounterVec
	activityFailure *prometheus.CounterVec
}

var _ binding.RequestLogger = (*Metrics)(nil)

// NewMetrics creates the collectors described by cfg.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{}, nil
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of binding requests by outcome",
			},
			[]string{"resource", "operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of binding requests in seconds",
				Buckets:   buckets,
			},
			[]string{"resource", "operation"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "records_received_total",
				Help:      "Total number of records carried by applied responses",
			},
			[]string{"resource"},
		),
		activityFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "activity_failures_total",
				Help:      "Total number of activity events that failed to emit",
			},
			[]string{"resource", "operation"},
		),
	}

	for _, collector := range []prometheus.Collector{m.requests, m.duration, m.records, m.activityFailure} {
		if err := m.registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Enabled reports whether metrics are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// LogRequest implements binding.RequestLogger.
func (m *Metrics) LogRequest(event binding.RequestLogEvent) {
	if !m.Enabled() {
		return
	}
	operation := string(event.Operation)
	m.requests.WithLabelValues(event.Resource, operation, outcome(event)).Inc()
	m.duration.WithLabelValues(event.Resource, operation).Observe(event.Duration.Seconds())
	if !event.Discarded && event.Records > 0 {
		m.records.WithLabelValues(event.Resource).Add(float64(event.Records))
	}
	if event.ActivityErr != nil {
		m.activityFailure.WithLabelValues(event.Resource, operation).Inc()
	}
}

// Registry returns the private registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func outcome(event binding.RequestLogEvent) string {
	switch {
	case event.Discarded:
		return OutcomeDiscarded
	case event.Err != nil:
		return OutcomeFailed
	case event.Errors > 0:
		return OutcomeErrors
	default:
		return OutcomeOK
	}
}
