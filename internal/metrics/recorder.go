package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "towergen"

// Recorder owns the service collectors on a private registry. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	towers       *prometheus.CounterVec
	tickets      *prometheus.CounterVec
	clamps       *prometheus.CounterVec
	generation   *prometheus.HistogramVec
	grpcRequests *prometheus.CounterVec
	grpcLatency  *prometheus.HistogramVec
	cache        *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		towers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "towers_generated_total",
			Help:      "Towers generated, by tier and vendor.",
		}, []string{"tier", "vendor"}),
		tickets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_correlated_total",
			Help:      "Tickets bound to towers, by tower tier and request category.",
		}, []string{"tier", "category"}),
		clamps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_clamps_total",
			Help:      "Derived values clamped back into their valid range, by metric.",
		}, []string{"metric"}),
		generation: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of generation phases.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"phase"}),
		grpcRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Unary gRPC requests, by method and status code.",
		}, []string{"method", "code"}),
		grpcLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "Unary gRPC request latency, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Read-through cache lookups, by result.",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) TowerGenerated(tier, vendor string) {
	if r == nil {
		return
	}
	r.towers.WithLabelValues(tier, vendor).Inc()
}

func (r *Recorder) TicketCorrelated(tier, category string) {
	if r == nil {
		return
	}
	r.tickets.WithLabelValues(tier, category).Inc()
}

func (r *Recorder) Clamped(metric string) {
	if r == nil {
		return
	}
	r.clamps.WithLabelValues(metric).Inc()
}

func (r *Recorder) ObserveGeneration(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.generation.WithLabelValues(phase).Observe(d.Seconds())
}

func (r *Recorder) GRPCRequest(method, code string, d time.Duration) {
	if r == nil {
		return
	}
	r.grpcRequests.WithLabelValues(method, code).Inc()
	r.grpcLatency.WithLabelValues(method).Observe(d.Seconds())
}

// CacheResult records a cache lookup outcome: hit, miss or error.
func (r *Recorder) CacheResult(result string) {
	if r == nil {
		return
	}
	r.cache.WithLabelValues(result).Inc()
}
