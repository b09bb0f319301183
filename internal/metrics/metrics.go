// Package metrics exports provider, soundboard and cache counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/haleyos/haley/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "haley"

// Metrics holds every collector on a private registry.
// All methods are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	streamsTotal   *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec
	tokensTotal    *prometheus.CounterVec
	providerErrors *prometheus.CounterVec
	deltaBuilds    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		// streamsTotal counts provider streams by outcome
		streamsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_streams_total",
			Help:      "Total provider streams by provider and status",
		}, []string{"provider", "status"}),

		streamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_stream_duration_seconds",
			Help:      "Provider stream latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),

		// tokensTotal counts streamed text deltas, not model tokens
		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_stream_chunks_total",
			Help:      "Total streamed text chunks by provider",
		}, []string{"provider"}),

		providerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total provider errors",
		}, []string{"provider"}),

		deltaBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "soundboard",
			Name:      "delta_builds_total",
			Help:      "Total delta builds by result",
		}, []string{"result"}),

		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Module cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveStream records one finished provider stream
func (m *Metrics) ObserveStream(provider string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.providerErrors.WithLabelValues(provider).Inc()
	}
	m.streamsTotal.WithLabelValues(provider, status).Inc()
	m.streamDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// AddChunk records one streamed text delta
func (m *Metrics) AddChunk(provider string) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues(provider).Inc()
}

// DeltaBuilt records a delta build result
func (m *Metrics) DeltaBuilt(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.deltaBuilds.WithLabelValues("failed").Inc()
		return
	}
	m.deltaBuilds.WithLabelValues("complete").Inc()
}

// CacheLookup records a cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// Registry exposes the underlying registry (tests, extra collectors)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
