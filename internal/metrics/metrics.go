package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AdapterRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_adapter_requests_total",
			Help: "Total number of provider requests issued by source adapters",
		},
		[]string{"source", "outcome"},
	)

	AdapterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quarry_adapter_duration_seconds",
			Help:    "Duration of provider requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"source"},
	)

	AdapterResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_adapter_results_total",
			Help: "Total number of normalized results produced per source",
		},
		[]string{"source"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_cache_lookups_total",
			Help: "Cache lookups by outcome",
		},
		[]string{"result"},
	)

	FallbackRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_fallback_requests_total",
			Help: "Degraded retries issued after a failed primary request",
		},
		[]string{"source"},
	)

	BlockedResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_blocked_responses_total",
			Help: "Provider responses identified as bot protection challenges",
		},
		[]string{"source", "protection"},
	)

	EnrichFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_enrich_failures_total",
			Help: "Per-item secondary lookups that failed and were degraded",
		},
		[]string{"source"},
	)
)

// RecordAdapter updates the request metrics for one provider call. outcome is
// "ok" or the failure kind.
func RecordAdapter(source, outcome string, d time.Duration, results int) {
	AdapterRequestsTotal.WithLabelValues(source, outcome).Inc()
	AdapterDuration.WithLabelValues(source).Observe(d.Seconds())
	if results > 0 {
		AdapterResultsTotal.WithLabelValues(source).Add(float64(results))
	}
}

// RecordCache counts a cache lookup.
func RecordCache(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
