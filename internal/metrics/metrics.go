package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/burrow/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_fetch_requests_total",
			Help: "Total number of result page fetches executed",
		},
		[]string{"domain", "status", "detected", "detection_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_fetch_duration_seconds",
			Help:    "Duration of result page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_fetch_bytes_total",
			Help: "Total bytes downloaded across all result page fetches",
		},
		[]string{"domain"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_searches_total",
			Help: "Total number of engine searches by outcome",
		},
		[]string{"engine", "status"},
	)

	SearchResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_search_results",
			Help:    "Number of results returned per successful search",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		},
		[]string{"engine"},
	)

	SearchDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_search_dropped_total",
			Help: "Candidate blocks discarded by post-processing (incomplete or unresolved wrapper links)",
		},
		[]string{"engine"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)
)

// Search outcome labels.
const (
	StatusOK      = "ok"
	StatusBlocked = "blocked"
	StatusError   = "error"
)

// RecordFetch updates the fetch metrics given a Response and domain.
func RecordFetch(domain string, res *storage.Response) {
	if res == nil {
		return
	}

	detectedStr := strconv.FormatBool(res.DetectedBot)

	statusStr := strconv.Itoa(res.StatusCode)
	if res.Error != "" {
		statusStr = "error"
	}

	FetchRequestsTotal.WithLabelValues(domain, statusStr, detectedStr, res.DetectionSrc).Inc()
	FetchDuration.WithLabelValues(domain).Observe(res.Duration.Seconds())
	FetchBytesTotal.WithLabelValues(domain).Add(float64(len(res.Body)))
}

// RecordSearch updates the search metrics. extracted is the number of
// candidate blocks found, kept the number that survived post-processing.
func RecordSearch(engine, status string, extracted, kept int) {
	SearchesTotal.WithLabelValues(engine, status).Inc()
	if status != StatusOK {
		return
	}
	SearchResults.WithLabelValues(engine).Observe(float64(kept))
	if dropped := extracted - kept; dropped > 0 {
		SearchDroppedTotal.WithLabelValues(engine).Add(float64(dropped))
	}
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
	mux.Handle("/metrics", promhttp.Handler())

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
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
