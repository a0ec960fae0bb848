// Package metrics holds the Prometheus collectors for a crawl run and the
// optional /metrics endpoint.
//
// Collectors:
//   - forkcrawl_requests_total{status} (Counter): GitHub responses by HTTP status, "error" for transport failures
//   - forkcrawl_request_duration_seconds (Histogram): request latency
//   - forkcrawl_retries_total{kind} (Counter): in-place retries by error kind
//   - forkcrawl_credential_rotations_total (Counter)
//   - forkcrawl_rate_limit_waits_total (Counter) and forkcrawl_rate_limit_wait_seconds_total (Counter)
//   - forkcrawl_rate_limit_remaining{credential} (Gauge)
//   - forkcrawl_pages_fetched_total, forkcrawl_records_seen_total, forkcrawl_records_skipped_total (Counter)
//   - forkcrawl_checkpoint_saves_total{reason} (Counter)
//   - forkcrawl_projects_total{state} (Counter)
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all collectors are attached to
var Registry = prometheus.DefaultRegisterer

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forkcrawl_requests_total",
		Help: "GitHub API responses by HTTP status",
	}, []string{"status"})

	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forkcrawl_request_duration_seconds",
		Help:    "GitHub API request latency",
		Buckets: prometheus.DefBuckets,
	})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forkcrawl_retries_total",
		Help: "Requests retried in place, by error kind",
	}, []string{"kind"})

	CredentialRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forkcrawl_credential_rotations_total",
		Help: "Switches to the next credential",
	})

	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forkcrawl_rate_limit_waits_total",
		Help: "Waits for a quota reset after every credential was exhausted",
	})

	RateLimitWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forkcrawl_rate_limit_wait_seconds_total",
		Help: "Seconds spent waiting for quota resets",
	})

	RateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "forkcrawl_rate_limit_remaining",
		Help: "Requests left in the current window, per credential",
	}, []string{"credential"})

	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forkcrawl_pages_fetched_total",
		Help: "Fork listing pages fetched successfully",
	})

	RecordsSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forkcrawl_records_seen_total",
		Help: "Fork records received",
	})

	RecordsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forkcrawl_records_skipped_total",
		Help: "Fork records dropped for a missing or malformed timestamp",
	})

	CheckpointSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forkcrawl_checkpoint_saves_total",
		Help: "Checkpoint writes by reason",
	}, []string{"reason"})

	ProjectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forkcrawl_projects_total",
		Help: "Projects by final state",
	}, []string{"state"})
)

// ObserveRequest records one GitHub response. status 0 means the request
// never got a response.
func ObserveRequest(status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	RequestsTotal.WithLabelValues(label).Inc()
	RequestDuration.Observe(d.Seconds())
}

// ObserveRateLimitWait records a wait for a quota reset
func ObserveRateLimitWait(d time.Duration) {
	RateLimitWaits.Inc()
	RateLimitWaitSeconds.Add(d.Seconds())
}

// Handler exposes the default gatherer
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
