package pipeline

import (
	"errors"
	"time"

	"coin-tracker/internal/auth"
	"coin-tracker/internal/model"
	"coin-tracker/internal/retry"
	"coin-tracker/internal/sheets"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coin_tracker_runs_total",
			Help: "Total number of pipeline runs by result",
		}, []string{"result"})
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coin_tracker_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		})
	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coin_tracker_fetch_duration_seconds",
			Help:    "Duration of metrics API fetches including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		})
)

func observeRun(start time.Time, err error) {
	runDuration.Observe(time.Since(start).Seconds())
	runsTotal.WithLabelValues(Classify(err)).Inc()
}

// Classify names the failure class of err for metrics and API responses.
func Classify(err error) string {
	var (
		fatal    *retry.FatalError
		dataErr  *model.DataError
		authErr  *auth.AuthError
		writeErr *sheets.WriteError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &fatal):
		return "fetch_error"
	case errors.As(err, &dataErr):
		return "data_error"
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &writeErr):
		return "write_error"
	default:
		return "invalid"
	}
}
