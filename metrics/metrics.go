// Package metrics exposes Prometheus instrumentation for implication runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated during a run.
type Metrics struct {
	// SeriesProcessed counts series that completed processing.
	SeriesProcessed prometheus.Counter

	// SeriesFailed counts series whose processing failed.
	SeriesFailed prometheus.Counter

	// ImplicationsProposed counts derived implications per series.
	ImplicationsProposed *prometheus.CounterVec

	// BURsSubmitted counts bulk update requests created per series.
	BURsSubmitted *prometheus.CounterVec

	// RunDuration observes full run wall time in seconds.
	RunDuration prometheus.Histogram
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SeriesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autoimply",
			Name:      "series_processed_total",
			Help:      "Number of series processed to completion.",
		}),
		SeriesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autoimply",
			Name:      "series_failed_total",
			Help:      "Number of series whose processing failed.",
		}),
		ImplicationsProposed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoimply",
			Name:      "implications_proposed_total",
			Help:      "Number of implications derived, by series.",
		}, []string{"series"}),
		BURsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoimply",
			Name:      "burs_submitted_total",
			Help:      "Number of bulk update requests created, by series.",
		}, []string{"series"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autoimply",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// Nop returns metrics registered on a private throwaway registry, for
// callers that do not want instrumentation.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
