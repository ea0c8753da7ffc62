// Package metrics exposes Prometheus collectors for the computation
// engine and an optional HTTP server for scraping them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ComputationsTotal counts pipeline computations by indicator and outcome.
	ComputationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartcore_computations_total",
		Help: "Total indicator computations by indicator and status.",
	}, []string{"indicator", "status"})

	// ComputationDuration observes per-indicator computation latency.
	ComputationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chartcore_computation_duration_seconds",
		Help:    "Indicator computation duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"indicator"})

	// SeriesBars reports the length of the currently loaded bar series.
	SeriesBars = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chartcore_series_bars",
		Help: "Number of bars in the active series.",
	})

	// SupersededTotal counts computations abandoned because a newer
	// series arrived while they were in flight.
	SupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chartcore_computations_superseded_total",
		Help: "Computations abandoned in favor of a newer series.",
	})

	// StoreBarsWritten counts bars persisted to the store.
	StoreBarsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartcore_store_bars_written_total",
		Help: "Bars written to the bar store by symbol.",
	}, []string{"symbol"})
)
