package metrics

import "time"

// Recorder provides methods for recording engine metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordComputation records the outcome and duration of one indicator
// computation.
func (r *Recorder) RecordComputation(indicator string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ComputationsTotal.WithLabelValues(indicator, status).Inc()
	ComputationDuration.WithLabelValues(indicator).Observe(d.Seconds())
}

// RecordSeriesLength records the length of the active series.
func (r *Recorder) RecordSeriesLength(n int) {
	SeriesBars.Set(float64(n))
}

// RecordSuperseded records a computation abandoned mid-flight.
func (r *Recorder) RecordSuperseded() {
	SupersededTotal.Inc()
}

// RecordBarsStored records bars persisted for a symbol.
func (r *Recorder) RecordBarsStored(symbol string, n int) {
	StoreBarsWritten.WithLabelValues(symbol).Add(float64(n))
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
