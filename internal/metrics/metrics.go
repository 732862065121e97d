// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the medallion pipeline.
//
// A global backend defaults to a no-op implementation, so instrumentation is
// always safe to call. Concrete systems live in subpackages (prompush for a
// Prometheus Pushgateway, datadog for DogStatsD) and are installed once at
// startup with SetBackend.
//
// Instrumented points: every pipeline stage (bronze/silver load, silver
// transform, gold materialize), row counts per kind, and the outcome of each
// Gold statement.
package metrics

import "time"

// Metric names shared with the backends.
const (
	StageTotal          = "medallion_stage_total"
	StageDuration       = "medallion_stage_duration_seconds"
	RowsTotal           = "medallion_rows_total"
	GoldStatementsTotal = "medallion_gold_statements_total"
)

// Step labels recorded by RecordStep.
const (
	StepReadBronze      = "read_bronze"
	StepLoadBronze      = "load_bronze"
	StepTransformSilver = "transform_silver"
	StepLoadSilver      = "load_silver"
	StepMaterializeGold = "materialize_gold"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
// It must be called before the pipeline starts.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep counts one execution of a pipeline stage and its latency. step
// is one of the Step constants.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	backend.IncCounter(StageTotal, 1, lbls)
	backend.ObserveHistogram(StageDuration, d.Seconds(), lbls)
}

// RecordRow increments a row-level counter for the given job and kind, e.g.
// "read", "loaded_bronze", "loaded_silver", "rejected", "substituted",
// "duplicate". Non-positive deltas are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordGoldStatement counts the outcome of one Gold aggregation.
func RecordGoldStatement(job, statement string, err error) {
	backend.IncCounter(GoldStatementsTotal, 1, Labels{
		"job":       job,
		"statement": statement,
		"status":    status(err),
	})
}
