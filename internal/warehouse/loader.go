package warehouse

import (
	"context"
	"fmt"
	"time"

	"medallion/internal/metrics"
	"medallion/internal/table"

	"go.uber.org/zap"
)

// LoadFailed is the failure variant of a load. It is returned inside a
// LoadResult, never as a Go error from Load.
type LoadFailed struct {
	Table table.Name
	Cause error
}

func (e *LoadFailed) Error() string {
	return fmt.Sprintf("load %s failed: %v", e.Table, e.Cause)
}

func (e *LoadFailed) Unwrap() error { return e.Cause }

// LoadResult is Loaded (Failure == nil, RowCount set) or LoadFailed.
type LoadResult struct {
	Table    table.Name
	RowCount int64
	Failure  *LoadFailed
	Duration time.Duration
}

// OK reports whether the load succeeded.
func (r LoadResult) OK() bool { return r.Failure == nil }

// Err returns the failure as an error, or nil.
func (r LoadResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Loader writes whole tables to a warehouse with replace semantics.
type Loader struct {
	wh  Warehouse
	log *zap.Logger
	job string
}

// NewLoader returns a Loader over wh. job labels metrics.
func NewLoader(wh Warehouse, log *zap.Logger, job string) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{wh: wh, log: log.Named("loader"), job: job}
}

// Load replaces dest with t. It never panics or returns an error; failures
// (including a panicking backend) are reported in the result. Loads are not
// retried.
func (l *Loader) Load(ctx context.Context, t *table.Table, dest table.Name) (res LoadResult) {
	start := time.Now()
	res.Table = dest
	defer func() {
		if p := recover(); p != nil {
			res.RowCount = 0
			res.Failure = &LoadFailed{Table: dest, Cause: fmt.Errorf("panic: %v", p)}
		}
		res.Duration = time.Since(start)
		l.record(res)
	}()

	if t == nil {
		res.Failure = &LoadFailed{Table: dest, Cause: fmt.Errorf("no table to load")}
		return res
	}
	if err := t.Validate(); err != nil {
		res.Failure = &LoadFailed{Table: dest, Cause: err}
		return res
	}
	n, err := l.wh.ReplaceTable(ctx, dest, t)
	if err != nil {
		res.Failure = &LoadFailed{Table: dest, Cause: err}
		return res
	}
	res.RowCount = n
	return res
}

func (l *Loader) record(res LoadResult) {
	step := "load_" + layerLabel(res.Table.Layer)
	metrics.RecordStep(l.job, step, res.Err(), res.Duration)
	if res.OK() {
		metrics.RecordRow(l.job, "loaded_"+layerLabel(res.Table.Layer), res.RowCount)
		l.log.Info("table loaded",
			zap.Stringer("table", res.Table),
			zap.Int64("rows", res.RowCount),
			zap.Duration("took", res.Duration))
		return
	}
	l.log.Error("table load failed",
		zap.Stringer("table", res.Table),
		zap.Error(res.Failure.Cause),
		zap.Duration("took", res.Duration))
}

func layerLabel(l table.Layer) string {
	switch l {
	case table.Bronze:
		return "bronze"
	case table.Silver:
		return "silver"
	case table.Gold:
		return "gold"
	}
	return string(l)
}
