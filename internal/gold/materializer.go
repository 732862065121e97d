package gold

import (
	"context"
	"fmt"
	"time"

	"medallion/internal/metrics"
	"medallion/internal/table"
	"medallion/internal/warehouse"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers runs every aggregation at once.
const DefaultWorkers = 5

// AggregationFailed reports one Gold statement that did not complete.
type AggregationFailed struct {
	StatementID string
	Table       table.Name
	Cause       error
}

func (e *AggregationFailed) Error() string {
	return fmt.Sprintf("aggregation %s (%s) failed: %v", e.StatementID, e.Table, e.Cause)
}

func (e *AggregationFailed) Unwrap() error { return e.Cause }

// Result lists the Gold tables that were replaced and the statements that
// failed, both in statement order.
type Result struct {
	Succeeded []table.Name
	Failures  []*AggregationFailed
}

// OK reports whether every aggregation succeeded.
func (r Result) OK() bool { return len(r.Failures) == 0 }

// Options configures a Materializer.
type Options struct {
	// Workers bounds concurrent statements; <= 0 uses DefaultWorkers.
	Workers int
	// Job labels metrics.
	Job string
}

// Materializer rebuilds the Gold tables. The warehouse is shared by all
// workers and must tolerate concurrent ExecStatement calls.
type Materializer struct {
	wh      warehouse.Warehouse
	log     *zap.Logger
	job     string
	workers int
	aggs    []Aggregation
}

// New returns a Materializer for the standard aggregation set.
func New(wh warehouse.Warehouse, opt Options, log *zap.Logger) *Materializer {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.Workers <= 0 {
		opt.Workers = DefaultWorkers
	}
	return &Materializer{
		wh:      wh,
		log:     log.Named("gold"),
		job:     opt.Job,
		workers: opt.Workers,
		aggs:    Aggregations(),
	}
}

// Materialize replaces every Gold table from silver, which must already be
// committed in the warehouse. Statements are independent: a failure never
// cancels the others, and all of them have finished when it returns.
func (m *Materializer) Materialize(ctx context.Context, silver table.Name) Result {
	start := time.Now()
	d := m.wh.Dialect()
	errs := make([]error, len(m.aggs))

	if err := m.ensureLayer(ctx, table.GoldName(silver.Project, "")); err != nil {
		for i := range errs {
			errs[i] = err
		}
	} else {
		var g errgroup.Group
		g.SetLimit(m.workers)
		for i, agg := range m.aggs {
			g.Go(func() error {
				errs[i] = m.run(ctx, agg, d, silver)
				return nil
			})
		}
		_ = g.Wait()
	}

	var res Result
	for i, agg := range m.aggs {
		target := table.GoldName(silver.Project, agg.Name)
		metrics.RecordGoldStatement(m.job, agg.Name, errs[i])
		if errs[i] != nil {
			f := &AggregationFailed{StatementID: agg.Name, Table: target, Cause: errs[i]}
			res.Failures = append(res.Failures, f)
			m.log.Error("aggregation failed", zap.Stringer("table", target), zap.Error(errs[i]))
			continue
		}
		res.Succeeded = append(res.Succeeded, target)
		m.log.Info("aggregation materialized", zap.Stringer("table", target))
	}

	var err error
	if !res.OK() {
		err = fmt.Errorf("%d of %d aggregations failed", len(res.Failures), len(m.aggs))
	}
	metrics.RecordStep(m.job, metrics.StepMaterializeGold, err, time.Since(start))
	return res
}

func (m *Materializer) ensureLayer(ctx context.Context, n table.Name) error {
	stmt := m.wh.Dialect().CreateSchema(n)
	if stmt == "" {
		return nil
	}
	if err := m.wh.ExecStatement(ctx, stmt); err != nil {
		return fmt.Errorf("create gold layer: %w", err)
	}
	return nil
}

// run executes one statement; a panicking backend is reported as a failure.
func (m *Materializer) run(ctx context.Context, agg Aggregation, d warehouse.Dialect, silver table.Name) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	stmt := Render(agg, d, silver, table.GoldName(silver.Project, agg.Name))
	m.log.Debug("running aggregation", zap.String("statement", agg.Name), zap.String("sql", stmt))
	return m.wh.ExecStatement(ctx, stmt)
}
