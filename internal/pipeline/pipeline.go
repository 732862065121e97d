// Package pipeline runs one medallion refresh: Bronze load, Silver transform
// and load, then Gold materialization.
//
// Bronze failures are logged and the run continues, because Silver is
// recomputed from the source rather than from the Bronze table. Any Silver
// failure ends the run in Failed without touching Gold. Gold failures are
// reported per table and the run still ends in Done.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medallion/internal/gold"
	"medallion/internal/metrics"
	"medallion/internal/silver"
	"medallion/internal/table"
	"medallion/internal/warehouse"

	"go.uber.org/zap"
)

// Source yields the raw Bronze table. Each call re-reads the source.
type Source interface {
	Read(ctx context.Context) (*table.Table, error)
}

// Materializer rebuilds Gold from a committed Silver table.
type Materializer interface {
	Materialize(ctx context.Context, silver table.Name) gold.Result
}

// Config names the run.
type Config struct {
	Project string
	Entity  string
	// Job labels metrics.
	Job string
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Source      Source
	Transformer *silver.Transformer
	Loader      *warehouse.Loader
	Gold        Materializer
}

// Report summarises a run. Silver and Gold are zero when their stage did not
// run.
type Report struct {
	State  State
	Bronze warehouse.LoadResult
	Silver warehouse.LoadResult
	Gold   gold.Result

	// Rejected are the rows the Silver transform dropped.
	Rejected    []*silver.CoercionError
	Substituted int
	Duplicates  int

	Duration time.Duration
}

// Pipeline is safe to Run repeatedly, but not concurrently.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  *zap.Logger

	// OnTransition, if set, is called after every state change.
	OnTransition func(from, to State)
}

// New returns a Pipeline. A nil logger disables logging.
func New(cfg Config, deps Deps, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps, log: log.Named("pipeline")}
}

// run carries the state of one Run.
type run struct {
	p     *Pipeline
	state State
	rep   *Report
}

func (r *run) to(next State) {
	if !canTransition(r.state, next) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", r.state, next))
	}
	prev := r.state
	r.state = next
	r.rep.State = next
	r.p.log.Debug("state changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
		zap.Bool("terminal", next.Terminal()))
	if r.p.OnTransition != nil {
		r.p.OnTransition(prev, next)
	}
}

// Run executes the stages in order. It returns an error only when the run
// ends in Failed; the report is always non-nil.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	r := &run{p: p, state: BronzeLoading, rep: &Report{State: BronzeLoading}}
	defer func() { r.rep.Duration = time.Since(start) }()

	p.log.Info("pipeline started",
		zap.String("project", p.cfg.Project),
		zap.String("entity", p.cfg.Entity))

	r.rep.Bronze = p.bronze(ctx)
	r.to(SilverTransforming)

	silverTable, err := p.transform(ctx, r.rep)
	if err != nil {
		r.to(Failed)
		p.log.Error("pipeline failed", zap.Stringer("state", SilverTransforming), zap.Error(err))
		return r.rep, fmt.Errorf("silver transform: %w", err)
	}
	r.to(SilverLoading)

	silverName := table.SilverName(p.cfg.Project, p.cfg.Entity)
	r.rep.Silver = p.deps.Loader.Load(ctx, silverTable, silverName)
	if !r.rep.Silver.OK() {
		r.to(Failed)
		p.log.Error("pipeline failed; gold skipped", zap.Stringer("state", SilverLoading), zap.Error(r.rep.Silver.Err()))
		return r.rep, fmt.Errorf("silver load: %w", r.rep.Silver.Err())
	}
	r.to(GoldMaterializing)

	r.rep.Gold = p.deps.Gold.Materialize(ctx, silverName)
	r.to(Done)

	p.log.Info("pipeline finished",
		zap.Int64("bronze_rows", r.rep.Bronze.RowCount),
		zap.Bool("bronze_ok", r.rep.Bronze.OK()),
		zap.Int64("silver_rows", r.rep.Silver.RowCount),
		zap.Int("rejected", len(r.rep.Rejected)),
		zap.Int("gold_tables", len(r.rep.Gold.Succeeded)),
		zap.Int("gold_failures", len(r.rep.Gold.Failures)),
		zap.Duration("took", time.Since(start)))
	return r.rep, nil
}

// bronze reads the source and loads it unchanged. A read failure is
// reported as a failed load.
func (p *Pipeline) bronze(ctx context.Context) warehouse.LoadResult {
	name := table.BronzeName(p.cfg.Project, p.cfg.Entity)
	start := time.Now()
	raw, err := p.deps.Source.Read(ctx)
	metrics.RecordStep(p.cfg.Job, metrics.StepReadBronze, err, time.Since(start))
	if err != nil {
		p.log.Error("bronze read failed; continuing with silver", zap.Stringer("table", name), zap.Error(err))
		return warehouse.LoadResult{Table: name, Failure: &warehouse.LoadFailed{Table: name, Cause: err}}
	}
	metrics.RecordRow(p.cfg.Job, "read", int64(raw.Len()))

	res := p.deps.Loader.Load(ctx, raw, name)
	if !res.OK() {
		p.log.Error("bronze load failed; continuing with silver", zap.Stringer("table", name), zap.Error(res.Err()))
	}
	return res
}

// transform re-reads the source and builds the Silver table.
func (p *Pipeline) transform(ctx context.Context, rep *Report) (*table.Table, error) {
	start := time.Now()
	t, err := p.transformOnce(ctx, rep)
	metrics.RecordStep(p.cfg.Job, metrics.StepTransformSilver, err, time.Since(start))
	return t, err
}

func (p *Pipeline) transformOnce(ctx context.Context, rep *Report) (*table.Table, error) {
	raw, err := p.deps.Source.Read(ctx)
	if err != nil {
		return nil, err
	}
	res, err := p.deps.Transformer.Transform(raw)
	if err != nil {
		var ce *silver.CoercionError
		if errors.As(err, &ce) {
			p.log.Error("coercion aborted the transform",
				zap.String("column", ce.Column),
				zap.String("id", ce.RowID),
				zap.Int("row", ce.Row))
		}
		return nil, err
	}

	rep.Rejected = res.Rejected
	rep.Substituted = res.Substituted
	rep.Duplicates = res.Duplicates
	metrics.RecordRow(p.cfg.Job, "rejected", int64(len(res.Rejected)))
	metrics.RecordRow(p.cfg.Job, "substituted", int64(res.Substituted))
	metrics.RecordRow(p.cfg.Job, "duplicate", int64(res.Duplicates))

	if n := len(res.Rejected); n > 0 {
		p.log.Warn("rows rejected by silver transform",
			zap.Int("rejected", n),
			zap.NamedError("first", res.Rejected[0]))
		for _, ce := range res.Rejected {
			p.log.Debug("row rejected", zap.Error(ce))
		}
	}
	if res.Duplicates > 0 {
		p.log.Warn("duplicate ids dropped", zap.Int("duplicates", res.Duplicates))
	}
	if res.Substituted > 0 {
		p.log.Info("unparseable values set to NULL", zap.Int("substituted", res.Substituted))
	}
	return res.Table, nil
}
