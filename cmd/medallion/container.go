package main

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"medallion/internal/config"
	"medallion/internal/datasource"
	"medallion/internal/datasource/file"
	"medallion/internal/datasource/httpds"
	"medallion/internal/datasource/objectstore"
	"medallion/internal/gold"
	"medallion/internal/metrics"
	"medallion/internal/metrics/datadog"
	"medallion/internal/metrics/prompush"
	"medallion/internal/pipeline"
	"medallion/internal/reader"
	"medallion/internal/silver"
	"medallion/internal/warehouse"

	"go.uber.org/zap"
)

// Test seams.
var (
	newWarehouseFn = warehouse.New
	newSourceFn    = newSource
)

// newSource builds the configured raw-data source.
func newSource(cfg config.Source) (datasource.Source, error) {
	switch cfg.Kind {
	case "file":
		return file.NewLocal(cfg.Path), nil
	case "http":
		return httpds.New(cfg.URL, httpds.Config{
			Timeout:            time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
			InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
			Header:             http.Header{"User-Agent": []string{"medallion"}},
		}), nil
	case "minio":
		m := cfg.Minio
		return objectstore.New(objectstore.Config{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
			Region:    m.Region,
			Bucket:    m.Bucket,
			Object:    m.Object,
		})
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
}

// installMetrics selects the metrics backend and returns its flush func.
// A backend that cannot be created leaves metrics disabled.
func installMetrics(cfg *config.Config, log *zap.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "prometheus":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  cfg.Metrics.Namespace + ".",
			GlobalTags: []string{"project:" + cfg.ProjectID},
		})
	default:
		log.Debug("metrics disabled", zap.String("backend", cfg.Metrics.Backend))
		return func() {}
	}
	if err != nil {
		log.Warn("metrics backend unavailable; metrics disabled", zap.String("backend", cfg.Metrics.Backend), zap.Error(err))
		return func() {}
	}
	metrics.SetBackend(b)
	log.Info("metrics enabled", zap.String("backend", cfg.Metrics.Backend))
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}
}

// buildPipeline wires the stages from cfg. The returned func closes the
// warehouse.
func buildPipeline(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pipeline.Pipeline, func(), error) {
	src, err := newSourceFn(cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("source: %w", err)
	}

	policies := make(map[string]silver.Policy, len(cfg.Silver.CoercionPolicy))
	for col, v := range cfg.Silver.CoercionPolicy {
		p, err := silver.ParsePolicy(v)
		if err != nil {
			return nil, nil, fmt.Errorf("silver.coercion_policy.%s: %w", col, err)
		}
		policies[col] = p
	}
	tr, err := silver.NewTransformer(silver.Options{Policies: policies, DateLayouts: cfg.Silver.DateLayouts})
	if err != nil {
		return nil, nil, err
	}

	wh, err := newWarehouseFn(ctx, warehouse.Config{
		Kind:            cfg.Warehouse.Kind,
		DSN:             cfg.Warehouse.DSN,
		ProjectID:       cfg.ProjectID,
		CredentialsPath: cfg.CredentialsPath,
		Location:        cfg.Warehouse.Location,
	})
	if err != nil {
		return nil, nil, err
	}

	ropt := reader.Options{
		LazyQuotes: cfg.Source.LazyQuotes,
		OnRowError: func(line int, err error) {
			log.Debug("row skipped", zap.Int("line", line), zap.Error(err))
		},
	}
	if r, _ := utf8.DecodeRuneInString(cfg.Source.Delimiter); r != utf8.RuneError {
		ropt.Comma = r
	}

	p := pipeline.New(
		pipeline.Config{Project: cfg.ProjectID, Entity: cfg.Entity, Job: cfg.Job},
		pipeline.Deps{
			Source:      reader.New(src, ropt, log),
			Transformer: tr,
			Loader:      warehouse.NewLoader(wh, log, cfg.Job),
			Gold:        gold.New(wh, gold.Options{Workers: cfg.Gold.Workers, Job: cfg.Job}, log),
		},
		log,
	)
	closeFn := func() {
		if err := wh.Close(); err != nil {
			log.Warn("warehouse close failed", zap.Error(err))
		}
	}
	return p, closeFn, nil
}
