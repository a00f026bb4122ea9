package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"tendertriage/internal/blob"
	"tendertriage/internal/config"
	"tendertriage/internal/core"
	"tendertriage/internal/infra/tabular"
	"tendertriage/internal/ingest"
	"tendertriage/internal/triage"
)

// app is a loaded service ready to classify or serve.
type app struct {
	svc      *core.Service
	registry *prometheus.Registry
	blobs    blob.Store
	summary  ingest.Summary
	closers  []func() error
}

func (a *app) Close() {
	for _, fn := range a.closers {
		_ = fn()
	}
}

func blobConfig(src config.BlobSource) blob.Config {
	return blob.Config{
		Driver: blob.Driver(src.Driver),
		FSRoot: src.FSRoot,
		S3: blob.S3Config{
			Bucket:    src.S3.Bucket,
			Region:    src.S3.Region,
			Endpoint:  src.S3.Endpoint,
			PathStyle: src.S3.PathStyle,
		},
	}
}

// bootstrap opens the configured source, ingests it into a fresh record
// store, and wires the cascade, metrics and service around it.
func bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	blobs, err := blob.Open(ctx, blobConfig(cfg.Source.Blob))
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.blobs = blobs

	var src ingest.Source
	switch cfg.Source.Kind {
	case config.SourceSQL:
		db, err := tabular.Open(ctx, cfg.Source.SQL.Driver, cfg.Source.SQL.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		src = ingest.SQLSource{DB: db, Query: cfg.Source.SQL.Query, Name: cfg.Source.SQL.Driver}
	default:
		src = ingest.BlobSource{Store: blobs, Key: cfg.Source.Blob.Key}
	}

	store := core.NewRecordStore()
	summary, err := ingest.Load(ctx, src, store, ingest.Options{Limit: cfg.Source.Limit, Logger: logger.Named("ingest")})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.summary = summary

	metrics, err := core.NewPrometheusMetrics(a.registry)
	if err != nil {
		a.Close()
		return nil, err
	}
	forest := triage.NewIsolationForest(triage.ForestConfig{
		Trees:         cfg.Triage.Trees,
		MaxSamples:    cfg.Triage.MaxSamples,
		Contamination: cfg.Triage.Contamination,
		Seed:          cfg.Triage.Seed,
		Workers:       cfg.Triage.Workers,
	})
	cascade := triage.New(forest, triage.WithLogger(logger.Named("cascade")))
	a.svc = core.NewService(store,
		core.WithLogger(logger.Named("service")),
		core.WithMetrics(metrics),
		core.WithCascade(cascade),
		core.WithPreviewSize(cfg.Triage.PreviewSize),
	)
	return a, nil
}
