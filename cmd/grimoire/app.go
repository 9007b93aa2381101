package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"grimoire/internal/blob"
	"grimoire/internal/core"
	"grimoire/internal/seed"
	"grimoire/pkg/domain"
)

// zapLogger adapts a sugared zap logger to core.Logger.
type zapLogger struct{ s *zap.SugaredLogger }

func newZapLogger(l *zap.Logger) zapLogger { return zapLogger{s: l.Sugar()} }

func (z zapLogger) Debug(msg string, args ...any) { z.s.Debugw(msg, args...) }
func (z zapLogger) Info(msg string, args ...any)  { z.s.Infow(msg, args...) }
func (z zapLogger) Warn(msg string, args ...any)  { z.s.Warnw(msg, args...) }
func (z zapLogger) Error(msg string, args ...any) { z.s.Errorw(msg, args...) }

// app owns the registry and the resources that must be released on exit.
type app struct {
	registry *core.Registry
	metrics  *prometheus.Registry
	closers  []io.Closer
}

// newApp opens storage, builds the catalog and registers every service.
func newApp(ctx context.Context) (*app, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &app{registry: core.NewRegistry(), metrics: prometheus.NewRegistry()}
	log := newZapLogger(logger)

	recorder, err := core.NewPrometheusMetricsRecorder(a.metrics)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	opts := []core.Option{core.WithLogger(log), core.WithMetricsRecorder(recorder)}
	if traceFile != "" {
		// #nosec G304: path is operator supplied.
		f, err := os.OpenFile(traceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f)
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}

	snapshots, err := core.OpenSnapshotStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	catalog := core.NewCatalog(snapshots, opts...)
	a.closers = append([]io.Closer{catalog}, a.closers...)

	blobs, err := blob.Open(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	for name, svc := range map[string]any{
		core.ServiceCatalog: catalog,
		core.ServiceBlob:    blobs,
		core.ServiceLogger:  core.Logger(log),
	} {
		if err := a.registry.Register(name, svc); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) catalog() *core.Catalog {
	return core.MustResolve[*core.Catalog](a.registry, core.ServiceCatalog)
}

func (a *app) blobs() blob.Store {
	return core.MustResolve[blob.Store](a.registry, core.ServiceBlob)
}

func (a *app) log() core.Logger {
	return core.MustResolve[core.Logger](a.registry, core.ServiceLogger)
}

// bootstrap loads persisted state or installs the seed document.
func (a *app) bootstrap(ctx context.Context) error {
	doc, err := loadSeed(ctx, a.blobs())
	if err != nil {
		return err
	}
	seeded, err := a.catalog().Bootstrap(ctx, doc)
	if err != nil {
		return fmt.Errorf("bootstrap catalog: %w", err)
	}
	a.log().Info("catalog ready", "seeded", seeded)
	return nil
}

// loadSeed resolves --seed: a blob key prefixed with "blob:", a file path,
// or the built-in lists when empty.
func loadSeed(ctx context.Context, store blob.Store) (domain.Snapshot, error) {
	if seedPath == "" {
		return seed.Default(), nil
	}
	if key, ok := strings.CutPrefix(seedPath, "blob:"); ok {
		return seed.ReadBlob(ctx, store, key)
	}
	return seed.ReadFile(seedPath)
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
