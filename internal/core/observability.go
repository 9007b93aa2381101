package core

import (
	"context"
	"time"
)

// Logger is the structured logging surface used by the catalog. Args are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsRecorder observes the outcome and latency of catalog operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around catalog operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

type observability struct {
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

func defaultObservability() observability {
	return observability{
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		clock:   ClockFunc(time.Now),
	}
}

// Option customises a Catalog or a standalone Collection.
type Option func(*observability)

// WithLogger installs a structured logger. Nil keeps the no-op logger.
func WithLogger(logger Logger) Option {
	return func(o *observability) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder installs a metrics recorder. Nil keeps the no-op one.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *observability) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer. Nil keeps the no-op tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *observability) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *observability) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// run wraps fn with a span, a metrics observation and error logging.
func (o observability) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, operation)
	started := o.clock.Now()
	err := fn(ctx)
	elapsed := o.clock.Now().Sub(started)
	span.End(err)
	o.metrics.Observe(ctx, operation, err == nil, elapsed)
	if err != nil {
		o.logger.Error("catalog operation failed", "operation", operation, "error", err, "duration", elapsed)
	} else {
		o.logger.Debug("catalog operation completed", "operation", operation, "duration", elapsed)
	}
	return err
}
