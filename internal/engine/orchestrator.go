package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/paperfig/internal/ir"
)

const instrumentationScope = "github.com/roach88/paperfig/internal/engine"

// DefaultDigestCacheSize bounds the artifact digest cache used by Diff.
const DefaultDigestCacheSize = 512

// Orchestrator sequences the collaborators into runs and serves the
// read-side operations (inspect, diff, export, audit, critique) over
// persisted runs.
//
// An Orchestrator runs one operation at a time per call; figures and gates
// are processed sequentially on the calling goroutine. Separate
// Orchestrators are independent and may run concurrently against the same
// run root, since run ids are unique by construction.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	clock   Clock
	ids     RunIDGenerator
	tracer  trace.Tracer
	metrics runMetrics
	digests *lru.Cache[digestKey, string]
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithClock sets the clock used for run ids and timestamps.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithRunIDGenerator sets the run id generator.
// Use NewFixedGenerator in tests for reproducible run directories.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(o *Orchestrator) {
		o.ids = g
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
// Default: the global provider (no-op unless telemetry is enabled).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		o.tracer = tp.Tracer(instrumentationScope)
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Orchestrator) {
		o.metrics = newRunMetrics(mp.Meter(instrumentationScope))
	}
}

// New creates an Orchestrator. The Config is copied; later changes to the
// caller's value do not affect the orchestrator.
func New(cfg Config, deps Deps, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	digests, err := lru.New[digestKey, string](DefaultDigestCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create digest cache: %w", err)
	}

	cfg.ArchCritiqueRules = append([]string(nil), cfg.ArchCritiqueRules...)
	o := &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		logger:  slog.Default(),
		clock:   SystemClock{},
		ids:     TimestampGenerator{},
		tracer:  otel.Tracer(instrumentationScope),
		metrics: newRunMetrics(otel.Meter(instrumentationScope)),
		digests: digests,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns a copy of the orchestrator's configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// withConfig returns a sibling orchestrator sharing collaborators, logger,
// clock, id generator and telemetry but using cfg.
func (o *Orchestrator) withConfig(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clone := *o
	clone.cfg = cfg
	return &clone, nil
}

// runDir resolves runID to its directory and fails with NotFound when absent.
func (o *Orchestrator) runDir(runID string) (string, error) {
	if runID == "" {
		return "", NewNotFoundError(runID, "run id must not be empty")
	}
	dir := RunDir(o.cfg.RunRoot, runID)
	if !dirExists(dir) {
		return "", NewNotFoundError(runID, fmt.Sprintf("run %s not found in %s", runID, o.cfg.RunRoot))
	}
	return dir, nil
}

// classify turns a collaborator error into a RunError, keeping existing
// RunErrors intact.
func classify(err error, message string) error {
	var re *RunError
	if errors.As(err, &re) {
		return err
	}
	if isNotExist(err) {
		return &RunError{Code: ErrCodeNotFound, Message: message, Err: err}
	}
	return NewConfigurationError(message, err)
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// runMetrics holds the engine's counters. Instruments from a no-op meter
// cost nothing when telemetry is disabled.
type runMetrics struct {
	iterations   metric.Int64Counter
	accepted     metric.Int64Counter
	fallbacks    metric.Int64Counter
	gateFailures metric.Int64Counter
}

func newRunMetrics(m metric.Meter) runMetrics {
	var rm runMetrics
	rm.iterations, _ = m.Int64Counter("paperfig.figure.iterations",
		metric.WithDescription("Generate/critique rounds executed"))
	rm.accepted, _ = m.Int64Counter("paperfig.figure.accepted",
		metric.WithDescription("Figures accepted by the critic"))
	rm.fallbacks, _ = m.Int64Counter("paperfig.figure.fallbacks",
		metric.WithDescription("Figures finalized from the last attempted iteration"))
	rm.gateFailures, _ = m.Int64Counter("paperfig.gate.failures",
		metric.WithDescription("Finalization gate failures"))
	return rm
}

func (rm runMetrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// digestKey identifies one version of a file on disk.
type digestKey struct {
	path    string
	size    int64
	modTime int64
}

// fileDigest returns the content hash of path, or "" when it does not exist.
// Digests are memoised by path, size and modification time.
func (o *Orchestrator) fileDigest(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if isNotExist(err) {
			return "", nil
		}
		return "", err
	}
	key := digestKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if d, ok := o.digests.Get(key); ok {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	d := ir.ContentHash(data)
	o.digests.Add(key, d)
	return d, nil
}
