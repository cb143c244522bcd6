// Package scanner runs a resumable scan: one dispatcher walks the source in
// order and keeps the stateful bookkeeping, a worker pool evaluates the rules,
// and checkpoints are taken at a fixed item cadence.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/prescan/pkg/memwatch"
	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/rules"
)

// ErrOutputDir is returned when the issue log directory cannot be created.
var ErrOutputDir = errors.New("output directory unusable")

// Metrics receives scan measurements. observability.ScanMetrics implements it.
type Metrics interface {
	RecordItem(ctx context.Context, item *model.Item)
	RecordIssues(ctx context.Context, issues []model.Issue)
	RecordEnumerationError(ctx context.Context)
	RecordCheckpoint(ctx context.Context, d time.Duration, err error)
	RecordScan(ctx context.Context, status model.ScanStatus, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordItem(context.Context, *model.Item)                     {}
func (nopMetrics) RecordIssues(context.Context, []model.Issue)                 {}
func (nopMetrics) RecordEnumerationError(context.Context)                      {}
func (nopMetrics) RecordCheckpoint(context.Context, time.Duration, error)      {}
func (nopMetrics) RecordScan(context.Context, model.ScanStatus, time.Duration) {}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scanner) { s.tracer = t }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithMemoryOptions passes options to the memory watcher of each scan.
func WithMemoryOptions(opts ...memwatch.Option) Option {
	return func(s *Scanner) { s.memOpts = append(s.memOpts, opts...) }
}

// Scanner runs scans with one configuration.
type Scanner struct {
	cfg     Config
	rules   *rules.Context
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics Metrics
	memOpts []memwatch.Option

	// afterEvent, when set, runs after each item or directory event is handled.
	afterEvent func(items int64)
	// prefetch overrides source.DefaultPrefetch when positive.
	prefetch int
}

// New validates cfg and returns a scanner.
func New(cfg Config, opts ...Option) (*Scanner, error) {
	if cfg.Root == "" {
		return nil, ErrNoRoot
	}

	cfg.normalize()

	rc, err := cfg.ruleContext()
	if err != nil {
		return nil, err
	}

	s := &Scanner{
		cfg:     cfg,
		rules:   rc,
		logger:  slog.Default(),
		tracer:  otel.Tracer("prescan/scanner"),
		metrics: nopMetrics{},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.memOpts = append([]memwatch.Option{memwatch.WithLogger(s.logger)}, s.memOpts...)

	return s, nil
}

// Config returns the normalized configuration.
func (s *Scanner) Config() Config {
	return s.cfg
}

// Scan walks the root and returns the result. A cancelled ctx stops the scan
// after in-flight items finish; the partial result has status cancelled and
// the error is nil. Any returned error is fatal and the result is nil.
func (s *Scanner) Scan(ctx context.Context) (*model.ScanResult, error) {
	ctx, span := s.tracer.Start(ctx, "prescan.scan")
	defer span.End()

	root, err := filepath.Abs(s.cfg.Root)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("resolve root: %w", err))
	}

	span.SetAttributes(attribute.String("prescan.root", root))

	r, err := s.open(ctx, root)
	if err != nil {
		return nil, s.fail(span, err)
	}

	res, err := r.run(ctx)
	if err != nil {
		return nil, s.fail(span, err)
	}

	span.SetAttributes(
		attribute.String("prescan.status", string(res.Status)),
		attribute.Int64("prescan.items", res.TotalItems),
		attribute.Int64("prescan.issues", res.Summary.Total),
		attribute.Bool("prescan.resumed", res.Resumed),
	)

	s.metrics.RecordScan(ctx, res.Status, res.Duration)

	return res, nil
}

func (s *Scanner) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}
