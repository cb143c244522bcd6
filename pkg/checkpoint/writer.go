package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WriteHook observes every checkpoint write attempt.
type WriteHook func(ctx context.Context, d time.Duration, err error)

// WriterOptions configures a Writer.
type WriterOptions struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	OnWrite WriteHook
}

// Writer serializes checkpoint records in the background.
//
// Submit never blocks: if a record is still queued it is replaced by the
// newer one. Write failures are logged and the scan continues.
type Writer struct {
	m       *Manager
	logger  *slog.Logger
	tracer  trace.Tracer
	onWrite WriteHook

	queue chan *Record
	done  chan struct{}

	mu      sync.Mutex
	state   State
	written int
	failed  int
	closed  bool
}

// NewWriter starts the background writer goroutine.
func NewWriter(ctx context.Context, m *Manager, opts WriterOptions) *Writer {
	w := &Writer{
		m:       m,
		logger:  opts.Logger,
		tracer:  opts.Tracer,
		onWrite: opts.OnWrite,
		queue:   make(chan *Record, 1),
		done:    make(chan struct{}),
		state:   StateActive,
	}

	if w.logger == nil {
		w.logger = slog.Default()
	}

	if w.tracer == nil {
		w.tracer = otel.Tracer("prescan/checkpoint")
	}

	go w.run(context.WithoutCancel(ctx))

	return w
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.done)

	for rec := range w.queue {
		err := w.write(ctx, rec)
		if err != nil {
			w.logger.WarnContext(ctx, "checkpoint: write failed, continuing", "error", err)
		}
	}
}

// Submit queues rec, replacing any record not yet written. Only one goroutine
// may call Submit.
func (w *Writer) Submit(rec *Record) {
	select {
	case w.queue <- rec:
		return
	default:
	}

	select {
	case <-w.queue:
	default:
	}

	w.queue <- rec
}

// Close waits for queued records to be written and stops the goroutine.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()

		return
	}

	w.closed = true
	w.mu.Unlock()

	close(w.queue)
	<-w.done
}

// Abandon stops the writer and synchronously writes a final record, leaving
// the checkpoint in place for a later resume.
func (w *Writer) Abandon(ctx context.Context, rec *Record) error {
	w.Close()

	err := w.write(ctx, rec)

	w.mu.Lock()
	w.state = StateAbandoned
	w.mu.Unlock()

	return err
}

// Complete stops the writer and removes the checkpoint directory.
func (w *Writer) Complete() error {
	w.Close()

	err := w.m.Clear()

	w.mu.Lock()
	w.state = StateCompleted
	w.mu.Unlock()

	return err
}

// State returns the lifecycle state.
func (w *Writer) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

// Stats returns the number of successful and failed writes.
func (w *Writer) Stats() (written, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.written, w.failed
}

func (w *Writer) write(ctx context.Context, rec *Record) error {
	ctx, span := w.tracer.Start(ctx, "prescan.checkpoint.write",
		trace.WithAttributes(attribute.Int64("prescan.checkpoint.items", rec.Aggregate.Items)))
	defer span.End()

	start := time.Now()

	rec.Version = SchemaVersion
	rec.CreatedAt = start.UTC()

	err := w.m.Save(rec)

	if w.onWrite != nil {
		w.onWrite(ctx, time.Since(start), err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.failed++

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return fmt.Errorf("checkpoint write: %w", err)
	}

	w.written++
	if w.state == StateActive {
		w.state = StateCheckpointed
	}

	return nil
}
