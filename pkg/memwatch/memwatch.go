// Package memwatch detects when the Go heap approaches a memory budget.
package memwatch

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/Sumatoshi-tech/prescan/pkg/units"
)

// SafetyFactor is the percentage of the budget the heap may use before the
// watcher trips.
const SafetyFactor = 80

// DefaultSampleEvery is how many Check calls pass between heap samples.
// Reading runtime.MemStats stops the world, so it is not done per item.
const DefaultSampleEvery = 4096

// Snapshot captures runtime memory stats at a point in time.
type Snapshot struct {
	HeapInuse int64
	HeapAlloc int64
	Sys       int64
	NumGC     uint32
	TakenAtNS int64
}

// Take reads runtime.MemStats.
func Take() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Snapshot{
		HeapInuse: int64(m.HeapInuse),
		HeapAlloc: int64(m.HeapAlloc),
		Sys:       int64(m.Sys),
		NumGC:     m.NumGC,
		TakenAtNS: time.Now().UnixNano(),
	}
}

// Watcher trips once heap usage crosses SafetyFactor percent of the budget.
// Once tripped it stays tripped. It is not safe for concurrent use.
type Watcher struct {
	budget  int64
	limit   int64
	every   int
	calls   int
	tripped bool
	sample  func() Snapshot
	sysMem  func() int64
	logger  *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSampler replaces the heap sampler.
func WithSampler(fn func() Snapshot) Option {
	return func(w *Watcher) { w.sample = fn }
}

// WithSampleEvery sets how many Check calls pass between samples.
func WithSampleEvery(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.every = n
		}
	}
}

// WithSystemMemory replaces the total system memory probe used when no budget
// is configured.
func WithSystemMemory(fn func() int64) Option {
	return func(w *Watcher) { w.sysMem = fn }
}

// WithLogger sets the logger used when the watcher trips.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher for budget bytes. A budget of zero falls back to the
// runtime soft memory limit (GOMEMLIMIT), then to DefaultBudgetRatio percent of
// system memory. When none of them is known the watcher never trips.
func New(budget int64, opts ...Option) *Watcher {
	w := &Watcher{
		every:  DefaultSampleEvery,
		sample: Take,
		sysMem: SystemMemory,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if budget <= 0 {
		if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
			budget = limit
		} else {
			budget = budgetFromTotal(w.sysMem())
		}
	}

	w.budget = budget

	if budget > 0 {
		w.limit = budget / 100 * SafetyFactor
	}

	return w
}

// Budget returns the effective budget in bytes, 0 when unlimited.
func (w *Watcher) Budget() int64 {
	return w.budget
}

// Tripped reports whether the heap has crossed the limit.
func (w *Watcher) Tripped() bool {
	return w.tripped
}

// Check samples the heap every few calls and reports whether the watcher is
// tripped. It returns true from the call that trips it onward.
func (w *Watcher) Check(ctx context.Context) bool {
	if w.tripped || w.limit == 0 {
		return w.tripped
	}

	w.calls++
	if w.calls < w.every {
		return false
	}

	w.calls = 0

	snap := w.sample()
	if snap.HeapInuse < w.limit {
		return false
	}

	w.tripped = true

	w.logger.WarnContext(ctx, "memwatch: heap near budget",
		"heap_inuse", units.Bytes(snap.HeapInuse),
		"budget", units.Bytes(w.budget),
		"safety_factor_pct", SafetyFactor,
	)

	return true
}
