package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/prescan/pkg/aggregate"
	"github.com/Sumatoshi-tech/prescan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/prescan/pkg/issuestore"
	"github.com/Sumatoshi-tech/prescan/pkg/memwatch"
	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/rules"
	"github.com/Sumatoshi-tech/prescan/pkg/source"
)

// jobsPerWorker sizes the job queue.
const jobsPerWorker = 64

type job struct {
	item     model.Item
	conflict *model.Issue
}

// run is the state of one scan. Fields without a lock are owned by the
// dispatcher goroutine.
type run struct {
	s      *Scanner
	cfg    *Config
	logger *slog.Logger

	root    string
	scanID  string
	start   time.Time
	resumed bool
	mode    source.Mode

	mgr    *checkpoint.Manager
	writer *checkpoint.Writer

	src   *source.Prefetcher
	store *issuestore.Store
	agg   *aggregate.Aggregator

	idx       *rules.ConflictIndex
	conflicts bool
	processed *checkpoint.ProcessedSet
	pipeline  *rules.Pipeline
	watch     *memwatch.Watcher

	// mark is the cursor after the last item or directory event handled.
	mark  source.Cursor
	items int64
	since int

	pending      []model.EnumerationError
	current      string
	lastProgress time.Time

	jobs     chan job
	workers  sync.WaitGroup
	inflight sync.WaitGroup

	errMu  sync.Mutex
	jobErr error
}

// run drives the scan to completion, cancellation or a fatal error.
func (r *run) run(ctx context.Context) (*model.ScanResult, error) {
	r.jobs = make(chan job, r.cfg.Workers*jobsPerWorker)

	for range r.cfg.Workers {
		r.workers.Add(1)

		go r.work(ctx)
	}

	status, err := r.dispatch(ctx)

	close(r.jobs)
	r.workers.Wait()

	if err == nil {
		err = r.workerErr()
	}

	if err != nil {
		r.abort()

		return nil, err
	}

	if status == model.StatusCancelled {
		return r.cancelled(ctx), nil
	}

	return r.completed(ctx), nil
}

// dispatch pulls events in source order until the source ends, ctx is
// cancelled, the item limit is reached or a fatal error occurs.
func (r *run) dispatch(ctx context.Context) (model.ScanStatus, error) {
	r.lastProgress = time.Now()

	for {
		err := r.workerErr()
		if err != nil {
			return "", err
		}

		ev, err := r.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return model.StatusCancelled, nil
			}

			if errors.Is(err, io.EOF) {
				r.flushErrors(ctx)
				r.report(true)

				return model.StatusCompleted, nil
			}

			return "", fmt.Errorf("enumerate: %w", err)
		}

		switch ev.Kind {
		case source.EventError:
			// Held back until the next checkpointable event so a resume
			// never counts an error twice.
			r.pending = append(r.pending, ev.Err)

			continue
		case source.EventItem:
			r.flushErrors(ctx)
			r.dispatchItem(ctx, &ev.Item)
		case source.EventDirDone:
			r.flushErrors(ctx)
			r.agg.CompleteDir(ev.Path)
			r.processed.Complete(ev.Path)
		}

		r.mark = r.src.Cursor()

		if r.since >= r.cfg.Checkpoint.Interval {
			r.since = 0
			r.checkpoint(ctx)
		}

		if r.s.afterEvent != nil {
			r.s.afterEvent(r.items)
		}

		r.report(false)

		if r.cfg.MaxItems > 0 && r.items >= r.cfg.MaxItems {
			r.logger.InfoContext(ctx, "scan: item limit reached", "max_items", r.cfg.MaxItems)
			r.agg.CompleteAll()
			r.report(true)

			return model.StatusCompleted, nil
		}

		if ctx.Err() != nil {
			return model.StatusCancelled, nil
		}
	}
}

func (r *run) dispatchItem(ctx context.Context, item *model.Item) {
	r.agg.AddItem(item)
	r.s.metrics.RecordItem(ctx, item)
	r.items++
	r.since++
	r.current = item.Path

	var conflict *model.Issue

	if r.conflicts && !r.idx.Disabled() {
		if r.watch.Check(ctx) {
			r.idx.Disable()
			r.logger.WarnContext(ctx, "scan: memory pressure, name conflict check disabled", "items", r.items)
		} else if issue, ok := r.idx.Observe(item); ok {
			conflict = &issue
		}
	}

	r.inflight.Add(1)
	r.jobs <- job{item: *item, conflict: conflict}
}

func (r *run) flushErrors(ctx context.Context) {
	for _, e := range r.pending {
		r.agg.AddEnumerationError(e)
		r.s.metrics.RecordEnumerationError(ctx)
		r.logger.WarnContext(ctx, "scan: entry unreadable", "path", e.Path, "error", e.Message)
	}

	r.pending = r.pending[:0]
}

// work evaluates items. Issues are counted before they are stored.
func (r *run) work(ctx context.Context) {
	defer r.workers.Done()

	for j := range r.jobs {
		issues := r.pipeline.EvaluateWith(&j.item, j.conflict)
		if len(issues) > 0 {
			r.agg.AddIssues(issues)
			r.s.metrics.RecordIssues(ctx, issues)

			err := r.store.Emit(issues)
			if err != nil {
				r.setWorkerErr(err)
			}
		}

		r.inflight.Done()
	}
}

func (r *run) setWorkerErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()

	if r.jobErr == nil {
		r.jobErr = err
	}
}

func (r *run) workerErr() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()

	return r.jobErr
}

// checkpoint drains in-flight items and hands a snapshot to the writer.
func (r *run) checkpoint(ctx context.Context) {
	if r.writer == nil {
		return
	}

	r.inflight.Wait()

	rec, err := r.record()
	if err != nil {
		r.logger.WarnContext(ctx, "checkpoint: snapshot skipped", "error", err)

		return
	}

	r.writer.Submit(rec)
}

// record syncs both logs and snapshots the state at r.mark. All items up to
// r.mark must have been evaluated.
func (r *run) record() (*checkpoint.Record, error) {
	err := r.src.Sync()
	if err != nil {
		return nil, fmt.Errorf("sync enumeration log: %w", err)
	}

	err = r.store.Sync()
	if err != nil {
		return nil, fmt.Errorf("sync issue log: %w", err)
	}

	pos := source.Position{Cursor: r.mark}

	if r.src.LogComplete() {
		id, statErr := source.StatLog(r.mgr.EnumerationLogPath())
		if statErr == nil {
			pos.LogComplete = true
			pos.LogIdentity = id
		}
	}

	return &checkpoint.Record{
		ScanID:                r.scanID,
		SourceRoot:            r.root,
		Destination:           r.cfg.Destination,
		StartTime:             r.start,
		Aggregate:             r.agg.Snapshot(r.cfg.Checkpoint.FolderMapCap),
		Processed:             r.processed.List(),
		Enumeration:           pos,
		IssueLog:              r.store.Position(),
		ConflictCheckDisabled: r.idx.Disabled(),
	}, nil
}

// report calls the progress callback when due.
func (r *run) report(force bool) {
	if r.cfg.OnProgress == nil {
		return
	}

	now := time.Now()
	if !force && now.Sub(r.lastProgress) < r.cfg.ProgressInterval {
		return
	}

	r.lastProgress = now

	t := r.agg.Totals()

	r.cfg.OnProgress(Progress{
		Items:             t.Items,
		Files:             t.Files,
		Folders:           t.Folders,
		Bytes:             t.Bytes,
		Issues:            t.Issues,
		EnumerationErrors: t.EnumerationErrors,
		CurrentPath:       r.current,
		Elapsed:           now.Sub(r.start),
	})
}

// cancelled writes a final checkpoint and returns the partial result.
func (r *run) cancelled(ctx context.Context) *model.ScanResult {
	ctx = context.WithoutCancel(ctx)

	if r.writer != nil {
		rec, err := r.record()
		if err == nil {
			err = r.writer.Abandon(ctx, rec)
		} else {
			r.writer.Close()
		}

		if err != nil {
			r.logger.WarnContext(ctx, "checkpoint: final write failed", "error", err)
		}
	}

	r.closeSources(ctx)

	res := r.result(model.StatusCancelled)

	r.logger.InfoContext(ctx, "scan: cancelled", "scan_id", r.scanID, "items", res.TotalItems)

	return res
}

// completed removes the checkpoint and returns the final result.
func (r *run) completed(ctx context.Context) *model.ScanResult {
	r.closeSources(ctx)

	res := r.result(model.StatusCompleted)

	if r.writer != nil {
		r.releaseIssueLog(ctx, res)

		err := r.writer.Complete()
		if err != nil {
			r.logger.WarnContext(ctx, "checkpoint: cleanup failed", "error", err)
		}
	}

	r.logger.InfoContext(ctx, "scan: completed",
		"scan_id", r.scanID, "items", res.TotalItems, "issues", res.Summary.Total)

	return res
}

// releaseIssueLog moves an issue log out of the checkpoint directory before
// it is removed, when the result still needs it.
func (r *run) releaseIssueLog(ctx context.Context, res *model.ScanResult) {
	if res.IssueLogPath == "" || filepath.Dir(res.IssueLogPath) != r.mgr.Dir() {
		return
	}

	if !res.NeedsIssueLog() {
		res.IssueLogPath = ""

		return
	}

	dst := filepath.Join(os.TempDir(), "prescan-"+r.scanID+"."+issuestore.FileName)

	err := os.Rename(res.IssueLogPath, dst)
	if err != nil {
		r.logger.WarnContext(ctx, "scan: could not keep issue log", "error", err)
		res.IssueLogPath = ""

		return
	}

	res.IssueLogPath = dst
}

// abort stops the writer, leaving the last checkpoint in place.
func (r *run) abort() {
	if r.writer != nil {
		r.writer.Close()
	}

	r.closeSources(context.Background())
}

func (r *run) closeSources(ctx context.Context) {
	err := errors.Join(r.src.Close(), r.store.Close())
	if err != nil {
		r.logger.WarnContext(ctx, "scan: close failed", "error", err)
	}
}

func (r *run) result(status model.ScanStatus) *model.ScanResult {
	end := time.Now()

	res := &model.ScanResult{
		ScanID:      r.scanID,
		SourceRoot:  r.root,
		Destination: r.cfg.Destination,
		Status:      status,
		Resumed:     r.resumed,
		StartTime:   r.start,
		EndTime:     end,
		Duration:    end.Sub(r.start),
	}

	r.agg.Fill(res)

	res.Issues = r.store.Issues()
	res.IssuesTruncated = r.store.Truncated()
	res.IssueLogPath = r.store.Path()
	res.ConflictCheckDisabled = r.idx.Disabled()

	return res
}
