package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/prescan/pkg/aggregate"
	"github.com/Sumatoshi-tech/prescan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/prescan/pkg/issuestore"
	"github.com/Sumatoshi-tech/prescan/pkg/memwatch"
	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/rules"
	"github.com/Sumatoshi-tech/prescan/pkg/source"
)

const outputDirPerm = 0o750

// isFatal reports errors that end the scan instead of triggering a cold start.
func isFatal(err error) bool {
	return errors.Is(err, source.ErrRootInaccessible) || errors.Is(err, ErrOutputDir)
}

// open resolves the checkpoint and builds a run, falling back to a cold start
// whenever the checkpoint cannot be honoured.
func (s *Scanner) open(ctx context.Context, root string) (*run, error) {
	cp := s.cfg.Checkpoint
	if !cp.Enabled {
		return s.prepare(ctx, root, nil, nil)
	}

	mgr := checkpoint.NewManager(cp.Dir, root, cp.Compress)

	if cp.Resume {
		rec, err := mgr.Resolve(root, s.cfg.Destination)

		switch {
		case err == nil:
			r, prepErr := s.prepare(ctx, root, mgr, rec)
			if prepErr == nil {
				return r, nil
			}

			if isFatal(prepErr) {
				return nil, prepErr
			}

			s.logger.WarnContext(ctx, "checkpoint: resume failed, starting fresh", "error", prepErr)
		case errors.Is(err, checkpoint.ErrNoCheckpoint):
		default:
			s.logger.WarnContext(ctx, "checkpoint: unusable, starting fresh", "error", err)
		}
	}

	s.discardIssueLog(ctx, mgr)

	err := mgr.Clear()
	if err == nil {
		err = mgr.Prepare()
	}

	if err != nil {
		s.logger.WarnContext(ctx, "checkpoint: directory unusable, continuing without checkpoints", "error", err)

		return s.prepare(ctx, root, nil, nil)
	}

	return s.prepare(ctx, root, mgr, nil)
}

// prepare builds a run, restoring rec when it is not nil.
func (s *Scanner) prepare(ctx context.Context, root string, mgr *checkpoint.Manager, rec *checkpoint.Record) (*run, error) {
	r := &run{
		s:         s,
		cfg:       &s.cfg,
		logger:    s.logger,
		root:      root,
		mgr:       mgr,
		scanID:    uuid.NewString(),
		start:     time.Now(),
		agg:       aggregate.New(root, s.cfg.TopN),
		idx:       rules.NewConflictIndex(),
		conflicts: s.rules.Enabled(rules.CheckNameConflicts),
		processed: checkpoint.NewProcessedSet(),
		pipeline:  rules.NewPipeline(s.rules),
		watch:     memwatch.New(s.cfg.MemoryBudget, s.memOpts...),
	}

	// The walker prunes against a frozen copy; r.processed keeps growing
	// on the dispatcher goroutine.
	pruned := checkpoint.NewProcessedSet()

	var (
		issuePos *issuestore.Position
		enumPos  *source.Position
	)

	if rec != nil {
		r.scanID = rec.ScanID
		r.start = rec.StartTime
		r.resumed = true

		r.agg.Restore(&rec.Aggregate)
		r.processed.Restore(rec.Processed)
		pruned.Restore(rec.Processed)

		if rec.ConflictCheckDisabled {
			r.idx.Disable()
		}

		issuePos = &rec.IssueLog
		enumPos = &rec.Enumeration
	}

	issuePath, err := s.issueLogPath(mgr, r.scanID)
	if err != nil {
		return nil, err
	}

	store, err := issuestore.Open(issuePath, s.cfg.IssueCap, issuePos)
	if err != nil {
		if rec == nil {
			return nil, fmt.Errorf("%w: %w", ErrOutputDir, err)
		}

		return nil, fmt.Errorf("reopen issue log: %w", err)
	}

	var skip source.SkipFunc
	if r.conflicts {
		skip = func(item *model.Item) { r.idx.Observe(item) }
	}

	enumPath := ""
	if mgr != nil {
		enumPath = mgr.EnumerationLogPath()
	}

	src, mode, err := source.Open(source.Options{
		Root:      root,
		LogPath:   enumPath,
		Exclude:   s.cfg.Exclude,
		Resume:    enumPos,
		Processed: pruned.Contains,
		OnSkip:    skip,
		Logger:    s.logger,
	})
	if err != nil {
		_ = store.Close()

		return nil, err
	}

	r.store = store
	r.mode = mode
	r.mark = src.Cursor()
	r.items = r.agg.Totals().Items
	r.src = source.Prefetch(ctx, src, s.prefetch)

	if mgr != nil {
		r.writer = checkpoint.NewWriter(ctx, mgr, checkpoint.WriterOptions{
			Logger:  s.logger,
			Tracer:  s.tracer,
			OnWrite: s.metrics.RecordCheckpoint,
		})
	}

	if r.resumed {
		s.logger.InfoContext(ctx, "scan: resumed from checkpoint",
			"scan_id", r.scanID, "mode", string(mode), "items", r.items, "issues", store.Count())
	} else {
		s.logger.InfoContext(ctx, "scan: started", "scan_id", r.scanID, "root", root)
	}

	return r, nil
}

// discardIssueLog removes the output-dir issue log of a checkpointed scan
// that is about to be abandoned for a cold start. Logs of completed scans
// have no checkpoint and are never touched.
func (s *Scanner) discardIssueLog(ctx context.Context, mgr *checkpoint.Manager) {
	if s.cfg.OutputDir == "" {
		return
	}

	rec, err := mgr.Load()
	if err != nil {
		return
	}

	if _, err = uuid.Parse(rec.ScanID); err != nil {
		return
	}

	stale := filepath.Join(s.cfg.OutputDir, rec.ScanID+"."+issuestore.FileName)

	err = os.Remove(stale)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.WarnContext(ctx, "scan: could not remove stale issue log", "path", stale, "error", err)
	}
}

// issueLogPath places the issue log in the output directory, else next to
// the checkpoint, else nowhere.
func (s *Scanner) issueLogPath(mgr *checkpoint.Manager, scanID string) (string, error) {
	switch {
	case s.cfg.OutputDir != "":
		err := os.MkdirAll(s.cfg.OutputDir, outputDirPerm)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrOutputDir, err)
		}

		return filepath.Join(s.cfg.OutputDir, scanID+"."+issuestore.FileName), nil
	case mgr != nil:
		return mgr.IssueLogPath(), nil
	default:
		return "", nil
	}
}
