package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prescan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/prescan/pkg/issuestore"
	"github.com/Sumatoshi-tech/prescan/pkg/memwatch"
	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/rules"
	"github.com/Sumatoshi-tech/prescan/pkg/source"
)

const testInterval = 7

// buildScanTree creates a tree with a name conflict, a blocked type, an
// invalid character, a reserved name, a blocked prefix, a hidden folder and
// enough files to cross many checkpoints. Files are sparse.
func buildScanTree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	write := func(rel string, size int64) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))

		f, err := os.Create(p)
		require.NoError(t, err)
		require.NoError(t, f.Truncate(size))
		require.NoError(t, f.Close())
	}

	write("docs/Report.docx", 1000)
	write("docs/REPORT.DOCX", 2000)
	write("docs/bad:name.txt", 10)
	write("tools/setup.exe", 0)
	write(".hidden/notes.txt", 5)

	for d := range 12 {
		for f := range 8 {
			write(fmt.Sprintf("projects/p%02d/sub/file%02d.dat", d, f), int64(d*8+f+1)*1024)
		}
	}

	write("projects/p03/CON.txt", 1)
	write("projects/p05/~$lock.docx", 1)

	return root
}

func testConfig(t *testing.T, root string) Config {
	t.Helper()

	cfg := DefaultConfig(root)
	cfg.PrefixLength = 50
	cfg.Workers = 3
	cfg.OutputDir = t.TempDir()
	cfg.Checkpoint.Dir = t.TempDir()
	cfg.Checkpoint.Interval = testInterval

	return cfg
}

func newTestScanner(t *testing.T, cfg Config, opts ...Option) *Scanner {
	t.Helper()

	s, err := New(cfg, opts...)
	require.NoError(t, err)

	return s
}

// fingerprint is everything a resumed scan must reproduce.
type fingerprint struct {
	Items, Files, Folders, Bytes int64
	Summary                      model.Summary
	LargestFiles                 []model.FileEntry
	LargestFolders               []model.FolderEntry
	EnumerationErrors            int64
	Logged                       []string
}

func fingerprintOf(t *testing.T, res *model.ScanResult) fingerprint {
	t.Helper()

	return fingerprint{
		Items:             res.TotalItems,
		Files:             res.TotalFiles,
		Folders:           res.TotalFolders,
		Bytes:             res.TotalBytes,
		Summary:           res.Summary,
		LargestFiles:      res.LargestFiles,
		LargestFolders:    res.LargestFolders,
		EnumerationErrors: res.EnumerationErrorCount,
		Logged:            loggedKeys(t, res.IssueLogPath),
	}
}

func issueKey(i *model.Issue) string {
	return i.RelativePath + "|" + string(i.Kind) + "|" + i.ConflictsWith
}

func loggedKeys(t *testing.T, path string) []string {
	t.Helper()

	var keys []string

	require.NoError(t, issuestore.ReadLog(path, func(i *model.Issue) bool {
		keys = append(keys, issueKey(i))

		return true
	}))

	sort.Strings(keys)

	return keys
}

func memoryKeys(res *model.ScanResult) []string {
	keys := make([]string, 0, len(res.Issues))
	for i := range res.Issues {
		keys = append(keys, issueKey(&res.Issues[i]))
	}

	sort.Strings(keys)

	return keys
}

func baseline(t *testing.T, root string) fingerprint {
	t.Helper()

	res, err := newTestScanner(t, testConfig(t, root)).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, res.Status)

	return fingerprintOf(t, res)
}

func TestScan_Completes(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.False(t, res.Resumed)
	assert.Equal(t, root, res.SourceRoot)
	assert.Equal(t, int64(103), res.TotalFiles)
	assert.Equal(t, int64(4+12+12), res.TotalFolders)
	assert.Equal(t, res.TotalFiles+res.TotalFolders, res.TotalItems)

	// The issue log holds every issue and matches the counters.
	logged := loggedKeys(t, res.IssueLogPath)
	assert.Len(t, logged, int(res.Summary.Total))
	assert.Equal(t, logged, memoryKeys(res))
	assert.False(t, res.IssuesTruncated)

	kinds := res.Summary.ByKind
	assert.Equal(t, int64(1), kinds[model.KindNameConflict])
	assert.Equal(t, int64(1), kinds[model.KindBlockedFileType])
	assert.Equal(t, int64(1), kinds[model.KindInvalidCharacters])
	assert.Equal(t, int64(1), kinds[model.KindReservedName])
	assert.Equal(t, int64(1), kinds[model.KindBlockedPrefix])
	assert.Positive(t, kinds[model.KindHiddenItem])

	for _, issue := range res.Issues {
		if issue.Kind == model.KindNameConflict {
			assert.Equal(t, "docs/Report.docx", issue.RelativePath)
			assert.Equal(t, filepath.Join(root, "docs", "REPORT.DOCX"), issue.ConflictsWith)
		}
	}

	require.Len(t, res.LargestFiles, 20)
	assert.Equal(t, int64(96*1024), res.LargestFiles[0].Size)
	assert.Equal(t, filepath.Join(root, "projects"), res.LargestFolders[0].Path)

	// Completion removes the checkpoint but keeps the output-dir issue log.
	assert.NoDirExists(t, checkpoint.NewManager(cfg.Checkpoint.Dir, root, false).Dir())
	assert.FileExists(t, res.IssueLogPath)
}

func TestScan_CancelThenResumeMatchesUninterrupted(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	want := baseline(t, root)

	cutoffs := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 14, 21, 33, 50, 64, 90, 120}

	// A prefetch depth of 1 keeps the enumeration log incomplete at the
	// cutoff so the resume walks live; the default usually finishes the log
	// first so the resume replays it.
	for _, depth := range []int{1, 0} {
		for _, cutoff := range cutoffs {
			cancelAndResume(t, root, want, depth, cutoff)
		}
	}
}

func cancelAndResume(t *testing.T, root string, want fingerprint, depth int, cutoff int64) {
	t.Helper()

	cfg := testConfig(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newTestScanner(t, cfg)
	first.prefetch = depth
	first.afterEvent = func(items int64) {
		if items >= cutoff {
			cancel()
		}
	}

	partial, err := first.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, partial.Status, "cutoff %d", cutoff)
	assert.Equal(t, cutoff, partial.TotalItems)
	assert.True(t, checkpoint.NewManager(cfg.Checkpoint.Dir, root, false).Exists())

	second := newTestScanner(t, cfg)
	second.prefetch = depth

	res, err := second.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.True(t, res.Resumed, "depth %d cutoff %d", depth, cutoff)
	assert.Equal(t, partial.ScanID, res.ScanID)
	assert.Equal(t, want, fingerprintOf(t, res), "depth %d cutoff %d", depth, cutoff)
}

// crashRecorder keeps a copy of the first checkpoint written after a given
// item count, as if the process died right after writing it.
type crashRecorder struct {
	nopMetrics

	path  string
	mu    sync.Mutex
	saved []byte
}

func (c *crashRecorder) RecordCheckpoint(_ context.Context, _ time.Duration, err error) {
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.saved != nil {
		return
	}

	data, readErr := os.ReadFile(c.path)
	if readErr == nil {
		c.saved = data
	}
}

func TestScan_ResumeAfterCrash(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	want := baseline(t, root)

	for _, stopAt := range []int64{3 * testInterval, 60, 110} {
		cfg := testConfig(t, root)
		rec := &crashRecorder{path: checkpoint.NewManager(cfg.Checkpoint.Dir, root, false).Path()}

		ctx, cancel := context.WithCancel(context.Background())

		first := newTestScanner(t, cfg, WithMetrics(rec))
		first.afterEvent = func(items int64) {
			if items >= stopAt {
				cancel()
			}
		}

		_, err := first.Scan(ctx)
		cancel()
		require.NoError(t, err)

		// Roll the checkpoint back to the first write; both logs now run
		// past what it records.
		rec.mu.Lock()
		require.NotNil(t, rec.saved)
		require.NoError(t, os.WriteFile(rec.path, rec.saved, 0o600))
		rec.mu.Unlock()

		res, err := newTestScanner(t, cfg).Scan(context.Background())
		require.NoError(t, err)

		assert.True(t, res.Resumed)
		assert.Equal(t, want, fingerprintOf(t, res), "stop at %d", stopAt)
	}
}

func TestScan_DestinationMismatchStartsCold(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)
	cfg.Destination = "https://contoso.sharepoint.com/sites/A/Shared Documents"
	cfg.PrefixLength = DerivePrefixLength

	ctx, cancel := context.WithCancel(context.Background())

	first := newTestScanner(t, cfg)
	first.afterEvent = func(items int64) {
		if items >= 30 {
			cancel()
		}
	}

	partial, err := first.Scan(ctx)
	cancel()
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, partial.Status)

	cfg.Destination = "https://contoso.sharepoint.com/sites/B/Shared Documents"

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Resumed)
	assert.NotEqual(t, partial.ScanID, res.ScanID)
	assert.Equal(t, int64(103), res.TotalFiles)
	assert.Equal(t, []string{res.ScanID + "." + issuestore.FileName}, outputFiles(t, cfg.OutputDir))
}

func outputFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}

func TestScan_UnusableEnumerationLogDropsOldIssueLog(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)

	ctx, cancel := context.WithCancel(context.Background())

	first := newTestScanner(t, cfg)
	first.prefetch = 1
	first.afterEvent = func(items int64) {
		if items >= 40 {
			cancel()
		}
	}

	partial, err := first.Scan(ctx)
	cancel()
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, partial.Status)
	require.FileExists(t, partial.IssueLogPath)

	// The checkpoint still loads but its cursor now points past the log.
	mgr := checkpoint.NewManager(cfg.Checkpoint.Dir, root, false)
	require.NoError(t, os.Truncate(mgr.EnumerationLogPath(), 0))

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Resumed)
	assert.NotEqual(t, partial.ScanID, res.ScanID)
	assert.Equal(t, int64(103), res.TotalFiles)
	assert.NoFileExists(t, partial.IssueLogPath)
	assert.Equal(t, []string{res.ScanID + "." + issuestore.FileName}, outputFiles(t, cfg.OutputDir))
	assert.Len(t, loggedKeys(t, res.IssueLogPath), int(res.Summary.Total))
}

func TestScan_CorruptCheckpointStartsCold(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)

	mgr := checkpoint.NewManager(cfg.Checkpoint.Dir, root, false)
	require.NoError(t, mgr.Prepare())
	require.NoError(t, os.WriteFile(mgr.Path(), []byte("{not json"), 0o600))

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Resumed)
	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, int64(103), res.TotalFiles)
}

func TestScan_ResumeDisabledStartsCold(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)

	ctx, cancel := context.WithCancel(context.Background())

	first := newTestScanner(t, cfg)
	first.afterEvent = func(items int64) {
		if items >= 10 {
			cancel()
		}
	}

	_, err := first.Scan(ctx)
	cancel()
	require.NoError(t, err)

	cfg.Checkpoint.Resume = false

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Resumed)
	assert.Equal(t, int64(103), res.TotalFiles)
}

func TestScan_RootInaccessible(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing"))

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.ErrorIs(t, err, source.ErrRootInaccessible)
	assert.Nil(t, res)
	assert.Equal(t, ExitFatal, ExitCode(res, err))
}

func TestScan_OutputDirUnusable(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	cfg.OutputDir = filepath.Join(blocker, "out")

	_, err := newTestScanner(t, cfg).Scan(context.Background())
	require.ErrorIs(t, err, ErrOutputDir)
}

func TestScan_IssueCapKeepsFullLog(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)
	cfg.IssueCap = 2

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Issues, 2)
	assert.True(t, res.IssuesTruncated)
	assert.True(t, res.NeedsIssueLog())
	assert.Len(t, loggedKeys(t, res.IssueLogPath), int(res.Summary.Total))
}

func TestScan_IssueLogNextToCheckpointIsKeptWhenNeeded(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)
	cfg.OutputDir = ""
	cfg.IssueCap = 1

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { _ = os.Remove(res.IssueLogPath) })

	require.NotEmpty(t, res.IssueLogPath)
	assert.FileExists(t, res.IssueLogPath)
	assert.Len(t, loggedKeys(t, res.IssueLogPath), int(res.Summary.Total))
	assert.NoDirExists(t, checkpoint.NewManager(cfg.Checkpoint.Dir, root, false).Dir())
}

func TestScan_WithoutCheckpoints(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)
	cfg.OutputDir = ""
	cfg.Checkpoint.Enabled = false

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.IssueLogPath)
	assert.Len(t, res.Issues, int(res.Summary.Total))
}

func TestScan_MemoryPressureDisablesConflictCheck(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)
	cfg.MemoryBudget = 1000

	sampler := func() memwatch.Snapshot { return memwatch.Snapshot{HeapInuse: 900} }

	res, err := newTestScanner(t, cfg,
		WithMemoryOptions(memwatch.WithSampler(sampler), memwatch.WithSampleEvery(1)),
	).Scan(context.Background())
	require.NoError(t, err)

	assert.True(t, res.ConflictCheckDisabled)
	assert.Zero(t, res.Summary.ByKind[model.KindNameConflict])
	assert.Equal(t, int64(103), res.TotalFiles)
}

func TestScan_DisabledChecks(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)
	cfg.DisabledChecks = []rules.Check{rules.CheckNameConflicts, rules.CheckHiddenFiles}

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.False(t, res.ConflictCheckDisabled)
	assert.Zero(t, res.Summary.ByKind[model.KindNameConflict])
	assert.Zero(t, res.Summary.ByKind[model.KindHiddenItem])
	assert.Equal(t, int64(1), res.Summary.ByKind[model.KindBlockedFileType])
}

func TestScan_MaxItems(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)
	cfg.MaxItems = 25

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, int64(25), res.TotalItems)
	assert.NotEmpty(t, res.LargestFolders)
	assert.NoDirExists(t, checkpoint.NewManager(cfg.Checkpoint.Dir, root, false).Dir())
}

func TestScan_Progress(t *testing.T) {
	t.Parallel()

	root := buildScanTree(t)
	cfg := testConfig(t, root)
	cfg.ProgressInterval = time.Nanosecond

	var last Progress

	calls := 0
	cfg.OnProgress = func(p Progress) {
		assert.GreaterOrEqual(t, p.Items, last.Items)

		last = p
		calls++
	}

	res, err := newTestScanner(t, cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.Greater(t, calls, 1)
	assert.Equal(t, res.TotalItems, last.Items)
	assert.Equal(t, res.TotalBytes, last.Bytes)
	assert.NotEmpty(t, last.CurrentPath)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNoRoot)

	cfg := DefaultConfig(t.TempDir())
	cfg.Limits = rules.Limits{}

	_, err = New(cfg)
	require.ErrorIs(t, err, rules.ErrInvalidLimits)

	cfg = DefaultConfig(t.TempDir())
	cfg.Workers = 0
	cfg.Checkpoint.Interval = 0

	s, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers(), s.Config().Workers)
	assert.Equal(t, DefaultCheckpointInterval, s.Config().Checkpoint.Interval)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	withSeverity := func(sev model.Severity) *model.ScanResult {
		res := &model.ScanResult{Status: model.StatusCompleted, Summary: model.NewSummary()}
		if sev != "" {
			res.Summary.BySeverity[sev] = 1
		}

		return res
	}

	assert.Equal(t, ExitClean, ExitCode(withSeverity(""), nil))
	assert.Equal(t, ExitClean, ExitCode(withSeverity(model.SeverityInfo), nil))
	assert.Equal(t, ExitWarnings, ExitCode(withSeverity(model.SeverityWarning), nil))
	assert.Equal(t, ExitCritical, ExitCode(withSeverity(model.SeverityCritical), nil))
	assert.Equal(t, ExitFatal, ExitCode(nil, assert.AnError))

	cancelled := withSeverity(model.SeverityCritical)
	cancelled.Status = model.StatusCancelled
	assert.Equal(t, ExitCancelled, ExitCode(cancelled, nil))
}
