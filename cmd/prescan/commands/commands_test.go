package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/observability"
	"github.com/Sumatoshi-tech/prescan/pkg/publish"
	"github.com/Sumatoshi-tech/prescan/pkg/scanner"
)

type recordedPublish struct {
	scanID string
	files  []string
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []recordedPublish
}

func (f *fakePublisher) Publish(_ context.Context, scanID string, files ...string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, recordedPublish{scanID: scanID, files: files})

	return files, nil
}

func testDeps(pub *fakePublisher) scanDeps {
	return scanDeps{
		initObservability: func(cfg observability.Config) (observability.Providers, error) {
			cfg.OTLPEndpoint = ""
			cfg.Prometheus = false

			p, err := observability.Init(cfg)
			if err != nil {
				return p, err
			}

			p.Logger = slog.New(slog.DiscardHandler)

			return p, nil
		},
		newPublisher: func(publish.Config, *slog.Logger) (artifactPublisher, error) {
			return pub, nil
		},
	}
}

func execute(t *testing.T, deps scanDeps, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand(deps)

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func writeTree(t *testing.T, files ...string) string {
	t.Helper()

	root := t.TempDir()

	for _, rel := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}

	return root
}

func emptyConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "prescan.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	return path
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, scanner.ExitClean, ExitCode(nil))
	assert.Equal(t, scanner.ExitFatal, ExitCode(errors.New("boom")))
	assert.Equal(t, scanner.ExitWarnings, ExitCode(exitStatus(scanner.ExitWarnings)))
	assert.NoError(t, exitStatus(scanner.ExitClean))

	wrapped := fatal(scanner.ErrNoRoot)
	assert.Equal(t, scanner.ExitFatal, ExitCode(wrapped))
	assert.ErrorIs(t, wrapped, scanner.ErrNoRoot)
	assert.Empty(t, (&ExitError{Code: scanner.ExitCritical}).Error())
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, testDeps(&fakePublisher{}), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "prescan "))
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "prescan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("scan:\n  issue_cap: 77\n"), 0o600))

	out, err := execute(t, testDeps(&fakePublisher{}), "config", "show", "--config", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, out, "# config file: "+cfgPath)
	assert.Contains(t, out, "issue_cap: 77")
	assert.Contains(t, out, "checkpoint:")
}

func TestConfigShow_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "prescan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("scan:\n  issue_cap: 0\n"), 0o600))

	_, err := execute(t, testDeps(&fakePublisher{}), "config", "show", "--config", cfgPath)
	assert.Equal(t, scanner.ExitFatal, ExitCode(err))
}

func TestScanCommand_CriticalWritesReports(t *testing.T) {
	t.Parallel()

	root := writeTree(t, "docs/ok.txt", "docs/bad:name.txt")
	outDir := t.TempDir()

	out, err := execute(t, testDeps(&fakePublisher{}), "scan", root,
		"--config", emptyConfig(t),
		"--output", outDir,
		"--checkpoint-dir", t.TempDir(),
		"--format", "json,csv",
		"--no-color", "--no-progress")

	assert.Equal(t, scanner.ExitCritical, ExitCode(err))
	assert.Contains(t, out, "SCAN COMPLETE")
	assert.Contains(t, out, "Report saved:")

	jsonReports, globErr := filepath.Glob(filepath.Join(outDir, "prescan-*.json"))
	require.NoError(t, globErr)
	require.Len(t, jsonReports, 1)

	csvReports, globErr := filepath.Glob(filepath.Join(outDir, "prescan-*.csv"))
	require.NoError(t, globErr)
	require.Len(t, csvReports, 1)

	data, readErr := os.ReadFile(jsonReports[0])
	require.NoError(t, readErr)

	var res model.ScanResult
	require.NoError(t, json.Unmarshal(data, &res))

	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, int64(2), res.TotalFiles)
	require.NotEmpty(t, res.Issues)
	assert.Equal(t, model.KindInvalidCharacters, res.Issues[0].Kind)
}

func TestScanCommand_CleanTreeExitsZero(t *testing.T) {
	t.Parallel()

	root := writeTree(t, "a/b.txt", "c.txt")

	out, err := execute(t, testDeps(&fakePublisher{}), "scan", root,
		"--config", emptyConfig(t),
		"--output", t.TempDir(),
		"--checkpoint-dir", t.TempDir(),
		"-q")

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestScanCommand_MissingRootIsFatal(t *testing.T) {
	t.Parallel()

	_, err := execute(t, testDeps(&fakePublisher{}), "scan", filepath.Join(t.TempDir(), "missing"),
		"--config", emptyConfig(t),
		"--output", t.TempDir(),
		"--checkpoint-dir", t.TempDir(),
		"-q")

	assert.Equal(t, scanner.ExitFatal, ExitCode(err))
	assert.ErrorContains(t, err, "root")
}

func TestScanCommand_InvalidFlagValueIsFatal(t *testing.T) {
	t.Parallel()

	_, err := execute(t, testDeps(&fakePublisher{}), "scan", t.TempDir(),
		"--config", emptyConfig(t),
		"--path-warning-percent", "150",
		"-q")

	assert.Equal(t, scanner.ExitFatal, ExitCode(err))
}

func TestScanCommand_PublishesReportsAndIssueLog(t *testing.T) {
	t.Parallel()

	root := writeTree(t, ".hidden")
	pub := &fakePublisher{}

	_, err := execute(t, testDeps(pub), "scan", root,
		"--config", emptyConfig(t),
		"--output", t.TempDir(),
		"--checkpoint-dir", t.TempDir(),
		"--publish-endpoint", "localhost:9000",
		"--publish-bucket", "reports",
		"-q")

	// Hidden items are informational only.
	require.NoError(t, err)

	require.Len(t, pub.calls, 1)
	require.Len(t, pub.calls[0].files, 2)
	assert.True(t, strings.HasSuffix(pub.calls[0].files[0], ".json"))
	assert.True(t, strings.HasSuffix(pub.calls[0].files[1], ".issues.ndjson"))
	assert.NotEmpty(t, pub.calls[0].scanID)
}

func TestProgressLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	line := newProgressLine(&buf)
	line.update(scanner.Progress{Items: 1500, Files: 1400, Folders: 100, Bytes: 2048, Issues: 3, CurrentPath: "/data/x"})
	line.update(scanner.Progress{Items: 2, CurrentPath: "/y"})
	line.finish()
	line.finish()

	out := buf.String()
	assert.Contains(t, out, "Scanned 1,500 items (1,400 files, 100 folders) 2.0 KiB | 3 issues")
	assert.Equal(t, 2, strings.Count(out, "\r"))
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestShortenPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/short", shortenPath("/short"))

	long := "/" + strings.Repeat("a", 100)
	got := shortenPath(long)
	assert.Equal(t, maxPathColumn, len([]rune(got)))
	assert.True(t, strings.HasPrefix(got, "..."))
}
