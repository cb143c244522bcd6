package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/report"
)

func renderSummary(t *testing.T, res *model.ScanResult, opts ...report.SummaryOption) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, report.NewSummary(append(opts, report.WithoutColor())...).Render(&buf, res))

	return buf.String()
}

func TestSummary_Clean(t *testing.T) {
	t.Parallel()

	res := resultWith(nil)
	res.TotalItems = 1234
	res.TotalFiles = 1200
	res.TotalFolders = 34
	res.TotalBytes = 3 << 30
	res.Duration = 2 * time.Second

	out := renderSummary(t, res)

	assert.Contains(t, out, "SCAN COMPLETE")
	assert.Contains(t, out, "1,234 (1,200 files, 34 folders)")
	assert.Contains(t, out, "3.0 GiB")
	assert.Contains(t, out, "617 items/s")
	assert.Contains(t, out, "Ready for migration")
	assert.NotContains(t, out, "Severity")
	assert.NotContains(t, out, "\x1b[")
}

func TestSummary_IssuesAndTables(t *testing.T) {
	t.Parallel()

	res := resultWith([]model.Issue{
		makeIssue(1, model.SeverityCritical),
		makeIssue(2, model.SeverityWarning),
		makeIssue(3, model.SeverityWarning),
	})
	res.LargestFiles = []model.FileEntry{{Path: "/src/big.iso", Size: 5 << 30}, {Path: "/src/small.txt", Size: 10}}
	res.LargestFolders = []model.FolderEntry{{Path: "/src/media", Size: 5 << 30, FileCount: 1200}}

	out := renderSummary(t, res, report.WithRows(1))

	assert.Contains(t, out, "Critical")
	assert.Contains(t, out, "InvalidCharacters")
	assert.Contains(t, out, "/src/media")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "/src/big.iso")
	assert.NotContains(t, out, "/src/small.txt")
	assert.Contains(t, out, "Action required")
}

func TestSummary_CancelledAndCapped(t *testing.T) {
	t.Parallel()

	res := cappedResult(t, 3)
	res.Status = model.StatusCancelled
	res.ConflictCheckDisabled = true

	out := renderSummary(t, res)

	assert.Contains(t, out, "SCAN CANCELLED")
	assert.Contains(t, out, "Issue list capped at 1; full list: "+res.IssueLogPath)
	assert.Contains(t, out, "Name conflict check was disabled")
	assert.Contains(t, out, "Warnings detected")
}
