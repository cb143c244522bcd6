package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

func TestParentOf(t *testing.T) {
	t.Parallel()

	assert.Empty(t, model.ParentOf("a"))
	assert.Equal(t, "a", model.ParentOf("a/b"))
	assert.Equal(t, "a/b", model.ParentOf("a/b/c.txt"))
}

func TestAncestors_NearestFirst(t *testing.T) {
	t.Parallel()

	var got []string

	model.Ancestors("a/b/c/d.txt", func(dir string) { got = append(got, dir) })

	assert.Equal(t, []string{"a/b/c", "a/b", "a"}, got)
}

func TestIsWithin(t *testing.T) {
	t.Parallel()

	assert.True(t, model.IsWithin("a/b", ""))
	assert.True(t, model.IsWithin("a/b", "a/b"))
	assert.True(t, model.IsWithin("a/b/c", "a/b"))
	assert.False(t, model.IsWithin("a/bc", "a/b"))
	assert.False(t, model.IsWithin("a", "a/b"))
}

func TestItem_HiddenAndExt(t *testing.T) {
	t.Parallel()

	dot := &model.Item{Name: ".env"}
	attr := &model.Item{Name: "Thumbs.DB", Attrs: model.AttrHidden | model.AttrSystem}
	plain := &model.Item{Name: "Report.PDF"}

	assert.True(t, dot.Hidden())
	assert.True(t, attr.Hidden())
	assert.False(t, plain.Hidden())
	assert.Equal(t, ".pdf", plain.Ext())
	assert.Equal(t, ".db", attr.Ext())
	assert.True(t, attr.Attrs.Has(model.AttrSystem))
	assert.False(t, attr.Attrs.Has(model.AttrReparse))
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	s, ok := model.ParseSeverity("warning")
	require.True(t, ok)
	assert.Equal(t, model.SeverityWarning, s)

	_, ok = model.ParseSeverity("fatal")
	assert.False(t, ok)

	assert.Greater(t, model.SeverityCritical.Rank(), model.SeverityWarning.Rank())
	assert.Greater(t, model.SeverityWarning.Rank(), model.SeverityInfo.Rank())
	assert.Zero(t, model.Severity("other").Rank())
}

func TestSummary_AddAndClone(t *testing.T) {
	t.Parallel()

	s := model.NewSummary()
	s.Add(&model.Issue{Severity: model.SeverityCritical, Kind: model.KindBlockedFileType, Category: "Executable"})
	s.Add(&model.Issue{Severity: model.SeverityInfo, Kind: model.KindHiddenItem})

	c := s.Clone()
	c.Add(&model.Issue{Severity: model.SeverityCritical, Kind: model.KindPathTooLong})

	assert.Equal(t, int64(2), s.Total)
	assert.Equal(t, int64(1), s.BySeverity[model.SeverityCritical])
	assert.Equal(t, int64(1), s.ByCategory["Executable"])
	assert.Len(t, s.ByCategory, 1)
	assert.Equal(t, int64(3), c.Total)
	assert.Equal(t, int64(2), c.BySeverity[model.SeverityCritical])
}

func TestScanResult_WorstSeverityAndLog(t *testing.T) {
	t.Parallel()

	res := &model.ScanResult{Summary: model.NewSummary()}
	assert.Empty(t, res.WorstSeverity())
	assert.False(t, res.NeedsIssueLog())

	res.Summary.Add(&model.Issue{Severity: model.SeverityInfo})
	assert.Equal(t, model.SeverityInfo, res.WorstSeverity())
	assert.True(t, res.NeedsIssueLog())

	res.Issues = []model.Issue{{Severity: model.SeverityInfo}}
	assert.False(t, res.NeedsIssueLog())

	res.Summary.Add(&model.Issue{Severity: model.SeverityWarning})
	assert.Equal(t, model.SeverityWarning, res.WorstSeverity())

	res.IssuesTruncated = true
	assert.True(t, res.NeedsIssueLog())
}

func TestIssue_ItemType(t *testing.T) {
	t.Parallel()

	item := &model.Item{Path: "/r/a", Name: "a", RelPath: "a", IsDir: true}
	issue := model.NewIssue(item, model.KindNameConflict, model.SeverityWarning, "", "d", "r")

	assert.Equal(t, "Folder", issue.ItemType())
	assert.Equal(t, "a", issue.RelativePath)
	assert.Equal(t, "File", model.Issue{}.ItemType())
}
