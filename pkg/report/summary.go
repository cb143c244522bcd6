package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/units"
)

// DefaultSummaryRows bounds the largest files and folders tables.
const DefaultSummaryRows = 10

// Summary renders a terminal overview: totals, issue counts and the largest
// folders and files. It does not list individual issues.
type Summary struct {
	rows    int
	noColor bool
}

// SummaryOption configures a Summary.
type SummaryOption func(*Summary)

// WithRows bounds the largest files and folders tables.
func WithRows(n int) SummaryOption {
	return func(s *Summary) {
		if n > 0 {
			s.rows = n
		}
	}
}

// WithoutColor disables ANSI colours.
func WithoutColor() SummaryOption {
	return func(s *Summary) { s.noColor = true }
}

// NewSummary creates a terminal summary renderer.
func NewSummary(opts ...SummaryOption) *Summary {
	s := &Summary{rows: DefaultSummaryRows}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Extension implements Renderer.
func (*Summary) Extension() string {
	return ".txt"
}

func (s *Summary) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if s.noColor {
		c.DisableColor()
	}

	return c
}

func (s *Summary) severityColor(sev model.Severity) *color.Color {
	switch sev {
	case model.SeverityCritical:
		return s.paint(color.FgRed, color.Bold)
	case model.SeverityWarning:
		return s.paint(color.FgYellow)
	default:
		return s.paint(color.FgCyan)
	}
}

// Render implements Renderer.
func (s *Summary) Render(w io.Writer, res *model.ScanResult) error {
	var b strings.Builder

	s.writeHeader(&b, res)
	b.WriteString(overviewTable(res))
	b.WriteString("\n\n")

	if res.Summary.Total > 0 {
		b.WriteString(s.severityTable(res))
		b.WriteString("\n\n")
		b.WriteString(kindTable(res))
		b.WriteString("\n\n")
	}

	if len(res.LargestFolders) > 0 {
		b.WriteString(folderTable(res.LargestFolders, s.rows))
		b.WriteString("\n\n")
	}

	if len(res.LargestFiles) > 0 {
		b.WriteString(fileTable(res.LargestFiles, s.rows))
		b.WriteString("\n\n")
	}

	s.writeNotes(&b, res)
	s.writeRecommendation(&b, res)

	_, err := io.WriteString(w, b.String())

	return err
}

func (s *Summary) writeHeader(b *strings.Builder, res *model.ScanResult) {
	if res.Status == model.StatusCancelled {
		b.WriteString(s.paint(color.FgYellow, color.Bold).Sprint("SCAN CANCELLED"))
		b.WriteString(" (run again to resume)\n\n")

		return
	}

	b.WriteString(s.paint(color.FgGreen, color.Bold).Sprint("SCAN COMPLETE"))

	if res.Resumed {
		b.WriteString(" (resumed)")
	}

	b.WriteString("\n\n")
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func overviewTable(res *model.ScanResult) string {
	tbl := newTable()
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendRow(table.Row{"Source", res.SourceRoot})

	if res.Destination != "" {
		tbl.AppendRow(table.Row{"Destination", res.Destination})
	}

	tbl.AppendRow(table.Row{"Duration", res.Duration.Round(time.Millisecond).String()})
	tbl.AppendRow(table.Row{"Items", fmt.Sprintf("%s (%s files, %s folders)",
		humanize.Comma(res.TotalItems), humanize.Comma(res.TotalFiles), humanize.Comma(res.TotalFolders))})
	tbl.AppendRow(table.Row{"Size", units.Bytes(res.TotalBytes)})

	if secs := res.Duration.Seconds(); secs > 0 {
		tbl.AppendRow(table.Row{"Rate", humanize.Comma(int64(float64(res.TotalItems)/secs)) + " items/s"})
	}

	tbl.AppendRow(table.Row{"Issues", humanize.Comma(res.Summary.Total)})

	if res.EnumerationErrorCount > 0 {
		tbl.AppendRow(table.Row{"Unreadable entries", humanize.Comma(res.EnumerationErrorCount)})
	}

	return tbl.Render()
}

func (s *Summary) severityTable(res *model.ScanResult) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Severity", "Issues"})
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	for _, sev := range model.Severities {
		n := res.Summary.BySeverity[sev]
		if n == 0 {
			continue
		}

		tbl.AppendRow(table.Row{s.severityColor(sev).Sprint(string(sev)), humanize.Comma(n)})
	}

	return tbl.Render()
}

type kindCount struct {
	kind  model.IssueKind
	count int64
}

func kindTable(res *model.ScanResult) string {
	counts := make([]kindCount, 0, len(res.Summary.ByKind))
	for k, n := range res.Summary.ByKind {
		counts = append(counts, kindCount{kind: k, count: n})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}

		return counts[i].kind < counts[j].kind
	})

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Issue", "Count"})
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	for _, kc := range counts {
		tbl.AppendRow(table.Row{string(kc.kind), humanize.Comma(kc.count)})
	}

	return tbl.Render()
}

func folderTable(folders []model.FolderEntry, rows int) string {
	tbl := newTable()
	tbl.SetTitle("Largest folders")
	tbl.AppendHeader(table.Row{"Folder", "Size", "Files"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})

	for i := range min(rows, len(folders)) {
		f := &folders[i]
		tbl.AppendRow(table.Row{f.Path, units.Bytes(f.Size), humanize.Comma(f.FileCount)})
	}

	return tbl.Render()
}

func fileTable(files []model.FileEntry, rows int) string {
	tbl := newTable()
	tbl.SetTitle("Largest files")
	tbl.AppendHeader(table.Row{"File", "Size"})
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	for i := range min(rows, len(files)) {
		tbl.AppendRow(table.Row{files[i].Path, units.Bytes(files[i].Size)})
	}

	return tbl.Render()
}

func (s *Summary) writeNotes(b *strings.Builder, res *model.ScanResult) {
	note := s.paint(color.Faint)

	if res.NeedsIssueLog() {
		where := res.IssueLogPath
		if where == "" {
			where = "unavailable"
		}

		b.WriteString(note.Sprintf("Issue list capped at %d; full list: %s\n", len(res.Issues), where))
	}

	if res.ConflictCheckDisabled {
		b.WriteString(note.Sprint("Name conflict check was disabled under memory pressure\n"))
	}
}

func (s *Summary) writeRecommendation(b *strings.Builder, res *model.ScanResult) {
	switch res.WorstSeverity() {
	case model.SeverityCritical:
		b.WriteString(s.severityColor(model.SeverityCritical).Sprint("Action required:"))
		b.WriteString(" critical issues must be resolved before migration.\n")
	case model.SeverityWarning:
		b.WriteString(s.severityColor(model.SeverityWarning).Sprint("Warnings detected:"))
		b.WriteString(" address them to avoid problems during migration.\n")
	case model.SeverityInfo:
		b.WriteString(s.severityColor(model.SeverityInfo).Sprint("Review recommended:"))
		b.WriteString(" only informational items found.\n")
	default:
		b.WriteString(s.paint(color.FgGreen).Sprint("Ready for migration:"))
		b.WriteString(" no issues found.\n")
	}
}
