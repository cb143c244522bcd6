package model

import "time"

// ScanStatus tells how a scan ended.
type ScanStatus string

// Scan statuses.
const (
	StatusCompleted ScanStatus = "completed"
	StatusCancelled ScanStatus = "cancelled"
)

// FileEntry is one file retained by a largest-files tracker.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// FolderEntry is one folder retained by the largest-folders tracker.
type FolderEntry struct {
	Path      string      `json:"path"`
	Size      int64       `json:"size"`
	FileCount int64       `json:"fileCount"`
	TopFiles  []FileEntry `json:"topFiles,omitempty"`
}

// EnumerationError records an entry the item source could not read.
type EnumerationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Summary holds issue counts grouped three ways.
type Summary struct {
	Total      int64               `json:"total"`
	BySeverity map[Severity]int64  `json:"bySeverity"`
	ByCategory map[string]int64    `json:"byCategory"`
	ByKind     map[IssueKind]int64 `json:"byKind"`
}

// NewSummary returns a summary with initialized maps.
func NewSummary() Summary {
	return Summary{
		BySeverity: make(map[Severity]int64),
		ByCategory: make(map[string]int64),
		ByKind:     make(map[IssueKind]int64),
	}
}

// Add folds one issue into the counts.
func (s *Summary) Add(issue *Issue) {
	s.Total++
	s.BySeverity[issue.Severity]++
	s.ByKind[issue.Kind]++

	if issue.Category != "" {
		s.ByCategory[issue.Category]++
	}
}

// Clone deep-copies the summary.
func (s Summary) Clone() Summary {
	out := NewSummary()
	out.Total = s.Total

	for k, v := range s.BySeverity {
		out.BySeverity[k] = v
	}

	for k, v := range s.ByCategory {
		out.ByCategory[k] = v
	}

	for k, v := range s.ByKind {
		out.ByKind[k] = v
	}

	return out
}

// ScanResult is the frozen outcome of a scan, consumed by report renderers.
//
// Issues may be a truncated subset; renderers must stream IssueLogPath when
// IssuesTruncated is set or len(Issues) < Summary.Total.
type ScanResult struct {
	ScanID      string        `json:"scanId"`
	SourceRoot  string        `json:"sourceRoot"`
	Destination string        `json:"destination,omitempty"`
	Status      ScanStatus    `json:"status"`
	Resumed     bool          `json:"resumed"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	TotalItems   int64 `json:"totalItems"`
	TotalFiles   int64 `json:"totalFiles"`
	TotalFolders int64 `json:"totalFolders"`
	TotalBytes   int64 `json:"totalBytes"`

	Issues          []Issue `json:"issues"`
	IssueLogPath    string  `json:"issueLogPath,omitempty"`
	IssuesTruncated bool    `json:"issuesTruncated"`
	Summary         Summary `json:"summary"`

	LargestFiles   []FileEntry   `json:"largestFiles"`
	LargestFolders []FolderEntry `json:"largestFolders"`

	EnumerationErrorCount int64              `json:"enumerationErrorCount"`
	EnumerationErrors     []EnumerationError `json:"enumerationErrors,omitempty"`

	ConflictCheckDisabled bool `json:"conflictCheckDisabled,omitempty"`
}

// NeedsIssueLog reports whether the in-memory issue slice is incomplete.
func (r *ScanResult) NeedsIssueLog() bool {
	return r.IssuesTruncated || int64(len(r.Issues)) < r.Summary.Total
}

// WorstSeverity returns the most severe level with a non-zero count, or "".
func (r *ScanResult) WorstSeverity() Severity {
	for _, s := range Severities {
		if r.Summary.BySeverity[s] > 0 {
			return s
		}
	}

	return ""
}
