// Package model defines the data types shared by the scan engine: scanned
// items, compatibility issues and the final scan result.
package model

import "strings"

// Severity ranks how badly an issue blocks migration.
type Severity string

// Severity levels.
const (
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
	SeverityInfo     Severity = "Info"
)

// Severities lists all severities from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityWarning, SeverityInfo}

// Rank returns a comparable weight: higher is more severe. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ParseSeverity maps a case-insensitive name to a Severity.
func ParseSeverity(name string) (Severity, bool) {
	for _, s := range Severities {
		if strings.EqualFold(string(s), name) {
			return s, true
		}
	}

	return "", false
}

// IssueKind identifies which rule produced an issue.
type IssueKind string

// Issue kinds. An item carries at most one issue of each kind.
const (
	KindPathTooLong       IssueKind = "PathTooLong"
	KindNameTooLong       IssueKind = "NameTooLong"
	KindInvalidCharacters IssueKind = "InvalidCharacters"
	KindReservedName      IssueKind = "ReservedName"
	KindBlockedPattern    IssueKind = "BlockedPattern"
	KindBlockedPrefix     IssueKind = "BlockedPrefix"
	KindBlockedFileType   IssueKind = "BlockedFileType"
	KindProblematicFile   IssueKind = "ProblematicFile"
	KindFileSize          IssueKind = "FileSize"
	KindNameConflict      IssueKind = "NameConflict"
	KindHiddenItem        IssueKind = "HiddenItem"
	KindSystemItem        IssueKind = "SystemItem"
)

// Issue is one compatibility finding for one item. Issues are immutable once built.
type Issue struct {
	Severity      Severity  `json:"severity"`
	Kind          IssueKind `json:"kind"`
	Category      string    `json:"category,omitempty"`
	Path          string    `json:"path"`
	RelativePath  string    `json:"relativePath"`
	Name          string    `json:"name"`
	IsDir         bool      `json:"isDir"`
	Size          int64     `json:"size,omitempty"`
	Description   string    `json:"description"`
	Remediation   string    `json:"remediation,omitempty"`
	ConflictsWith string    `json:"conflictsWith,omitempty"`
}

// ItemType returns "Folder" or "File" for report columns.
func (i Issue) ItemType() string {
	if i.IsDir {
		return "Folder"
	}

	return "File"
}

// NewIssue fills the item-derived fields of an issue.
func NewIssue(item *Item, kind IssueKind, severity Severity, category, description, remediation string) Issue {
	issue := Issue{
		Severity:     severity,
		Kind:         kind,
		Category:     category,
		Path:         item.Path,
		RelativePath: item.RelPath,
		Name:         item.Name,
		IsDir:        item.IsDir,
		Description:  description,
		Remediation:  remediation,
	}

	if !item.IsDir {
		issue.Size = item.Size
	}

	return issue
}
