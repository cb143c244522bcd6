// Package checkpoint persists scan progress so an interrupted scan can resume
// without revalidating processed items or losing issues.
package checkpoint

import (
	"time"

	"github.com/Sumatoshi-tech/prescan/pkg/aggregate"
	"github.com/Sumatoshi-tech/prescan/pkg/issuestore"
	"github.com/Sumatoshi-tech/prescan/pkg/source"
)

// SchemaVersion is the current checkpoint record version. Records with a
// newer version are rejected.
const SchemaVersion = 1

// Record is everything needed to resume a scan.
type Record struct {
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	ScanID      string    `json:"scanId"`
	SourceRoot  string    `json:"sourceRoot"`
	Destination string    `json:"destination,omitempty"`
	StartTime   time.Time `json:"startTime"`

	Aggregate   aggregate.Snapshot  `json:"aggregate"`
	Processed   []string            `json:"processed,omitempty"`
	Enumeration source.Position     `json:"enumeration"`
	IssueLog    issuestore.Position `json:"issueLog"`

	ConflictCheckDisabled bool `json:"conflictCheckDisabled,omitempty"`
}

// State is the checkpoint lifecycle of one scan.
type State int

// Lifecycle states.
const (
	StateIdle State = iota
	StateActive
	StateCheckpointed
	StateCompleted
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCheckpointed:
		return "checkpointed"
	case StateCompleted:
		return "completed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}
