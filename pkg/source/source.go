// Package source enumerates the items of a scan root in a deterministic
// order and records them in an append-only enumeration log so an interrupted
// scan can continue from a cursor.
package source

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// Sentinel errors.
var (
	// ErrRootInaccessible is returned when the scan root cannot be read.
	ErrRootInaccessible = errors.New("scan root inaccessible")
	// ErrLogChanged is returned by VerifyLog when a log no longer matches its identity.
	ErrLogChanged = errors.New("enumeration log changed")
	// ErrLogCorrupt is returned when a log line cannot be parsed.
	ErrLogCorrupt = errors.New("enumeration log corrupt")
	// ErrLogIncomplete is returned when replay reaches the end of a log without a completion marker.
	ErrLogIncomplete = errors.New("enumeration log incomplete")
)

// EventKind distinguishes the events a Source yields.
type EventKind uint8

// Event kinds.
const (
	// EventItem carries a file or folder.
	EventItem EventKind = iota + 1
	// EventDirDone marks that every descendant of Path has been yielded.
	EventDirDone
	// EventError carries an entry that could not be read.
	EventError
)

// Event is one step of an enumeration.
type Event struct {
	Kind EventKind
	Item model.Item

	// Path is the relative directory for EventDirDone and the relative path of
	// the failing entry for EventError.
	Path string
	Err  model.EnumerationError

	// start and end are the event's enumeration-log byte range.
	start int64
	end   int64
}

// Cursor is a resumable position in an enumeration.
type Cursor struct {
	// Line counts events consumed.
	Line int64 `json:"line"`
	// Offset is the enumeration-log byte offset just past the last consumed event.
	Offset int64 `json:"offset"`
	// LastPath is the relative path of the last item or completed directory.
	LastPath string `json:"lastPath,omitempty"`
	// LastDone is set when LastPath names a completed directory rather than an item.
	LastDone bool `json:"lastDone,omitempty"`
	// GroupOffset is the log offset of the first item sharing LastPath's parent.
	GroupOffset int64 `json:"groupOffset,omitempty"`
}

// IsZero reports whether the cursor is at the very beginning.
func (c Cursor) IsZero() bool {
	return c.Line == 0 && c.LastPath == ""
}

// Source yields enumeration events in order.
type Source interface {
	// Next returns the next event, or io.EOF when enumeration is finished.
	Next(ctx context.Context) (Event, error)
	// Cursor returns the position after the last event returned by Next.
	Cursor() Cursor
	// Sync makes everything up to Cursor durable.
	Sync() error
	// Close releases resources. It does not mark the enumeration complete.
	Close() error
}

// LogCompleter is implemented by sources that record or replay an
// enumeration log.
type LogCompleter interface {
	// LogComplete reports whether the log durably holds the whole enumeration.
	LogComplete() bool
}

// SkipFunc receives items that precede a resume cursor within the cursor's
// sibling group, so stateful checks can be rebuilt.
type SkipFunc func(item *model.Item)

// tracker keeps cursor bookkeeping shared by the walker and the replayer.
type tracker struct {
	cur        Cursor
	lastParent string
	hasParent  bool
}

func newTracker(c Cursor) tracker {
	t := tracker{cur: c}
	if c.LastPath != "" && !c.LastDone {
		t.lastParent = model.ParentOf(c.LastPath)
		t.hasParent = true
	}

	return t
}

// advance records ev, whose log line started at lineStart and ended at lineEnd.
func (t *tracker) advance(ev *Event, lineStart, lineEnd int64) {
	t.cur.Line++
	t.cur.Offset = lineEnd

	switch ev.Kind {
	case EventItem:
		parent := ev.Item.Parent()
		if !t.hasParent || parent != t.lastParent {
			t.cur.GroupOffset = lineStart
			t.lastParent = parent
			t.hasParent = true
		}

		t.cur.LastPath = ev.Item.RelPath
		t.cur.LastDone = false
	case EventDirDone:
		t.cur.LastPath = ev.Path
		t.cur.LastDone = true
		t.hasParent = false
	case EventError:
	}
}
