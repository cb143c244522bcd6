package rules

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// ConflictIndex detects siblings whose names differ only by case.
//
// Items must arrive in source order, where the children of one directory are
// contiguous. The index therefore only holds the current sibling group and is
// reset whenever the parent changes. It is not safe for concurrent use.
type ConflictIndex struct {
	parent   string
	seen     map[string]string
	started  bool
	disabled bool
}

// NewConflictIndex returns an empty index.
func NewConflictIndex() *ConflictIndex {
	return &ConflictIndex{seen: make(map[string]string)}
}

// Observe records item and returns a conflict issue when a sibling with the
// same case-folded name was seen before. The first occurrence never conflicts.
func (x *ConflictIndex) Observe(item *model.Item) (model.Issue, bool) {
	if x.disabled {
		return model.Issue{}, false
	}

	parent := item.Parent()
	if !x.started || parent != x.parent {
		x.started = true
		x.parent = parent
		clear(x.seen)
	}

	key := strings.ToLower(item.Name)

	first, dup := x.seen[key]
	if !dup {
		x.seen[key] = item.Path

		return model.Issue{}, false
	}

	issue := model.NewIssue(item, model.KindNameConflict, model.SeverityCritical, CategoryNameConflict,
		fmt.Sprintf("Name conflicts with '%s' when compared case-insensitively.", first),
		"Rename one of the items; the destination treats names case-insensitively.")
	issue.ConflictsWith = first

	return issue, true
}

// Len returns the number of names held for the current sibling group.
func (x *ConflictIndex) Len() int {
	return len(x.seen)
}

// Disable stops conflict detection permanently and releases the index.
func (x *ConflictIndex) Disable() {
	x.disabled = true
	x.seen = make(map[string]string)
}

// Disabled reports whether Disable was called.
func (x *ConflictIndex) Disabled() bool {
	return x.disabled
}
