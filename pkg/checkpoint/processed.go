package checkpoint

import (
	"sort"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// ProcessedSet records directories whose whole subtree has been handled.
//
// Only maximal directories are kept: completing a directory absorbs its
// completed children, so the set stays proportional to the open part of the
// walk. It is not safe for concurrent use.
type ProcessedSet struct {
	members  map[string]struct{}
	byParent map[string][]string
}

// NewProcessedSet returns an empty set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{
		members:  make(map[string]struct{}),
		byParent: make(map[string][]string),
	}
}

// Complete marks dir processed, absorbing its processed children.
// It reports false when dir was already covered.
func (p *ProcessedSet) Complete(dir string) bool {
	if p.Contains(dir) {
		return false
	}

	for _, child := range p.byParent[dir] {
		delete(p.members, child)
	}

	delete(p.byParent, dir)

	p.members[dir] = struct{}{}
	parent := model.ParentOf(dir)
	p.byParent[parent] = append(p.byParent[parent], dir)

	return true
}

// Contains reports whether dir or one of its ancestors is processed.
func (p *ProcessedSet) Contains(dir string) bool {
	for d := dir; d != ""; d = model.ParentOf(d) {
		if _, ok := p.members[d]; ok {
			return true
		}
	}

	return false
}

// Len returns the number of stored directories.
func (p *ProcessedSet) Len() int {
	return len(p.members)
}

// List returns the stored directories sorted.
func (p *ProcessedSet) List() []string {
	out := make([]string, 0, len(p.members))
	for d := range p.members {
		out = append(out, d)
	}

	sort.Strings(out)

	return out
}

// Restore rebuilds the set from List output.
func (p *ProcessedSet) Restore(dirs []string) {
	for _, d := range dirs {
		p.Complete(d)
	}
}
