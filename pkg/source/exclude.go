package source

import (
	"path"
	"strings"
)

// DefaultExcludes are platform folders that never belong in a migration.
var DefaultExcludes = []string{"$RECYCLE.BIN", "System Volume Information", "RECYCLER", ".Trash-*"}

// Excluder matches directory names case-insensitively against names or glob patterns.
type Excluder struct {
	names    map[string]struct{}
	patterns []string
}

// NewExcluder builds an excluder. Entries containing glob metacharacters are
// treated as patterns.
func NewExcluder(entries []string) *Excluder {
	e := &Excluder{names: make(map[string]struct{}, len(entries))}

	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}

		if strings.ContainsAny(entry, "*?[") {
			e.patterns = append(e.patterns, entry)

			continue
		}

		e.names[entry] = struct{}{}
	}

	return e
}

// Match reports whether a directory with this name is excluded.
func (e *Excluder) Match(name string) bool {
	if e == nil {
		return false
	}

	lower := strings.ToLower(name)
	if _, ok := e.names[lower]; ok {
		return true
	}

	for _, p := range e.patterns {
		if ok, err := path.Match(p, lower); err == nil && ok {
			return true
		}
	}

	return false
}
