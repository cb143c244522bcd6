// Package rules evaluates scanned items against destination compatibility
// rules. Every check except name-conflict detection is a pure function of the
// item and a read-only Context, so rules can run on any number of workers.
package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Check names one rule group; names match the config keys used to disable checks.
type Check string

// Rule groups in evaluation order.
const (
	CheckPathLength        Check = "PathLength"
	CheckInvalidCharacters Check = "InvalidCharacters"
	CheckReservedNames     Check = "ReservedNames"
	CheckBlockedFileTypes  Check = "BlockedFileTypes"
	CheckProblematicFiles  Check = "ProblematicFiles"
	CheckFileSize          Check = "FileSize"
	CheckNameConflicts     Check = "NameConflicts"
	CheckHiddenFiles       Check = "HiddenFiles"
)

// AllChecks lists every check in evaluation order.
var AllChecks = []Check{
	CheckPathLength, CheckInvalidCharacters, CheckReservedNames, CheckBlockedFileTypes,
	CheckProblematicFiles, CheckFileSize, CheckNameConflicts, CheckHiddenFiles,
}

// ErrUnknownCheck is returned when a configured check name is not recognised.
var ErrUnknownCheck = errors.New("unknown check")

// ErrInvalidLimits is returned by Context.Validate for impossible limits.
var ErrInvalidLimits = errors.New("invalid rule limits")

// ParseCheck maps a case-insensitive name to a Check.
func ParseCheck(name string) (Check, error) {
	for _, c := range AllChecks {
		if strings.EqualFold(string(c), strings.TrimSpace(name)) {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCheck, name)
}

// Limits are the numeric thresholds the checks compare against.
type Limits struct {
	MaxPathLength      int
	MaxNameLength      int
	WarningPercent     int
	BluebeamPathLength int
	SizeInfo           int64
	SizeWarning        int64
	SizeCritical       int64
}

// DefaultLimits returns the destination platform's documented limits.
func DefaultLimits() Limits {
	return Limits{
		MaxPathLength:      DefaultMaxPathLength,
		MaxNameLength:      DefaultMaxNameLength,
		WarningPercent:     DefaultWarningPercent,
		BluebeamPathLength: DefaultBluebeamPathLength,
		SizeInfo:           DefaultSizeInfo,
		SizeWarning:        DefaultSizeWarning,
		SizeCritical:       DefaultSizeCritical,
	}
}

// WarningPathLength is the total length at which path warnings start.
func (l Limits) WarningPathLength() int {
	return l.MaxPathLength * l.WarningPercent / 100
}

// Context is the read-only input shared by all checks during a scan.
type Context struct {
	// PrefixLength is the encoded length of the destination URL prefix.
	PrefixLength int
	Limits       Limits
	Tables       *Tables

	disabled map[Check]bool
}

// NewContext builds a context with the default tables and every check enabled.
func NewContext(prefixLength int, limits Limits) *Context {
	return &Context{
		PrefixLength: prefixLength,
		Limits:       limits,
		Tables:       DefaultTables(),
		disabled:     make(map[Check]bool),
	}
}

// Disable turns off the given checks.
func (c *Context) Disable(checks ...Check) {
	for _, check := range checks {
		c.disabled[check] = true
	}
}

// Enabled reports whether a check runs.
func (c *Context) Enabled(check Check) bool {
	return !c.disabled[check]
}

// Validate rejects limits that would make every item fail or pass.
func (c *Context) Validate() error {
	l := c.Limits

	switch {
	case l.MaxPathLength <= 0:
		return fmt.Errorf("%w: max path length %d", ErrInvalidLimits, l.MaxPathLength)
	case l.MaxNameLength <= 0:
		return fmt.Errorf("%w: max name length %d", ErrInvalidLimits, l.MaxNameLength)
	case l.WarningPercent <= 0 || l.WarningPercent > 100:
		return fmt.Errorf("%w: warning percent %d", ErrInvalidLimits, l.WarningPercent)
	case c.PrefixLength >= l.MaxPathLength:
		return fmt.Errorf("%w: destination prefix %d leaves no room for paths", ErrInvalidLimits, c.PrefixLength)
	}

	return nil
}
