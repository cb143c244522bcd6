package rules

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/units"
)

// Category labels for issues that are not produced by a table rule.
const (
	CategoryPathLength     = "Path Length"
	CategoryNameLength     = "Name Length"
	CategoryInvalidChars   = "Invalid Characters"
	CategoryReservedName   = "Reserved Name"
	CategoryBlockedPattern = "Blocked Pattern"
	CategoryBlockedPrefix  = "Blocked Prefix"
	CategoryFileSize       = "File Size"
	CategoryNameConflict   = "Name Conflict"
	CategoryHidden         = "Hidden"
	CategorySystem         = "System"
	CategoryBluebeam       = "Bluebeam"
	CategoryOther          = "Other"
)

func checkPathLength(item *model.Item, c *Context, out []model.Issue) []model.Issue {
	total := c.PrefixLength + EncodedLength(item.RelPath)
	limit := c.Limits.MaxPathLength

	switch {
	case total > limit:
		out = append(out, model.NewIssue(item, model.KindPathTooLong, model.SeverityCritical, CategoryPathLength,
			fmt.Sprintf("Path is %d characters after encoding, exceeding the %d character limit.", total, limit),
			"Shorten folder or file names, or flatten the folder structure."))
	case total >= c.Limits.WarningPathLength():
		out = append(out, model.NewIssue(item, model.KindPathTooLong, model.SeverityWarning, CategoryPathLength,
			fmt.Sprintf("Path is %d characters after encoding, %d%% of the %d character limit.",
				total, total*100/limit, limit),
			"Consider shortening names to leave room for renames in the destination."))
	}

	if n := utf8.RuneCountInString(item.Name); n > c.Limits.MaxNameLength {
		out = append(out, model.NewIssue(item, model.KindNameTooLong, model.SeverityCritical, CategoryNameLength,
			fmt.Sprintf("Name is %d characters, exceeding the %d character limit.", n, c.Limits.MaxNameLength),
			"Shorten the name."))
	}

	return out
}

func checkInvalidCharacters(item *model.Item, c *Context, out []model.Issue) []model.Issue {
	var found []string

	seen := make(map[rune]bool)

	for _, r := range item.Name {
		if _, bad := c.Tables.invalid[r]; bad && !seen[r] {
			seen[r] = true
			found = append(found, string(r))
		}
	}

	if len(found) == 0 {
		return out
	}

	return append(out, model.NewIssue(item, model.KindInvalidCharacters, model.SeverityCritical, CategoryInvalidChars,
		fmt.Sprintf("Name contains characters that are not allowed: %s", strings.Join(found, " ")),
		"Remove or replace the invalid characters."))
}

func checkReservedNames(item *model.Item, c *Context, out []model.Issue) []model.Issue {
	upper := strings.ToUpper(item.Name)

	reserved := c.Tables.isReserved(upper)
	if !reserved && !item.IsDir {
		stem := strings.TrimSuffix(upper, strings.ToUpper(path.Ext(item.Name)))
		reserved = stem != "" && c.Tables.isReserved(stem)
	}

	if !reserved && item.IsDir && item.Parent() == "" {
		_, reserved = c.Tables.rootBlocked[upper]
	}

	if reserved {
		out = append(out, model.NewIssue(item, model.KindReservedName, model.SeverityCritical, CategoryReservedName,
			fmt.Sprintf("'%s' is a reserved name.", item.Name),
			"Rename the item."))
	}

	lower := strings.ToLower(item.Name)

	for _, pattern := range BlockedPatterns {
		if strings.Contains(lower, pattern) {
			out = append(out, model.NewIssue(item, model.KindBlockedPattern, model.SeverityCritical, CategoryBlockedPattern,
				fmt.Sprintf("Name contains the blocked pattern '%s'.", pattern),
				"Rename the item to remove the pattern."))

			break
		}
	}

	prefixes := BlockedFilePrefixes
	if item.IsDir {
		prefixes = BlockedFolderPrefixes
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(item.Name, prefix) {
			out = append(out, model.NewIssue(item, model.KindBlockedPrefix, model.SeverityCritical, CategoryBlockedPrefix,
				fmt.Sprintf("Name starts with the blocked prefix '%s'.", prefix),
				"Rename the item to remove the prefix."))

			break
		}
	}

	return out
}

func (t *Tables) isReserved(upper string) bool {
	_, ok := t.reserved[upper]

	return ok
}

func checkBlockedFileTypes(item *model.Item, c *Context, out []model.Issue) []model.Issue {
	ext := item.Ext()
	if ext == "" {
		return out
	}

	idx, ok := c.Tables.blocked[ext]
	if !ok {
		return out
	}

	rule := c.Tables.blockedRules[idx]

	return append(out, model.NewIssue(item, model.KindBlockedFileType, rule.Severity, rule.Category,
		fmt.Sprintf("%s (%s)", rule.Description, ext), rule.Remediation))
}

func checkProblematicFiles(item *model.Item, c *Context, out []model.Issue) []model.Issue {
	ext := item.Ext()

	if idx, ok := c.Tables.problematic[ext]; ok && ext != "" {
		rule := c.Tables.probRules[idx]

		if rule.MinSize > 0 && item.Size <= rule.MinSize {
			return out
		}

		severity := rule.Severity
		description := rule.Description

		if rule.EscalateAbove > 0 && item.Size > rule.EscalateAbove {
			severity = model.SeverityCritical
			description = fmt.Sprintf("%s File is %s.", description, units.Bytes(item.Size))
		}

		return append(out, model.NewIssue(item, model.KindProblematicFile, severity, rule.Category,
			description, rule.Remediation))
	}

	if note, ok := c.Tables.other[ext]; ok && ext != "" {
		return append(out, model.NewIssue(item, model.KindProblematicFile, model.SeverityInfo, CategoryOther,
			note, "Check whether the destination supports this file type."))
	}

	lower := strings.ToLower(item.Name)

	for i := range c.Tables.patterns {
		rule := &c.Tables.patterns[i]
		if matchAny(rule.Patterns, lower) {
			return append(out, model.NewIssue(item, model.KindProblematicFile, rule.Severity, rule.Category,
				rule.Description, rule.Remediation))
		}
	}

	if ext == ".pdf" && c.PrefixLength+EncodedLength(item.RelPath) >= c.Limits.BluebeamPathLength {
		return append(out, model.NewIssue(item, model.KindProblematicFile, model.SeverityInfo, CategoryBluebeam,
			fmt.Sprintf("PDF path is at least %d characters; Bluebeam Revu cannot open it from synced libraries.",
				c.Limits.BluebeamPathLength),
			"Shorten the path if the file is edited in Bluebeam."))
	}

	return out
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}

	return false
}

func checkFileSize(item *model.Item, c *Context, out []model.Issue) []model.Issue {
	var severity model.Severity

	var threshold int64

	switch l := c.Limits; {
	case item.Size > l.SizeCritical:
		severity, threshold = model.SeverityCritical, l.SizeCritical
	case item.Size > l.SizeWarning:
		severity, threshold = model.SeverityWarning, l.SizeWarning
	case item.Size > l.SizeInfo:
		severity, threshold = model.SeverityInfo, l.SizeInfo
	default:
		return out
	}

	return append(out, model.NewIssue(item, model.KindFileSize, severity, CategoryFileSize,
		fmt.Sprintf("File is %s, above %s.", units.Bytes(item.Size), units.Bytes(threshold)),
		"Large files upload slowly and may time out; consider splitting or archiving elsewhere."))
}

func checkHidden(item *model.Item, _ *Context, out []model.Issue) []model.Issue {
	if item.Hidden() {
		out = append(out, model.NewIssue(item, model.KindHiddenItem, model.SeverityInfo, CategoryHidden,
			"Hidden items may be skipped or become visible after migration.",
			"Decide whether hidden items should be migrated."))
	}

	if item.Attrs.Has(model.AttrSystem) {
		out = append(out, model.NewIssue(item, model.KindSystemItem, model.SeverityInfo, CategorySystem,
			"System items are usually not meant to be migrated.",
			"Exclude system items from migration."))
	}

	return out
}
