// Package report renders scan results. Renderers must read issues through
// Issues so that results whose issue list was capped still report every
// issue found.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Sumatoshi-tech/prescan/pkg/issuestore"
	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// FilePrefix starts every report file name.
const FilePrefix = "prescan"

const (
	dirPerm   = 0o750
	stampForm = "20060102-150405"
)

// ErrIssueLogMissing is returned when a result needs its issue log but has none.
var ErrIssueLogMissing = errors.New("issue list truncated and no issue log available")

// Renderer writes a result in one output format.
type Renderer interface {
	Render(w io.Writer, res *model.ScanResult) error
	// Extension is the file extension including the dot.
	Extension() string
}

// Issues calls fn for every issue of res in emission order, streaming the
// issue log when the in-memory list is incomplete. Returning false from fn
// stops early.
func Issues(res *model.ScanResult, fn func(issue *model.Issue) bool) error {
	if !res.NeedsIssueLog() {
		for i := range res.Issues {
			if !fn(&res.Issues[i]) {
				return nil
			}
		}

		return nil
	}

	if res.IssueLogPath == "" {
		return ErrIssueLogMissing
	}

	return issuestore.ReadLog(res.IssueLogPath, fn)
}

// FileName returns the report file name for a result finished at t.
func FileName(r Renderer, t time.Time) string {
	return FilePrefix + "-" + t.Format(stampForm) + r.Extension()
}

// WriteFile renders res into dir and returns the file path. A failed render
// leaves no file behind.
func WriteFile(dir string, r Renderer, res *model.ScanResult) (string, error) {
	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	stamp := res.EndTime
	if stamp.IsZero() {
		stamp = time.Now()
	}

	path := filepath.Join(dir, FileName(r, stamp))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}

	err = r.Render(f, res)
	if err == nil {
		err = f.Close()
	} else {
		_ = f.Close()
	}

	if err != nil {
		_ = os.Remove(path)

		return "", fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}

	return path, nil
}
