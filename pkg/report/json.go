package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

var errBadHeader = errors.New("result header is not a JSON object")

// JSON renders the full result as one JSON object. Issues are streamed one
// at a time so a result backed by an issue log is never loaded whole.
type JSON struct{}

// NewJSON creates a JSON renderer.
func NewJSON() *JSON {
	return &JSON{}
}

// Extension implements Renderer.
func (*JSON) Extension() string {
	return ".json"
}

// jsonHeader drops the in-memory issue slice; the streamed array replaces it.
type jsonHeader struct {
	*model.ScanResult

	Issues json.RawMessage `json:"issues,omitempty"`
}

// Render implements Renderer.
func (*JSON) Render(w io.Writer, res *model.ScanResult) error {
	head, err := json.Marshal(jsonHeader{ScanResult: res})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	head = bytes.TrimSpace(head)
	if len(head) < 2 || head[len(head)-1] != '}' {
		return errBadHeader
	}

	bw := bufio.NewWriter(w)

	_, _ = bw.Write(head[:len(head)-1])
	_, _ = bw.WriteString(`,"issues":[`)

	first := true

	var encErr error

	err = Issues(res, func(issue *model.Issue) bool {
		line, mErr := json.Marshal(issue)
		if mErr != nil {
			encErr = fmt.Errorf("encode issue %s: %w", issue.Path, mErr)

			return false
		}

		if !first {
			_ = bw.WriteByte(',')
		}

		first = false

		_, _ = bw.Write(line)

		return true
	})
	if err == nil {
		err = encErr
	}

	if err != nil {
		return err
	}

	_, _ = bw.WriteString("]}\n")

	return bw.Flush()
}
