package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

var csvHeader = []string{
	"Path", "RelativePath", "Type", "Severity", "Issue", "Category",
	"Size", "Description", "Remediation", "ConflictsWith",
}

// CSV renders one row per issue in emission order.
type CSV struct{}

// NewCSV creates a CSV renderer.
func NewCSV() *CSV {
	return &CSV{}
}

// Extension implements Renderer.
func (*CSV) Extension() string {
	return ".csv"
}

// Render implements Renderer.
func (*CSV) Render(w io.Writer, res *model.ScanResult) error {
	cw := csv.NewWriter(w)

	err := cw.Write(csvHeader)
	if err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	var rowErr error

	err = Issues(res, func(issue *model.Issue) bool {
		rowErr = cw.Write([]string{
			issue.Path,
			issue.RelativePath,
			issue.ItemType(),
			string(issue.Severity),
			string(issue.Kind),
			issue.Category,
			strconv.FormatInt(issue.Size, 10),
			issue.Description,
			issue.Remediation,
			issue.ConflictsWith,
		})

		return rowErr == nil
	})
	if err == nil {
		err = rowErr
	}

	if err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}

	cw.Flush()

	return cw.Error()
}
