package scanner

import "github.com/Sumatoshi-tech/prescan/pkg/model"

// Process exit codes.
const (
	ExitClean     = 0
	ExitWarnings  = 1
	ExitCritical  = 2
	ExitFatal     = 3
	ExitCancelled = 130
)

// ExitCode maps a scan outcome to a process exit code. Info findings alone
// count as clean.
func ExitCode(res *model.ScanResult, err error) int {
	if err != nil || res == nil {
		return ExitFatal
	}

	if res.Status == model.StatusCancelled {
		return ExitCancelled
	}

	switch res.WorstSeverity() {
	case model.SeverityCritical:
		return ExitCritical
	case model.SeverityWarning:
		return ExitWarnings
	default:
		return ExitClean
	}
}
