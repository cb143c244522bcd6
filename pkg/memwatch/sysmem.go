package memwatch

import (
	"bytes"
	"os"
	"runtime"
	"strconv"

	"github.com/Sumatoshi-tech/prescan/pkg/units"
)

// DefaultBudgetRatio is the percentage of system memory used as the budget
// when none is configured.
const DefaultBudgetRatio = 50

// DefaultBudgetCap is the largest budget derived from system memory.
const DefaultBudgetCap = 4 * units.GiB

// minMemInfoFields is the minimum number of fields in a /proc/meminfo line
// (e.g. "MemTotal: 16384 kB" has 3 fields).
const minMemInfoFields = 2

const (
	procMemInfoPath = "/proc/meminfo"
	memTotalPrefix  = "MemTotal:"
	memTotalUnitKiB = "kB"
)

// SystemMemory returns the total system memory in bytes, 0 when unknown.
func SystemMemory() int64 {
	if runtime.GOOS != "linux" {
		return 0
	}

	memInfo, err := os.ReadFile(procMemInfoPath)
	if err != nil {
		return 0
	}

	return parseMemTotal(memInfo)
}

// budgetFromTotal returns min(DefaultBudgetRatio% of total, DefaultBudgetCap),
// or 0 when total is unknown.
func budgetFromTotal(total int64) int64 {
	if total <= 0 {
		return 0
	}

	return min(total/100*DefaultBudgetRatio, DefaultBudgetCap)
}

func parseMemTotal(memInfo []byte) int64 {
	for line := range bytes.SplitSeq(memInfo, []byte{'\n'}) {
		if !bytes.HasPrefix(line, []byte(memTotalPrefix)) {
			continue
		}

		fields := bytes.Fields(line)
		if len(fields) < minMemInfoFields {
			return 0
		}

		total, err := strconv.ParseInt(string(fields[1]), 10, 64)
		if err != nil || total < 0 {
			return 0
		}

		if len(fields) > minMemInfoFields && string(fields[2]) == memTotalUnitKiB {
			return total * units.KiB
		}

		return total
	}

	return 0
}
