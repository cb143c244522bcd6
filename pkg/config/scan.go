package config

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/prescan/pkg/scanner"
)

// ScannerConfig converts the configuration into a scanner.Config for root.
// An empty root uses scan.path.
func (c *Config) ScannerConfig(root string) (scanner.Config, error) {
	if root == "" {
		root = c.Scan.Path
	}

	limits, err := c.limits()
	if err != nil {
		return scanner.Config{}, err
	}

	disabled, err := c.disabledChecks()
	if err != nil {
		return scanner.Config{}, err
	}

	budget, err := parseSize("scan.memory_budget", c.Scan.MemoryBudget)
	if err != nil {
		return scanner.Config{}, err
	}

	sc := scanner.DefaultConfig(root)
	sc.Destination = strings.TrimSpace(c.Scan.Destination)
	sc.PrefixLength = c.Scan.DestinationPrefixLength
	sc.Limits = limits
	sc.DisabledChecks = disabled
	sc.Exclude = c.Scan.Exclude
	sc.Workers = c.Scan.Workers
	sc.IssueCap = c.Scan.IssueCap
	sc.TopN = c.Scan.TopN
	sc.MaxItems = c.Scan.MaxItems
	sc.MemoryBudget = budget
	sc.OutputDir = c.Output.Dir
	sc.ProgressInterval = c.Scan.ProgressInterval

	sc.Checkpoint.Enabled = c.Checkpoint.Enabled
	sc.Checkpoint.Resume = c.Scan.Resume
	sc.Checkpoint.Interval = c.Checkpoint.Interval
	sc.Checkpoint.Compress = c.Checkpoint.Compress
	sc.Checkpoint.FolderMapCap = c.Checkpoint.FolderMapCap

	if c.Checkpoint.Dir != "" {
		sc.Checkpoint.Dir = c.Checkpoint.Dir
	}

	if sc.Root == "" {
		return sc, fmt.Errorf("scanner config: %w", scanner.ErrNoRoot)
	}

	return sc, nil
}
