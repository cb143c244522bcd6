package scanner

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/prescan/pkg/aggregate"
	"github.com/Sumatoshi-tech/prescan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/prescan/pkg/issuestore"
	"github.com/Sumatoshi-tech/prescan/pkg/rules"
	"github.com/Sumatoshi-tech/prescan/pkg/source"
)

// Defaults.
const (
	// DerivePrefixLength makes the scanner compute the prefix length from Destination.
	DerivePrefixLength = -1

	DefaultMaxWorkers         = 8
	DefaultCheckpointInterval = 500
	DefaultProgressInterval   = 500 * time.Millisecond
)

// ErrNoRoot is returned by New when no scan root is configured.
var ErrNoRoot = errors.New("scan root not set")

// Progress is a point-in-time view of a running scan.
type Progress struct {
	Items             int64
	Files             int64
	Folders           int64
	Bytes             int64
	Issues            int64
	EnumerationErrors int64
	CurrentPath       string
	Elapsed           time.Duration
}

// CheckpointConfig controls checkpointing and resume.
type CheckpointConfig struct {
	Enabled bool
	// Dir is the base directory; each source root gets its own subdirectory.
	Dir string
	// Interval is the number of items between checkpoints.
	Interval int
	// Resume continues from an existing checkpoint when one matches.
	Resume bool
	// Compress writes the record lz4-framed.
	Compress bool
	// FolderMapCap bounds the live folder sizes stored per record.
	FolderMapCap int
}

// Config describes one scan.
type Config struct {
	Root        string
	Destination string
	// PrefixLength is the encoded destination prefix length, or
	// DerivePrefixLength to compute it from Destination.
	PrefixLength   int
	Limits         rules.Limits
	DisabledChecks []rules.Check
	Exclude        []string

	Workers  int
	IssueCap int
	TopN     int
	// MaxItems stops enumeration after this many items; 0 is unlimited.
	MaxItems int64
	// MemoryBudget in bytes; 0 falls back to GOMEMLIMIT, then to a share of
	// system memory (memwatch.DefaultBudgetRatio).
	MemoryBudget int64

	// OutputDir receives the issue log. Empty keeps it next to the checkpoint,
	// or in memory only when checkpointing is off.
	OutputDir string

	ProgressInterval time.Duration
	OnProgress       func(Progress)

	Checkpoint CheckpointConfig
}

// DefaultConfig returns the configuration of a checkpointed scan of root.
func DefaultConfig(root string) Config {
	return Config{
		Root:             root,
		PrefixLength:     DerivePrefixLength,
		Limits:           rules.DefaultLimits(),
		Exclude:          slices.Clone(source.DefaultExcludes),
		Workers:          DefaultWorkers(),
		IssueCap:         issuestore.DefaultCap,
		TopN:             aggregate.DefaultTopN,
		ProgressInterval: DefaultProgressInterval,
		Checkpoint: CheckpointConfig{
			Enabled:      true,
			Dir:          checkpoint.DefaultDir(),
			Interval:     DefaultCheckpointInterval,
			Resume:       true,
			FolderMapCap: aggregate.DefaultFolderMapCap,
		},
	}
}

// DefaultWorkers is min(NumCPU, DefaultMaxWorkers).
func DefaultWorkers() int {
	return min(runtime.NumCPU(), DefaultMaxWorkers)
}

// ruleContext builds and validates the rule context.
func (c *Config) ruleContext() (*rules.Context, error) {
	prefix := c.PrefixLength
	if prefix < 0 {
		prefix = rules.DestinationLength(c.Destination)
	}

	rc := rules.NewContext(prefix, c.Limits)
	rc.Disable(c.DisabledChecks...)

	err := rc.Validate()
	if err != nil {
		return nil, fmt.Errorf("rule context: %w", err)
	}

	return rc, nil
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers()
	}

	if c.Checkpoint.Interval <= 0 {
		c.Checkpoint.Interval = DefaultCheckpointInterval
	}

	if c.Checkpoint.Dir == "" {
		c.Checkpoint.Dir = checkpoint.DefaultDir()
	}

	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
}
