package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/prescan/pkg/config"
)

// scanFlagKeys maps config keys to scan command flags.
var scanFlagKeys = map[string]string{
	"scan.destination":               "destination",
	"scan.destination_prefix_length": "prefix-length",
	"scan.resume":                    "resume",
	"scan.exclude":                   "exclude",
	"scan.workers":                   "workers",
	"scan.issue_cap":                 "issue-cap",
	"scan.max_items":                 "max-items",
	"scan.memory_budget":             "memory-budget",
	"scan.progress_interval":         "progress-interval",
	"rules.path_warning_percent":     "path-warning-percent",
	"rules.disabled":                 "disable",
	"checkpoint.enabled":             "checkpoint",
	"checkpoint.dir":                 "checkpoint-dir",
	"checkpoint.interval":            "checkpoint-interval",
	"checkpoint.compress":            "compress-checkpoint",
	"output.dir":                     "output",
	"output.formats":                 "format",
	"output.no_color":                "no-color",
	"output.no_progress":             "no-progress",
	"logging.level":                  "log-level",
	"logging.format":                 "log-format",
	"telemetry.otlp_endpoint":        "otlp-endpoint",
	"telemetry.metrics_addr":         "metrics-addr",
	"publish.endpoint":               "publish-endpoint",
	"publish.bucket":                 "publish-bucket",
	"publish.prefix":                 "publish-prefix",
}

// registerScanFlags defines the scan flags. Defaults shown in help mirror the
// config defaults; only flags the user sets override other sources.
func registerScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.String("destination", "", "SharePoint destination URL; its encoded length counts against the path limit")
	f.Int("prefix-length", config.DefaultPrefixLength, "Destination prefix length override (-1 = derive from --destination)")
	f.Bool("resume", config.DefaultResume, "Resume from a matching checkpoint if available")
	f.StringSlice("exclude", nil, "Folder names or globs to skip (replaces the default list)")
	f.Int("workers", config.DefaultWorkers, "Rule workers (0 = min(CPU count, 8))")
	f.Int("issue-cap", config.DefaultIssueCap, "Issues kept in memory; the rest are streamed to the issue log")
	f.Int64("max-items", config.DefaultMaxItems, "Stop after this many items (0 = unlimited)")
	f.String("memory-budget", config.DefaultMemoryBudget, "Memory budget (e.g. '512MB', '2GiB'; empty = GOMEMLIMIT)")
	f.Duration("progress-interval", config.DefaultProgressInterval, "Progress refresh period")
	f.Int("path-warning-percent", config.DefaultPathWarningPercent, "Percent of the path limit at which warnings start")
	f.StringSlice("disable", nil, "Checks to disable (e.g. HiddenFiles,NameConflicts)")

	f.Bool("checkpoint", config.DefaultCheckpointEnabled, "Enable checkpointing for crash recovery")
	f.String("checkpoint-dir", config.DefaultCheckpointDir, "Checkpoint directory (default: ~/.prescan/checkpoints)")
	f.Int("checkpoint-interval", config.DefaultCheckpointInterval, "Items between checkpoints")
	f.Bool("compress-checkpoint", config.DefaultCheckpointCompress, "Write lz4-compressed checkpoints")

	f.StringP("output", "o", config.DefaultOutputDir, "Report and issue log directory")
	f.StringSlice("format", config.DefaultFormats, "Report formats: json, csv")
	f.Bool("no-color", config.DefaultNoColor, "Disable colored output")
	f.Bool("no-progress", false, "Disable the progress line")

	f.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	f.String("log-format", config.DefaultLogFormat, "Log format: text, json")
	f.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces and metrics")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address during the scan (e.g. ':9090')")

	f.String("publish-endpoint", "", "S3-compatible endpoint to upload reports to")
	f.String("publish-bucket", "", "Bucket for uploaded reports")
	f.String("publish-prefix", "", "Object key prefix for uploaded reports")
}
