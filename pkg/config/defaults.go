package config

import (
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/prescan/pkg/aggregate"
	"github.com/Sumatoshi-tech/prescan/pkg/issuestore"
	"github.com/Sumatoshi-tech/prescan/pkg/rules"
	"github.com/Sumatoshi-tech/prescan/pkg/scanner"
	"github.com/Sumatoshi-tech/prescan/pkg/source"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Scan defaults.
const (
	DefaultScanPath         = "."
	DefaultPrefixLength     = scanner.DerivePrefixLength
	DefaultResume           = true
	DefaultWorkers          = 0
	DefaultIssueCap         = issuestore.DefaultCap
	DefaultTopN             = aggregate.DefaultTopN
	DefaultMaxItems         = 0
	DefaultMemoryBudget     = "" // derived from GOMEMLIMIT or system memory
	DefaultProgressInterval = scanner.DefaultProgressInterval
)

// Rules defaults.
const (
	DefaultMaxPathLength      = rules.DefaultMaxPathLength
	DefaultMaxNameLength      = rules.DefaultMaxNameLength
	DefaultPathWarningPercent = rules.DefaultWarningPercent
	DefaultBluebeamPathLength = rules.DefaultBluebeamPathLength
	DefaultSizeInfo           = "5GiB"
	DefaultSizeWarning        = "15000MiB"
	DefaultSizeCritical       = "250GiB"
)

// Checkpoint defaults.
const (
	DefaultCheckpointEnabled  = true
	DefaultCheckpointDir      = ""
	DefaultCheckpointInterval = scanner.DefaultCheckpointInterval
	DefaultCheckpointCompress = false
	DefaultFolderMapCap       = aggregate.DefaultFolderMapCap
)

// Output defaults.
const (
	DefaultOutputDir = "."
	DefaultNoColor   = false
)

// Logging and telemetry defaults.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = LogFormatText
	DefaultSampleRatio = 1.0
)

// DefaultFormats are the reports written after a scan.
var DefaultFormats = []string{FormatJSON}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("scan.path", DefaultScanPath)
	v.SetDefault("scan.destination", "")
	v.SetDefault("scan.destination_prefix_length", DefaultPrefixLength)
	v.SetDefault("scan.resume", DefaultResume)
	v.SetDefault("scan.exclude", source.DefaultExcludes)
	v.SetDefault("scan.workers", DefaultWorkers)
	v.SetDefault("scan.issue_cap", DefaultIssueCap)
	v.SetDefault("scan.top_n", DefaultTopN)
	v.SetDefault("scan.max_items", DefaultMaxItems)
	v.SetDefault("scan.memory_budget", DefaultMemoryBudget)
	v.SetDefault("scan.progress_interval", DefaultProgressInterval)

	v.SetDefault("rules.max_path_length", DefaultMaxPathLength)
	v.SetDefault("rules.max_name_length", DefaultMaxNameLength)
	v.SetDefault("rules.path_warning_percent", DefaultPathWarningPercent)
	v.SetDefault("rules.bluebeam_path_length", DefaultBluebeamPathLength)
	v.SetDefault("rules.size_info", DefaultSizeInfo)
	v.SetDefault("rules.size_warning", DefaultSizeWarning)
	v.SetDefault("rules.size_critical", DefaultSizeCritical)
	v.SetDefault("rules.disabled", []string{})

	v.SetDefault("checkpoint.enabled", DefaultCheckpointEnabled)
	v.SetDefault("checkpoint.dir", DefaultCheckpointDir)
	v.SetDefault("checkpoint.interval", DefaultCheckpointInterval)
	v.SetDefault("checkpoint.compress", DefaultCheckpointCompress)
	v.SetDefault("checkpoint.folder_map_cap", DefaultFolderMapCap)

	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("output.formats", DefaultFormats)
	v.SetDefault("output.no_color", DefaultNoColor)
	v.SetDefault("output.no_progress", false)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	v.SetDefault("telemetry.environment", "")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_headers", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	v.SetDefault("telemetry.metrics_addr", "")

	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.access_key", "")
	v.SetDefault("publish.secret_key", "")
	v.SetDefault("publish.use_ssl", true)
}
