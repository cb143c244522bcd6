// Package config loads the prescan configuration from defaults, an optional
// .prescan.yaml, PRESCAN_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/prescan/pkg/publish"
	"github.com/Sumatoshi-tech/prescan/pkg/rules"
	"github.com/Sumatoshi-tech/prescan/pkg/units"
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("scan.workers must be non-negative")
	// ErrInvalidIssueCap indicates a non-positive issue cap.
	ErrInvalidIssueCap = errors.New("scan.issue_cap must be positive")
	// ErrInvalidTopN indicates a non-positive top-N size.
	ErrInvalidTopN = errors.New("scan.top_n must be positive")
	// ErrInvalidMaxItems indicates a negative item limit.
	ErrInvalidMaxItems = errors.New("scan.max_items must be non-negative")
	// ErrInvalidPrefixLength indicates a prefix length below -1.
	ErrInvalidPrefixLength = errors.New("scan.destination_prefix_length must be -1 or more")
	// ErrInvalidInterval indicates a non-positive checkpoint interval.
	ErrInvalidInterval = errors.New("checkpoint.interval must be positive")
	// ErrInvalidWarningPercent indicates a percentage outside 1..100.
	ErrInvalidWarningPercent = errors.New("rules.path_warning_percent must be between 1 and 100")
	// ErrInvalidLength indicates a non-positive length limit.
	ErrInvalidLength = errors.New("rules length limits must be positive")
	// ErrInvalidSize indicates a size that cannot be parsed.
	ErrInvalidSize = errors.New("invalid size")
	// ErrSizeOrder indicates size thresholds that are not ascending.
	ErrSizeOrder = errors.New("rules sizes must satisfy info <= warning <= critical")
	// ErrUnknownFormat indicates an unsupported report format.
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrInvalidLogFormat indicates an unsupported log format.
	ErrInvalidLogFormat = errors.New("logging.format must be text or json")
	// ErrInvalidSampleRatio indicates a sample ratio outside 0..1.
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
)

// Report formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Formats lists the supported report formats.
var Formats = []string{FormatJSON, FormatCSV}

// Config is the top-level configuration.
// Field tags use mapstructure for viper unmarshalling and yaml for config show.
type Config struct {
	Scan       ScanConfig       `mapstructure:"scan"       yaml:"scan"`
	Rules      RulesConfig      `mapstructure:"rules"      yaml:"rules"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Output     OutputConfig     `mapstructure:"output"     yaml:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"  yaml:"telemetry"`
	Publish    publish.Config   `mapstructure:"publish"    yaml:"publish"`
}

// ScanConfig holds what to scan and how hard.
type ScanConfig struct {
	Path                    string        `mapstructure:"path"                      yaml:"path"`
	Destination             string        `mapstructure:"destination"               yaml:"destination"`
	DestinationPrefixLength int           `mapstructure:"destination_prefix_length" yaml:"destination_prefix_length"`
	Resume                  bool          `mapstructure:"resume"                    yaml:"resume"`
	Exclude                 []string      `mapstructure:"exclude"                   yaml:"exclude"`
	Workers                 int           `mapstructure:"workers"                   yaml:"workers"`
	IssueCap                int           `mapstructure:"issue_cap"                 yaml:"issue_cap"`
	TopN                    int           `mapstructure:"top_n"                     yaml:"top_n"`
	MaxItems                int64         `mapstructure:"max_items"                 yaml:"max_items"`
	MemoryBudget            string        `mapstructure:"memory_budget"             yaml:"memory_budget"`
	ProgressInterval        time.Duration `mapstructure:"progress_interval"         yaml:"progress_interval"`
}

// RulesConfig holds rule thresholds and disabled checks.
type RulesConfig struct {
	MaxPathLength      int      `mapstructure:"max_path_length"      yaml:"max_path_length"`
	MaxNameLength      int      `mapstructure:"max_name_length"      yaml:"max_name_length"`
	PathWarningPercent int      `mapstructure:"path_warning_percent" yaml:"path_warning_percent"`
	BluebeamPathLength int      `mapstructure:"bluebeam_path_length" yaml:"bluebeam_path_length"`
	SizeInfo           string   `mapstructure:"size_info"            yaml:"size_info"`
	SizeWarning        string   `mapstructure:"size_warning"         yaml:"size_warning"`
	SizeCritical       string   `mapstructure:"size_critical"        yaml:"size_critical"`
	Disabled           []string `mapstructure:"disabled"             yaml:"disabled"`
}

// CheckpointConfig holds checkpoint settings.
type CheckpointConfig struct {
	Enabled      bool   `mapstructure:"enabled"        yaml:"enabled"`
	Dir          string `mapstructure:"dir"            yaml:"dir"`
	Interval     int    `mapstructure:"interval"       yaml:"interval"`
	Compress     bool   `mapstructure:"compress"       yaml:"compress"`
	FolderMapCap int    `mapstructure:"folder_map_cap" yaml:"folder_map_cap"`
}

// OutputConfig holds report settings.
type OutputConfig struct {
	Dir        string   `mapstructure:"dir"         yaml:"dir"`
	Formats    []string `mapstructure:"formats"     yaml:"formats"`
	NoColor    bool     `mapstructure:"no_color"    yaml:"no_color"`
	NoProgress bool     `mapstructure:"no_progress" yaml:"no_progress"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	Environment  string  `mapstructure:"environment"   yaml:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"  yaml:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"  yaml:"sample_ratio"`
	MetricsAddr  string  `mapstructure:"metrics_addr"  yaml:"metrics_addr"`
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	scanErr := c.validateScan()
	if scanErr != nil {
		return scanErr
	}

	rulesErr := c.validateRules()
	if rulesErr != nil {
		return rulesErr
	}

	return c.validateOutput()
}

func (c *Config) validateScan() error {
	s := &c.Scan

	switch {
	case s.Workers < 0:
		return ErrInvalidWorkers
	case s.IssueCap <= 0:
		return ErrInvalidIssueCap
	case s.TopN <= 0:
		return ErrInvalidTopN
	case s.MaxItems < 0:
		return ErrInvalidMaxItems
	case s.DestinationPrefixLength < -1:
		return ErrInvalidPrefixLength
	case c.Checkpoint.Interval <= 0:
		return ErrInvalidInterval
	}

	_, err := parseSize("scan.memory_budget", s.MemoryBudget)

	return err
}

func (c *Config) validateRules() error {
	r := &c.Rules

	if r.PathWarningPercent <= 0 || r.PathWarningPercent > 100 {
		return ErrInvalidWarningPercent
	}

	if r.MaxPathLength <= 0 || r.MaxNameLength <= 0 || r.BluebeamPathLength <= 0 {
		return ErrInvalidLength
	}

	_, err := c.limits()
	if err != nil {
		return err
	}

	_, err = c.disabledChecks()

	return err
}

func (c *Config) validateOutput() error {
	for _, f := range c.Output.Formats {
		if !slices.Contains(Formats, strings.ToLower(f)) {
			return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case LogFormatText, LogFormatJSON:
	default:
		return ErrInvalidLogFormat
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	if c.Publish.Enabled() {
		return c.Publish.Validate()
	}

	return nil
}

// limits parses the rule thresholds.
func (c *Config) limits() (rules.Limits, error) {
	r := &c.Rules

	l := rules.Limits{
		MaxPathLength:      r.MaxPathLength,
		MaxNameLength:      r.MaxNameLength,
		WarningPercent:     r.PathWarningPercent,
		BluebeamPathLength: r.BluebeamPathLength,
	}

	var err error

	l.SizeInfo, err = parseSize("rules.size_info", r.SizeInfo)
	if err != nil {
		return l, err
	}

	l.SizeWarning, err = parseSize("rules.size_warning", r.SizeWarning)
	if err != nil {
		return l, err
	}

	l.SizeCritical, err = parseSize("rules.size_critical", r.SizeCritical)
	if err != nil {
		return l, err
	}

	if l.SizeInfo > l.SizeWarning || l.SizeWarning > l.SizeCritical {
		return l, ErrSizeOrder
	}

	return l, nil
}

func (c *Config) disabledChecks() ([]rules.Check, error) {
	checks := make([]rules.Check, 0, len(c.Rules.Disabled))

	for _, name := range c.Rules.Disabled {
		check, err := rules.ParseCheck(name)
		if err != nil {
			return nil, fmt.Errorf("rules.disabled: %w", err)
		}

		checks = append(checks, check)
	}

	return checks, nil
}

// parseSize accepts "" as zero.
func parseSize(key, value string) (int64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}

	n, err := units.Parse(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidSize, key, value, err)
	}

	return n, nil
}
