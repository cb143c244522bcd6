package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/prescan/pkg/config"
	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/observability"
	"github.com/Sumatoshi-tech/prescan/pkg/publish"
	"github.com/Sumatoshi-tech/prescan/pkg/report"
	"github.com/Sumatoshi-tech/prescan/pkg/scanner"
	"github.com/Sumatoshi-tech/prescan/pkg/version"
)

const metricsReadHeaderTimeout = 5 * time.Second

// artifactPublisher uploads report files.
type artifactPublisher interface {
	Publish(ctx context.Context, scanID string, files ...string) ([]string, error)
}

// scanDeps are the seams the scan command is tested through.
type scanDeps struct {
	initObservability func(observability.Config) (observability.Providers, error)
	newPublisher      func(publish.Config, *slog.Logger) (artifactPublisher, error)
	signals           []os.Signal
}

func defaultScanDeps() scanDeps {
	return scanDeps{
		initObservability: observability.Init,
		newPublisher: func(cfg publish.Config, logger *slog.Logger) (artifactPublisher, error) {
			return publish.New(cfg, publish.WithLogger(logger))
		},
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

type scanCommand struct {
	root *rootOptions
	deps scanDeps
}

func newScanCommand(root *rootOptions, deps scanDeps) *cobra.Command {
	sc := &scanCommand{root: root, deps: deps}

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a folder tree for migration issues",
		Long: `Scan walks the folder tree, checks every file and folder against the
destination's limits and writes the reports to the output directory.

Interrupting a scan writes a checkpoint; running the same command again
resumes where it stopped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: sc.run,
	}

	registerScanFlags(cmd)

	return cmd
}

func (sc *scanCommand) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()

	err := loader.BindFlags(cmd.Flags(), scanFlagKeys)
	if err != nil {
		return nil, err
	}

	return loader.Load(sc.root.configPath)
}

func observabilityConfig(cfg *config.Config) observability.Config {
	oc := observability.DefaultConfig()
	oc.ServiceVersion = version.Version
	oc.Environment = cfg.Telemetry.Environment
	oc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	oc.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	oc.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	oc.SampleRatio = cfg.Telemetry.SampleRatio
	oc.Prometheus = cfg.Telemetry.MetricsAddr != ""
	oc.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	oc.LogJSON = strings.EqualFold(cfg.Logging.Format, config.LogFormatJSON)

	return oc
}

func (sc *scanCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := sc.loadConfig(cmd)
	if err != nil {
		return fatal(err)
	}

	root := ""
	if len(args) > 0 {
		root = args[0]
	}

	scfg, err := cfg.ScannerConfig(root)
	if err != nil {
		return fatal(err)
	}

	providers, err := sc.deps.initObservability(observabilityConfig(cfg))
	if err != nil {
		return fatal(fmt.Errorf("init observability: %w", err))
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.WithoutCancel(cmd.Context()))
		if shutdownErr != nil {
			providers.Logger.Warn("observability: shutdown failed", "error", shutdownErr)
		}
	}()

	logger := providers.Logger

	stopMetrics, err := serveMetrics(cfg.Telemetry.MetricsAddr, providers.MetricsHandler, logger)
	if err != nil {
		return fatal(err)
	}

	defer stopMetrics()

	metrics, err := observability.NewScanMetrics(providers.Meter)
	if err != nil {
		return fatal(fmt.Errorf("init metrics: %w", err))
	}

	stderr := cmd.ErrOrStderr()
	showProgress := !sc.root.quiet && !cfg.Output.NoProgress

	var line *progressLine
	if showProgress {
		line = newProgressLine(stderr)
		scfg.OnProgress = line.update
	}

	s, err := scanner.New(scfg,
		scanner.WithLogger(logger),
		scanner.WithTracer(providers.Tracer),
		scanner.WithMetrics(metrics),
	)
	if err != nil {
		return fatal(err)
	}

	ctx, stop := sc.scanContext(cmd.Context())
	res, err := s.Scan(ctx)

	stop()

	if line != nil {
		line.finish()
	}

	if err != nil {
		return fatal(err)
	}

	return sc.finish(cmd, cfg, res, logger)
}

// scanContext is cancelled by the configured signals.
func (sc *scanCommand) scanContext(parent context.Context) (context.Context, context.CancelFunc) {
	if len(sc.deps.signals) == 0 {
		return context.WithCancel(parent)
	}

	return signal.NotifyContext(parent, sc.deps.signals...)
}

// finish prints the summary, writes reports and publishes them.
func (sc *scanCommand) finish(cmd *cobra.Command, cfg *config.Config, res *model.ScanResult, logger *slog.Logger) error {
	out := cmd.OutOrStdout()

	if !sc.root.quiet {
		opts := []report.SummaryOption{}
		if cfg.Output.NoColor {
			opts = append(opts, report.WithoutColor())
		}

		err := report.NewSummary(opts...).Render(out, res)
		if err != nil {
			return fatal(fmt.Errorf("render summary: %w", err))
		}
	}

	if res.Status != model.StatusCompleted {
		return exitStatus(scanner.ExitCode(res, nil))
	}

	files, err := writeReports(cfg, res)
	if err != nil {
		return fatal(err)
	}

	for _, f := range files {
		sc.printf(out, "Report saved: %s\n", f)
	}

	if cfg.Publish.Enabled() {
		sc.publish(cmd.Context(), cfg, res, files, logger)
	}

	return exitStatus(scanner.ExitCode(res, nil))
}

func (sc *scanCommand) printf(w io.Writer, format string, args ...any) {
	if sc.root.quiet {
		return
	}

	_, _ = fmt.Fprintf(w, format, args...)
}

func renderers(formats []string) []report.Renderer {
	out := make([]report.Renderer, 0, len(formats))

	for _, f := range formats {
		switch strings.ToLower(f) {
		case config.FormatJSON:
			out = append(out, report.NewJSON())
		case config.FormatCSV:
			out = append(out, report.NewCSV())
		}
	}

	return out
}

func writeReports(cfg *config.Config, res *model.ScanResult) ([]string, error) {
	rs := renderers(cfg.Output.Formats)
	files := make([]string, 0, len(rs))

	for _, r := range rs {
		path, err := report.WriteFile(cfg.Output.Dir, r, res)
		if err != nil {
			return files, err
		}

		files = append(files, path)
	}

	return files, nil
}

// publish uploads the reports and the issue log. Failures are logged; the
// local reports remain the result of the scan.
func (sc *scanCommand) publish(ctx context.Context, cfg *config.Config, res *model.ScanResult, files []string, logger *slog.Logger) {
	p, err := sc.deps.newPublisher(cfg.Publish, logger)
	if err != nil {
		logger.WarnContext(ctx, "publish: disabled", "error", err)

		return
	}

	if res.IssueLogPath != "" {
		files = append(files, res.IssueLogPath)
	}

	keys, err := p.Publish(ctx, res.ScanID, files...)
	if err != nil {
		logger.WarnContext(ctx, "publish: upload failed", "error", err, "uploaded", len(keys))

		return
	}

	logger.InfoContext(ctx, "publish: reports uploaded", "bucket", cfg.Publish.Bucket, "objects", len(keys))
}

// serveMetrics exposes handler on addr until the returned stop is called.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) (func(), error) {
	if addr == "" || handler == nil {
		return func() {}, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: metricsReadHeaderTimeout}

	go func() {
		serveErr := srv.Serve(ln)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics: server stopped", "error", serveErr)
		}
	}()

	logger.Info("metrics: serving", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsReadHeaderTimeout)
		defer cancel()

		_ = srv.Shutdown(ctx)
	}, nil
}
