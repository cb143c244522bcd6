// Package commands implements the prescan CLI commands.
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/prescan/pkg/config"
	"github.com/Sumatoshi-tech/prescan/pkg/scanner"
	"github.com/Sumatoshi-tech/prescan/pkg/version"
)

// ExitError carries a process exit code. A nil Err means the code reports
// the scan outcome rather than a failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}

	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return scanner.ExitClean
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return scanner.ExitFatal
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	quiet      bool
}

// NewRootCommand builds the prescan command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultScanDeps())
}

func newRootCommand(deps scanDeps) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "prescan",
		Short: "Check a file share for SharePoint Online migration readiness",
		Long: `prescan walks a folder tree and reports everything that would block or
complicate a migration to SharePoint Online or OneDrive: path and name
lengths, invalid characters, reserved names, blocked file types, size
limits and case-insensitive name conflicts.

Scans checkpoint their progress and resume automatically after a crash or
Ctrl+C.

Exit codes: 0 clean, 1 warnings, 2 critical issues, 3 fatal error, 130 cancelled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv(config.DotEnvFiles...)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: .prescan.yaml in CWD or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress progress and summary output")

	rootCmd.AddCommand(newScanCommand(opts, deps))
	rootCmd.AddCommand(newConfigCommand(opts))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func exitStatus(code int) error {
	if code == scanner.ExitClean {
		return nil
	}

	return &ExitError{Code: code}
}

func fatal(err error) error {
	return &ExitError{Code: scanner.ExitFatal, Err: err}
}
