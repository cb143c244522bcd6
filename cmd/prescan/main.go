// Package main provides the entry point for the prescan CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/prescan/cmd/prescan/commands"
	"github.com/Sumatoshi-tech/prescan/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := commands.NewRootCommand()

	err := rootCmd.ExecuteContext(context.Background())

	code := commands.ExitCode(err)
	if err != nil && code != 0 && err.Error() != "" {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	os.Exit(code)
}
