package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/prescan/pkg/config"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after defaults, the config file and PRESCAN_*
environment variables are applied. Secrets are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader()

			cfg, err := loader.Load(root.configPath)
			if err != nil {
				return fatal(err)
			}

			out, err := cfg.YAML()
			if err != nil {
				return fatal(err)
			}

			w := cmd.OutOrStdout()

			if file := loader.ConfigFile(); file != "" {
				_, _ = fmt.Fprintf(w, "# config file: %s\n", file)
			}

			_, err = w.Write(out)

			return err
		},
	})

	return cmd
}
