package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	var showSource bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the effective configuration after merging defaults, config file, and environment variables.`,
		Example: `  # Show effective configuration
  ormql config show

  # Show configuration with source file path
  ormql config show --source`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.config()
			if rootOpts.Format == "json" {
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(map[string]any{
					"config": cfg,
					"source": rootOpts.ConfigFile,
				})
			}

			w := cmd.OutOrStdout()
			if showSource {
				if rootOpts.ConfigFile != "" {
					fmt.Fprintf(w, "Config file: %s\n\n", rootOpts.ConfigFile)
				} else {
					fmt.Fprintln(w, "Config file: (none, using defaults)")
					fmt.Fprintln(w)
				}
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(w, string(out))
			return nil
		},
	}
	show.Flags().BoolVar(&showSource, "source", false, "show config file source")
	cmd.AddCommand(show)

	return cmd
}
