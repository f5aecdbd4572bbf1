package commands

import (
	"github.com/spf13/cobra"

	"github.com/joncarter1/brr/cmd/brr/handlers"
)

// Up returns the command that brings the cluster to its desired size.
//
// Optional flags:
//
//	--config, -c: Path to cluster configuration YAML file (default: brr.yaml)
//	--workers, -w: Override the configured worker count for this run
func Up() *cobra.Command {
	var configPath string
	var workers int

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create or resume the cluster's instances",
		Long: `Bring the cluster to its configured size.

Stopped instances whose launch configuration still matches are restarted
before anything new is created; instances launched from an outdated
configuration are replaced. Running the command again with no changes
does nothing.

Examples:
  # Bring up the cluster described by brr.yaml
  brr up

  # Temporarily run with 8 workers
  brr up -w 8`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Up(cmd.Context(), configPath, workers)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: brr.yaml)")
	cmd.Flags().IntVarP(&workers, "workers", "w", -1, "Override the configured worker count")

	return cmd
}
