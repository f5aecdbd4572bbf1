package commands

import (
	"github.com/spf13/cobra"

	"github.com/joncarter1/brr/cmd/brr/handlers"
)

// Down returns the command that scales the cluster to zero.
func Down() *cobra.Command {
	var configPath string
	var deleteAll bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop the cluster's instances",
		Long: `Scale the cluster to zero nodes.

With cache_stopped enabled in the configuration, instances are stopped
and retained so a later 'brr up' resumes them with the same identity and
addresses. Without it, or with --delete, they are terminated. Use
'brr clean' to destroy retained instances as well.

Example:
  brr down -c brr.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deleteAll {
				return handlers.Clean(cmd.Context(), configPath)
			}
			return handlers.Down(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: brr.yaml)")
	cmd.Flags().BoolVar(&deleteAll, "delete", false, "Terminate instances instead of stopping them")

	return cmd
}
