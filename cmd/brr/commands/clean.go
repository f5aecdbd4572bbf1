package commands

import (
	"github.com/spf13/cobra"

	"github.com/joncarter1/brr/cmd/brr/handlers"
)

// Clean returns the command that terminates all of one cluster's
// instances, including cached stopped ones.
func Clean() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Terminate all of the cluster's instances",
		Long: `Terminate every instance belonging to the cluster, including stopped
instances retained by the cache policy. The cluster's ssh alias is
removed.

Example:
  brr clean -c brr.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Clean(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: brr.yaml)")

	return cmd
}
