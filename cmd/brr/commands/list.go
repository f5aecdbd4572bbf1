package commands

import (
	"github.com/spf13/cobra"

	"github.com/joncarter1/brr/cmd/brr/handlers"
)

// List returns the command that prints the cluster's current instances.
func List() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the cluster's instances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.Context(), cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: brr.yaml)")

	return cmd
}
