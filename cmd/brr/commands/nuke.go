package commands

import (
	"github.com/spf13/cobra"

	"github.com/joncarter1/brr/cmd/brr/handlers"
)

// Nuke returns the command that destroys every resource the tool ever
// created on a provider, across all clusters and regions.
func Nuke() *cobra.Command {
	var configPath, provider string
	var regions []string
	var force, dryRun bool

	cmd := &cobra.Command{
		Use:   "nuke",
		Short: "Destroy every resource this tool created on the provider",
		Long: `Discover and destroy all instances, volumes, key pairs, and networks
this tool ever created on the configured provider, across every region.

Discovery runs first and the full list is shown before anything is
destroyed. Unless --force is given, destruction requires typing the
provider name to confirm. Every deletion's outcome is reported
individually; a failed deletion never stops the others.

Examples:
  # See what would be destroyed
  brr nuke --dry-run

  # Destroy everything in two regions without prompting
  brr nuke --region us-east-1 --region eu-west-1 --force

WARNING: This operation is irreversible and ignores cluster boundaries.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Nuke(cmd.Context(), cmd.OutOrStdout(), handlers.NukeOptions{
				ConfigPath: configPath,
				Provider:   provider,
				Regions:    regions,
				Force:      force,
				DryRun:     dryRun,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: brr.yaml)")
	cmd.Flags().StringVar(&provider, "provider", "", "Provider to sweep (default: the configured one)")
	cmd.Flags().StringArrayVar(&regions, "region", nil, "Limit to a region (repeatable; default: all regions)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List resources without destroying them")

	return cmd
}
