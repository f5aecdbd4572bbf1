// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated
// to handler functions in the handlers package.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionInfo = "dev"

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

// Root returns the root command for the brr CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brr",
		Short: "Manage cloud instances backing an autoscaled cluster",
	}

	cmd.AddCommand(Up())
	cmd.AddCommand(Down())
	cmd.AddCommand(Clean())
	cmd.AddCommand(List())
	cmd.AddCommand(Nuke())
	cmd.AddCommand(Version())

	return cmd
}

// Version returns the version command.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(versionInfo)
		},
	}
}
