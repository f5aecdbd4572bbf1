// Package main is the entry point for the brr CLI.
//
// brr manages the lifecycle of cloud compute instances backing an
// autoscaled cluster: it reconciles a desired node count against the
// provider, caches stopped instances for cheap restarts, keeps the local
// ssh config pointing at the cluster head, and can tear down everything
// it ever created.
//
// Commands: up, down, clean, list, nuke.
//
// For detailed usage information, run:
//
//	brr --help
package main

import (
	"fmt"
	"os"

	"github.com/joncarter1/brr/cmd/brr/commands"

	// Provider adapters register themselves at init time.
	_ "github.com/joncarter1/brr/internal/cloud/awsec2"
	_ "github.com/joncarter1/brr/internal/cloud/hetzner"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
