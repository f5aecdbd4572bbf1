package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joncarter1/brr/internal/teardown"
)

// stdin is replaceable in tests.
var stdin io.Reader = os.Stdin

// NukeOptions are the nuke command's flags.
type NukeOptions struct {
	ConfigPath string
	Provider   string
	Regions    []string
	Force      bool
	DryRun     bool
}

// Nuke handles the nuke command.
//
// It discovers everything the tool owns on the configured provider,
// shows the full list, and destroys it after confirmation. Every
// deletion's outcome is reported individually.
func Nuke(ctx context.Context, out io.Writer, opts NukeOptions) error {
	cfg, err := load(opts.ConfigPath)
	if err != nil {
		return err
	}

	providerName := cfg.Provider
	if opts.Provider != "" {
		providerName = opts.Provider
	}

	discoverer, err := newDiscoverer(ctx, providerName, cfg.Region)
	if err != nil {
		return err
	}

	orchestrator := teardown.New(discoverer)
	plan, err := orchestrator.Discover(ctx, opts.Regions)
	if err != nil {
		return err
	}

	if plan.Empty() {
		fmt.Fprintf(out, "Nothing to destroy on %s\n", providerName)
		return nil
	}

	fmt.Fprintf(out, "The following %d resource(s) will be destroyed:\n", plan.Size())
	for _, res := range plan.Resources() {
		fmt.Fprintf(out, "  %s\n", res)
	}

	if opts.DryRun {
		fmt.Fprintln(out, "Dry run, nothing destroyed")
		return nil
	}

	if !opts.Force && !confirmNuke(out, providerName) {
		fmt.Fprintln(out, "Aborted, nothing destroyed")
		return nil
	}

	report := orchestrator.Execute(ctx, plan)

	if err := removeSSHAlias(ctx, cfg.ClusterName); err != nil {
		log.Printf("Warning: ssh config not updated: %v", err)
	}

	fmt.Fprintf(out, "Destroyed %d resource(s)\n", len(report.Succeeded))
	for _, failure := range report.Failed {
		fmt.Fprintf(out, "FAILED %s: %v\n", failure.Resource, failure.Err)
	}
	for _, res := range report.NotAttempted {
		fmt.Fprintf(out, "NOT ATTEMPTED %s\n", res)
	}
	return report.Err()
}

// confirmNuke requires the user to type the provider name. Anything
// else aborts with no side effects.
func confirmNuke(out io.Writer, providerName string) bool {
	fmt.Fprintf(out, "Type %q to confirm: ", providerName)
	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		return false
	}
	return strings.TrimSpace(scanner.Text()) == providerName
}
