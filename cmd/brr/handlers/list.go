package handlers

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/joncarter1/brr/internal/cloud"
	"github.com/joncarter1/brr/internal/config"
)

// List handles the list command. It prints one line per instance with
// its lifecycle state and whether its launch configuration is current.
func List(ctx context.Context, out io.Writer, configPath string) error {
	cfg, err := load(configPath)
	if err != nil {
		return err
	}

	provider, err := newProvider(ctx, cfg.Provider, cfg.Region)
	if err != nil {
		return err
	}

	instances, err := provider.ListInstances(ctx, cfg.ClusterName)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}
	if len(instances) == 0 {
		fmt.Fprintf(out, "No instances for cluster %s\n", cfg.ClusterName)
		return nil
	}

	fingerprints := map[cloud.NodeRole]string{
		cloud.RoleHead:   config.Fingerprint(cfg.Head),
		cloud.RoleWorker: config.Fingerprint(cfg.Worker),
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tSTATE\tINTERNAL\tEXTERNAL\tCONFIG")
	for _, inst := range instances {
		configStatus := "current"
		if inst.LaunchFingerprint != fingerprints[inst.NodeRole] {
			configStatus = "stale"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inst.ID, inst.NodeRole, inst.State,
			orDash(inst.InternalAddress), orDash(inst.ExternalAddress), configStatus)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
