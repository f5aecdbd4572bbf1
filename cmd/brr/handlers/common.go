// Package handlers implements the CLI command logic.
package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/joncarter1/brr/internal/cloud"
	"github.com/joncarter1/brr/internal/config"
	"github.com/joncarter1/brr/internal/reconcile"
	"github.com/joncarter1/brr/internal/sshconfig"
)

const defaultConfigFile = "brr.yaml"

// Factory function variables - can be replaced in tests.
var (
	loadConfig    = config.LoadFile
	newProvider   = cloud.GetProvider
	newDiscoverer = cloud.GetDiscoverer
	sshConfigPath = sshconfig.DefaultPath
)

func load(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = defaultConfigFile
	}
	return loadConfig(configPath)
}

func logResult(role string, result *reconcile.Result) {
	if result == nil {
		return
	}
	if result.Empty() {
		log.Printf("%s: in sync, nothing to do", role)
		return
	}
	log.Printf("%s: %d created, %d restarted, %d stopped, %d terminated, %d failed",
		role, len(result.Created), len(result.Restarted),
		len(result.Stopped), len(result.Terminated), len(result.Errored))
}

// syncSSHAlias points the cluster's ssh alias at its running head, or
// removes the alias when no reachable head exists.
func syncSSHAlias(ctx context.Context, cfg *config.Config, provider cloud.NodeProvider) error {
	path, err := sshConfigPath()
	if err != nil {
		return err
	}
	registry := sshconfig.New(path)

	instances, err := provider.ListInstances(ctx, cfg.ClusterName)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}
	for _, inst := range instances {
		if inst.NodeRole == cloud.RoleHead && inst.State == cloud.StateRunning && inst.ExternalAddress != "" {
			return registry.Upsert(ctx, sshconfig.Entry{
				Alias:        cfg.ClusterName,
				Address:      inst.ExternalAddress,
				User:         cfg.SSHUser,
				IdentityFile: cfg.SSHIdentityFile,
			})
		}
	}
	return registry.Remove(ctx, cfg.ClusterName)
}

// removeSSHAlias drops the cluster's alias after its instances are gone.
func removeSSHAlias(ctx context.Context, alias string) error {
	path, err := sshConfigPath()
	if err != nil {
		return err
	}
	return sshconfig.New(path).Remove(ctx, alias)
}
