package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/joncarter1/brr/internal/cloud"
	"github.com/joncarter1/brr/internal/reconcile"
)

// Down handles the down command: scale every role to zero, honoring the
// cache policy, and drop the cluster's ssh alias.
func Down(ctx context.Context, configPath string) error {
	return scaleToZero(ctx, configPath, true)
}

// Clean handles the clean command: terminate every instance including
// cached stopped ones.
func Clean(ctx context.Context, configPath string) error {
	return scaleToZero(ctx, configPath, false)
}

func scaleToZero(ctx context.Context, configPath string, honorCache bool) error {
	cfg, err := load(configPath)
	if err != nil {
		return err
	}

	provider, err := newProvider(ctx, cfg.Provider, cfg.Region)
	if err != nil {
		return err
	}

	cachePolicy := honorCache && cfg.CacheStopped
	if cachePolicy {
		log.Printf("Stopping cluster %s (instances retained for restart)", cfg.ClusterName)
	} else {
		log.Printf("Terminating cluster %s", cfg.ClusterName)
	}

	reconciler := reconcile.New(provider)

	workerResult, workerErr := reconciler.Reconcile(ctx, cfg.LaunchSpecFor(cloud.RoleWorker), 0, cachePolicy)
	logResult("workers", workerResult)

	headResult, headErr := reconciler.Reconcile(ctx, cfg.LaunchSpecFor(cloud.RoleHead), 0, cachePolicy)
	logResult("head", headResult)

	if err := syncSSHAlias(ctx, cfg, provider); err != nil {
		log.Printf("Warning: ssh config not updated: %v", err)
	}

	return errors.Join(workerErr, headErr)
}
