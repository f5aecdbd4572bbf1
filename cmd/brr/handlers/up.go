package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/joncarter1/brr/internal/cloud"
	"github.com/joncarter1/brr/internal/reconcile"
)

// Up handles the up command.
//
// It reconciles the head and the worker pool against the configured
// sizes. workersOverride replaces the configured worker count when
// non-negative. Per-instance failures in one pool do not stop the other;
// all failures are reported together.
func Up(ctx context.Context, configPath string, workersOverride int) error {
	cfg, err := load(configPath)
	if err != nil {
		return err
	}

	provider, err := newProvider(ctx, cfg.Provider, cfg.Region)
	if err != nil {
		return err
	}

	workers := cfg.Workers
	if workersOverride >= 0 {
		workers = workersOverride
	}
	log.Printf("Bringing up cluster %s on %s/%s (1 head, %d worker(s))",
		cfg.ClusterName, cfg.Provider, cfg.Region, workers)

	reconciler := reconcile.New(provider)

	headResult, headErr := reconciler.Reconcile(ctx, cfg.LaunchSpecFor(cloud.RoleHead), 1, cfg.CacheStopped)
	logResult("head", headResult)

	workerResult, workerErr := reconciler.Reconcile(ctx, cfg.LaunchSpecFor(cloud.RoleWorker), workers, cfg.CacheStopped)
	logResult("workers", workerResult)

	if err := syncSSHAlias(ctx, cfg, provider); err != nil {
		log.Printf("Warning: ssh config not updated: %v", err)
	}

	return errors.Join(headErr, workerErr)
}
