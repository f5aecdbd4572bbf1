// Package main is the idle-shutdown daemon that runs on every cluster
// instance. It samples CPU, GPU, and login-session activity and powers
// the host off after a sustained quiet period, so forgotten machines
// stop billing.
//
// Usage:
//
//	# Defaults: 60 minute timeout, 10% CPU threshold, 15 minute grace
//	brr-idled
//
//	# Aggressive shutdown for cheap scratch machines
//	brr-idled -idle_timeout_minutes 20 -grace_minutes 5
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joncarter1/brr/internal/idle"
)

func main() {
	var (
		idleTimeoutMinutes = flag.Int("idle_timeout_minutes", 60, "Minutes of continuous inactivity before shutdown")
		cpuThreshold       = flag.Float64("cpu_threshold_percent", 10, "CPU utilization above which the host counts as active")
		graceMinutes       = flag.Int("grace_minutes", 15, "Minutes after start during which no shutdown can trigger")
		gpuThreshold       = flag.Float64("gpu_threshold_percent", 5, "GPU utilization above which the host counts as active")
		sampleSeconds      = flag.Int("sample_interval_seconds", 60, "Seconds between activity samples")
	)
	flag.Parse()

	cfg := idle.Config{
		GracePeriod:         time.Duration(*graceMinutes) * time.Minute,
		IdleTimeout:         time.Duration(*idleTimeoutMinutes) * time.Minute,
		SampleInterval:      time.Duration(*sampleSeconds) * time.Second,
		CPUThresholdPercent: *cpuThreshold,
		GPUThresholdPercent: *gpuThreshold,
	}

	monitor := idle.New(cfg, idle.NewSystemSampler())
	if err := monitor.Run(context.Background()); err != nil {
		log.Fatalf("[IdleMonitor] exited: %v", err)
	}
}
