package idle

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
)

// cpuSampleWindow is the measurement window for each CPU reading. The
// utilization is a delta over this window, not an instantaneous value.
const cpuSampleWindow = 5 * time.Second

// SystemSampler reads real host signals: CPU via procfs, login
// sessions via utmp, GPU via nvidia-smi. Whether the host has a GPU is
// probed once at construction and never re-checked.
type SystemSampler struct {
	hasGPU bool
}

// NewSystemSampler probes the host once and returns a ready sampler.
func NewSystemSampler() *SystemSampler {
	_, err := exec.LookPath("nvidia-smi")
	return &SystemSampler{hasGPU: err == nil}
}

// Sample reads all activity signals. It blocks for cpuSampleWindow.
func (s *SystemSampler) Sample(ctx context.Context) (Sample, error) {
	percents, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
	if err != nil {
		return Sample{}, fmt.Errorf("sample cpu: %w", err)
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}

	users, err := host.UsersWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("count sessions: %w", err)
	}

	var gpuPct float64
	if s.hasGPU {
		gpuPct, err = maxGPUUtilization(ctx)
		if err != nil {
			return Sample{}, fmt.Errorf("sample gpu: %w", err)
		}
	}

	return Sample{
		CPUPercent:  cpuPct,
		GPUPercent:  gpuPct,
		SSHSessions: len(users),
		SampledAt:   time.Now(),
	}, nil
}

// maxGPUUtilization returns the highest utilization across all GPUs. A
// host busy on any one device counts as active.
func maxGPUUtilization(ctx context.Context) (float64, error) {
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=utilization.gpu", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, err
	}

	var max float64
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pct, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("parse nvidia-smi output %q: %w", line, err)
		}
		if pct > max {
			max = pct
		}
	}
	return max, nil
}

// shutdownHost powers off the local machine. The daemon runs as root
// (or with shutdown capability) on the instances it manages.
func shutdownHost(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "shutdown", "-h", "now").Run(); err != nil {
		return fmt.Errorf("trigger shutdown: %w", err)
	}
	return nil
}
