// Package idle implements the per-instance idle-shutdown daemon. A single
// cooperative loop samples activity signals and powers the host off after a
// sustained quiet period.
package idle

import (
	"context"
	"log"
	"time"
)

// State is the monitor's lifecycle phase.
type State string

const (
	// StateGrace is the initial quiet period after boot during which no
	// shutdown can trigger, so bootstrap work is never interrupted.
	StateGrace State = "grace"
	// StateMonitoring is the steady state: sample, classify, decide.
	StateMonitoring State = "monitoring"
	// StateShutdownTriggered is terminal. The loop never runs again.
	StateShutdownTriggered State = "shutdown_triggered"
)

// Sample is one point-in-time reading of the host's activity signals.
type Sample struct {
	CPUPercent  float64
	GPUPercent  float64
	SSHSessions int
	SampledAt   time.Time
}

// Sampler produces activity samples. SystemSampler is the real one;
// tests substitute their own.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// Config holds the monitor's thresholds and timing. Thresholds are
// independent: exceeding any one of them marks the host active.
type Config struct {
	GracePeriod         time.Duration
	IdleTimeout         time.Duration
	SampleInterval      time.Duration
	CPUThresholdPercent float64
	GPUThresholdPercent float64
}

// Monitor watches one host and shuts it down after IdleTimeout of
// continuous inactivity. Instances are not safe for concurrent use;
// the design is a single blocking loop.
type Monitor struct {
	cfg      Config
	sampler  Sampler
	shutdown func(ctx context.Context) error

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	state     State
	idleSince time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithShutdownFunc replaces the host power-off action.
func WithShutdownFunc(fn func(ctx context.Context) error) Option {
	return func(m *Monitor) { m.shutdown = fn }
}

// WithClock replaces the time source and sleeper, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Monitor) {
		m.now = now
		m.sleep = sleep
	}
}

// New creates a Monitor. The default shutdown action powers off the
// local host.
func New(cfg Config, sampler Sampler, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		sampler:  sampler,
		shutdown: shutdownHost,
		now:      time.Now,
		sleep:    sleepContext,
		state:    StateGrace,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the monitor's current phase.
func (m *Monitor) State() State {
	return m.state
}

// Run executes the monitor loop until shutdown triggers or ctx is
// cancelled. It returns nil after a triggered shutdown; in practice the
// shutdown terminates the process before the caller sees the return.
func (m *Monitor) Run(ctx context.Context) error {
	log.Printf("[IdleMonitor] starting: grace=%s timeout=%s interval=%s cpu>%.0f%% gpu>%.0f%%",
		m.cfg.GracePeriod, m.cfg.IdleTimeout, m.cfg.SampleInterval,
		m.cfg.CPUThresholdPercent, m.cfg.GPUThresholdPercent)

	if err := m.sleep(ctx, m.cfg.GracePeriod); err != nil {
		return err
	}
	m.state = StateMonitoring
	log.Printf("[IdleMonitor] grace period over, monitoring")

	for {
		m.observe(ctx)

		if !m.idleSince.IsZero() && m.now().Sub(m.idleSince) >= m.cfg.IdleTimeout {
			m.state = StateShutdownTriggered
			log.Printf("[IdleMonitor] idle for %s (since %s), shutting down",
				m.cfg.IdleTimeout, m.idleSince.Format(time.RFC3339))
			return m.shutdown(ctx)
		}

		if err := m.sleep(ctx, m.cfg.SampleInterval); err != nil {
			return err
		}
	}
}

// observe takes one sample and updates the idle clock. The clock is
// sticky: it is set on the first inactive sample and only ever cleared
// by an active one, never re-set while already idle. A failed sample
// leaves the clock untouched.
func (m *Monitor) observe(ctx context.Context) {
	sample, err := m.sampler.Sample(ctx)
	if err != nil {
		log.Printf("[IdleMonitor] sample failed, skipping: %v", err)
		return
	}

	if m.isActive(sample) {
		if !m.idleSince.IsZero() {
			log.Printf("[IdleMonitor] activity detected (cpu=%.1f%% gpu=%.1f%% sessions=%d), idle clock reset",
				sample.CPUPercent, sample.GPUPercent, sample.SSHSessions)
		}
		m.idleSince = time.Time{}
		return
	}

	if m.idleSince.IsZero() {
		m.idleSince = m.now()
		log.Printf("[IdleMonitor] host idle, clock started")
	}
}

func (m *Monitor) isActive(s Sample) bool {
	return s.CPUPercent > m.cfg.CPUThresholdPercent ||
		s.GPUPercent > m.cfg.GPUThresholdPercent ||
		s.SSHSessions > 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
