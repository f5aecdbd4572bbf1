package handlers

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joncarter1/brr/internal/cloud"
	"github.com/joncarter1/brr/internal/config"
)

func testCfg() *config.Config {
	return &config.Config{
		ClusterName:  "dev",
		Provider:     "mock",
		Region:       "us-east-1",
		CacheStopped: true,
		Workers:      2,
		Head:         config.NodeConfig{InstanceType: "m5.large", Image: "ami-1", RecoveryPolicy: "fail"},
		Worker:       config.NodeConfig{InstanceType: "g5.xlarge", Image: "ami-1", RecoveryPolicy: "fail"},
		SSHUser:      "ubuntu",
	}
}

// withFakes swaps the handler factories for the duration of one test.
func withFakes(t *testing.T, cfg *config.Config, provider *cloud.MockProvider) string {
	t.Helper()
	origLoad, origProvider, origDiscoverer, origPath := loadConfig, newProvider, newDiscoverer, sshConfigPath

	loadConfig = func(string) (*config.Config, error) { return cfg, nil }
	newProvider = func(context.Context, string, string) (cloud.NodeProvider, error) { return provider, nil }
	newDiscoverer = func(context.Context, string, string) (cloud.ResourceDiscoverer, error) { return provider, nil }

	sshPath := filepath.Join(t.TempDir(), "ssh_config")
	sshConfigPath = func() (string, error) { return sshPath, nil }

	t.Cleanup(func() {
		loadConfig, newProvider, newDiscoverer, sshConfigPath = origLoad, origProvider, origDiscoverer, origPath
	})
	return sshPath
}

// trackingProvider records mutation calls behind a mutex.
type trackingProvider struct {
	*cloud.MockProvider

	mu         sync.Mutex
	created    int
	stopped    []string
	terminated []string
}

func newTrackingProvider(world func() []cloud.Instance) *trackingProvider {
	tp := &trackingProvider{MockProvider: &cloud.MockProvider{}}
	tp.ListInstancesFunc = func(context.Context, string) ([]cloud.Instance, error) {
		return world(), nil
	}
	tp.CreateInstanceFunc = func(_ context.Context, spec cloud.LaunchSpec) (cloud.Instance, error) {
		tp.mu.Lock()
		defer tp.mu.Unlock()
		tp.created++
		return cloud.Instance{ID: "i-new", State: cloud.StatePending}, nil
	}
	tp.StopInstanceFunc = func(_ context.Context, id string) error {
		tp.mu.Lock()
		defer tp.mu.Unlock()
		tp.stopped = append(tp.stopped, id)
		return nil
	}
	tp.TerminateInstanceFunc = func(_ context.Context, id string) error {
		tp.mu.Lock()
		defer tp.mu.Unlock()
		tp.terminated = append(tp.terminated, id)
		return nil
	}
	return tp
}

func TestUpCreatesHeadAndWorkers(t *testing.T) {
	cfg := testCfg()
	provider := newTrackingProvider(func() []cloud.Instance { return nil })
	withFakes(t, cfg, provider.MockProvider)

	require.NoError(t, Up(context.Background(), "", -1))
	assert.Equal(t, 3, provider.created, "one head and two workers")
}

func TestUpWorkerOverride(t *testing.T) {
	cfg := testCfg()
	provider := newTrackingProvider(func() []cloud.Instance { return nil })
	withFakes(t, cfg, provider.MockProvider)

	require.NoError(t, Up(context.Background(), "", 5))
	assert.Equal(t, 6, provider.created, "one head and five workers")
}

func TestUpWritesSSHAliasForRunningHead(t *testing.T) {
	cfg := testCfg()
	cfg.Workers = 0
	head := cloud.Instance{
		ID:                "h-1",
		NodeRole:          cloud.RoleHead,
		State:             cloud.StateRunning,
		LaunchFingerprint: config.Fingerprint(cfg.Head),
		ExternalAddress:   "203.0.113.9",
	}
	provider := newTrackingProvider(func() []cloud.Instance { return []cloud.Instance{head} })
	sshPath := withFakes(t, cfg, provider.MockProvider)

	require.NoError(t, Up(context.Background(), "", -1))
	assert.Zero(t, provider.created)

	content, err := os.ReadFile(sshPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Host dev\n")
	assert.Contains(t, string(content), "    HostName 203.0.113.9\n")
	assert.Contains(t, string(content), "    User ubuntu\n")
}

func TestDownStopsInsteadOfTerminating(t *testing.T) {
	cfg := testCfg()
	world := []cloud.Instance{
		{ID: "h-1", NodeRole: cloud.RoleHead, State: cloud.StateRunning, LaunchFingerprint: config.Fingerprint(cfg.Head)},
		{ID: "w-1", NodeRole: cloud.RoleWorker, State: cloud.StateRunning, LaunchFingerprint: config.Fingerprint(cfg.Worker)},
	}
	provider := newTrackingProvider(func() []cloud.Instance { return world })
	withFakes(t, cfg, provider.MockProvider)

	require.NoError(t, Down(context.Background(), ""))
	assert.ElementsMatch(t, []string{"h-1", "w-1"}, provider.stopped)
	assert.Empty(t, provider.terminated)
}

func TestCleanTerminatesEverythingIncludingCached(t *testing.T) {
	cfg := testCfg()
	world := []cloud.Instance{
		{ID: "h-1", NodeRole: cloud.RoleHead, State: cloud.StateRunning, LaunchFingerprint: config.Fingerprint(cfg.Head)},
		{ID: "w-1", NodeRole: cloud.RoleWorker, State: cloud.StateStopped, LaunchFingerprint: config.Fingerprint(cfg.Worker)},
	}
	provider := newTrackingProvider(func() []cloud.Instance { return world })
	withFakes(t, cfg, provider.MockProvider)

	require.NoError(t, Clean(context.Background(), ""))
	assert.ElementsMatch(t, []string{"h-1", "w-1"}, provider.terminated)
	assert.Empty(t, provider.stopped)
}

func TestListRendersInstances(t *testing.T) {
	cfg := testCfg()
	world := []cloud.Instance{
		{ID: "h-1", NodeRole: cloud.RoleHead, State: cloud.StateRunning, LaunchFingerprint: config.Fingerprint(cfg.Head), ExternalAddress: "203.0.113.9"},
		{ID: "w-1", NodeRole: cloud.RoleWorker, State: cloud.StateStopped, LaunchFingerprint: "outdated"},
	}
	provider := newTrackingProvider(func() []cloud.Instance { return world })
	withFakes(t, cfg, provider.MockProvider)

	var out bytes.Buffer
	require.NoError(t, List(context.Background(), &out, ""))

	assert.Contains(t, out.String(), "h-1")
	assert.Contains(t, out.String(), "current")
	assert.Contains(t, out.String(), "stale")
}

func nukeWorld() *cloud.MockProvider {
	mock := &cloud.MockProvider{
		RegionsFunc: func(context.Context) ([]string, error) {
			return []string{"us-east-1"}, nil
		},
		DiscoverResourcesFunc: func(_ context.Context, region string) ([]cloud.Resource, error) {
			return []cloud.Resource{
				{Provider: "mock", Region: region, Kind: cloud.KindInstance, ID: "i-1"},
			}, nil
		},
	}
	return mock
}

func setStdin(t *testing.T, r io.Reader) {
	t.Helper()
	orig := stdin
	stdin = r
	t.Cleanup(func() { stdin = orig })
}

func TestNukeDryRunDestroysNothing(t *testing.T) {
	mock := nukeWorld()
	mock.DestroyResourceFunc = func(context.Context, cloud.Resource) error {
		t.Fatal("destroy issued during dry run")
		return nil
	}
	withFakes(t, testCfg(), mock)

	var out bytes.Buffer
	require.NoError(t, Nuke(context.Background(), &out, NukeOptions{DryRun: true}))
	assert.Contains(t, out.String(), "i-1")
	assert.Contains(t, out.String(), "Dry run")
}

func TestNukeDeclinedConfirmationAborts(t *testing.T) {
	mock := nukeWorld()
	mock.DestroyResourceFunc = func(context.Context, cloud.Resource) error {
		t.Fatal("destroy issued after declined confirmation")
		return nil
	}
	withFakes(t, testCfg(), mock)
	setStdin(t, strings.NewReader("definitely not\n"))

	var out bytes.Buffer
	require.NoError(t, Nuke(context.Background(), &out, NukeOptions{}))
	assert.Contains(t, out.String(), "Aborted")
}

func TestNukeConfirmedDestroys(t *testing.T) {
	var destroyed []string
	mock := nukeWorld()
	mock.DestroyResourceFunc = func(_ context.Context, r cloud.Resource) error {
		destroyed = append(destroyed, r.ID)
		return nil
	}
	withFakes(t, testCfg(), mock)
	setStdin(t, strings.NewReader("mock\n"))

	var out bytes.Buffer
	require.NoError(t, Nuke(context.Background(), &out, NukeOptions{}))
	assert.Equal(t, []string{"i-1"}, destroyed)
	assert.Contains(t, out.String(), "Destroyed 1 resource(s)")
}
