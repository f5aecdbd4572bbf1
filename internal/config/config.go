// Package config loads and validates cluster configuration.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config describes one cluster: where it runs, what its nodes look like,
// and the local lifecycle policies applied to it.
type Config struct {
	ClusterName string `mapstructure:"cluster_name"`
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`

	// CacheStopped controls scale-down: stop and retain excess instances
	// (instantly restartable, storage still billed) or terminate outright.
	CacheStopped bool `mapstructure:"cache_stopped"`

	Head    NodeConfig `mapstructure:"head"`
	Worker  NodeConfig `mapstructure:"worker"`
	Workers int        `mapstructure:"workers"`

	SSHUser         string `mapstructure:"ssh_user"`
	SSHIdentityFile string `mapstructure:"ssh_identity_file"`
	SSHKeyName      string `mapstructure:"ssh_key_name"`

	Idle IdleConfig `mapstructure:"idle_shutdown"`
}

// NodeConfig is the launch configuration for one node role. Its fields
// feed the launch fingerprint: changing any of them makes existing
// instances stale.
type NodeConfig struct {
	InstanceType   string `mapstructure:"instance_type"`
	Image          string `mapstructure:"image"`
	DiskSizeGB     int    `mapstructure:"disk_size_gb"`
	SubnetID       string `mapstructure:"subnet_id"`
	RecoveryPolicy string `mapstructure:"recovery_policy"`
	UserData       string `mapstructure:"user_data"`
}

// IdleConfig configures the on-node idle shutdown daemon.
type IdleConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	TimeoutMinutes      int     `mapstructure:"idle_timeout_minutes"`
	CPUThresholdPercent float64 `mapstructure:"cpu_threshold_percent"`
	GraceMinutes        int     `mapstructure:"grace_minutes"`
}

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SSHUser == "" {
		c.SSHUser = "ubuntu"
	}
	if c.Head.DiskSizeGB == 0 {
		c.Head.DiskSizeGB = 100
	}
	if c.Worker.DiskSizeGB == 0 {
		c.Worker.DiskSizeGB = 100
	}
	if c.Head.RecoveryPolicy == "" {
		c.Head.RecoveryPolicy = "fail"
	}
	if c.Worker.RecoveryPolicy == "" {
		c.Worker.RecoveryPolicy = "fail"
	}
	if c.Idle.TimeoutMinutes == 0 {
		c.Idle.TimeoutMinutes = 60
	}
	if c.Idle.CPUThresholdPercent == 0 {
		c.Idle.CPUThresholdPercent = 10
	}
	if c.Idle.GraceMinutes == 0 {
		c.Idle.GraceMinutes = 15
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("cluster_name is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Head.InstanceType == "" {
		return fmt.Errorf("head.instance_type is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.Workers > 0 && c.Worker.InstanceType == "" {
		return fmt.Errorf("worker.instance_type is required when workers > 0")
	}
	for role, rp := range map[string]string{
		"head":   c.Head.RecoveryPolicy,
		"worker": c.Worker.RecoveryPolicy,
	} {
		if rp != "fail" && rp != "restart" {
			return fmt.Errorf("%s.recovery_policy must be \"fail\" or \"restart\", got %q", role, rp)
		}
	}
	return nil
}
