package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/joncarter1/brr/internal/cloud"
)

// placeholderPattern matches template tokens that survived rendering,
// e.g. {{SUBNET_ID}}. A spec carrying one must never reach the provider.
var placeholderPattern = regexp.MustCompile(`\{\{\s*[A-Za-z0-9_.-]+\s*\}\}`)

// Fingerprint hashes the node's launch configuration. Two specs with the
// same fingerprint launch interchangeable instances; a fingerprint change
// makes every existing instance stale.
func Fingerprint(n NodeConfig) string {
	canonical, err := json.Marshal(n)
	if err != nil {
		// NodeConfig is a flat struct of strings and ints; Marshal
		// cannot fail on it.
		panic(fmt.Sprintf("fingerprint marshal: %v", err))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:12]
}

// CheckResolved verifies no launch-configuration field still carries an
// unresolved placeholder token. The first offending field is reported.
func CheckResolved(spec cloud.LaunchSpec) error {
	fields := map[string]string{
		"instance_type": spec.InstanceType,
		"image":         spec.Image,
		"subnet_id":     spec.SubnetID,
		"ssh_key_name":  spec.SSHKeyName,
		"user_data":     spec.UserData,
		"region":        spec.Region,
	}
	for name, value := range fields {
		if token := placeholderPattern.FindString(value); token != "" {
			return &cloud.UnresolvedConfigError{Field: name, Token: token}
		}
	}
	return nil
}

// LaunchSpecFor builds the provider launch spec for one node role.
func (c *Config) LaunchSpecFor(role cloud.NodeRole) cloud.LaunchSpec {
	node := c.Worker
	if role == cloud.RoleHead {
		node = c.Head
	}
	return cloud.LaunchSpec{
		ClusterName:    c.ClusterName,
		NodeRole:       role,
		Fingerprint:    Fingerprint(node),
		Region:         c.Region,
		InstanceType:   node.InstanceType,
		Image:          node.Image,
		DiskSizeGB:     node.DiskSizeGB,
		SubnetID:       node.SubnetID,
		SSHKeyName:     c.SSHKeyName,
		UserData:       node.UserData,
		RecoveryPolicy: node.RecoveryPolicy,
	}
}
