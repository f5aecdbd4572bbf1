// Package hetzner implements the provider contract on Hetzner Cloud.
package hetzner

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/joncarter1/brr/internal/cloud"
)

const providerName = "hetzner"

func init() {
	cloud.RegisterProvider(providerName, func(ctx context.Context, region string) (cloud.NodeProvider, error) {
		token := os.Getenv("HCLOUD_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("HCLOUD_TOKEN is not set")
		}
		return New(token, region), nil
	})
}

// Client implements the provider contract on Hetzner Cloud. Instances
// are servers, tags are labels, the region is an hcloud location.
type Client struct {
	hc       *hcloud.Client
	location string
}

// Option configures a Client.
type Option func(*Client)

// WithHCloudClient replaces the underlying hcloud client, for tests.
func WithHCloudClient(hc *hcloud.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New creates a Client for the given API token and location.
func New(token, location string, opts ...Option) *Client {
	c := &Client{
		hc:       hcloud.NewClient(hcloud.WithToken(token)),
		location: location,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// ListInstances returns the cluster's servers in every non-deleted
// state. Servers mid-delete are surfaced as terminating.
func (c *Client) ListInstances(ctx context.Context, clusterName string) ([]cloud.Instance, error) {
	servers, err := c.hc.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{
			LabelSelector: fmt.Sprintf("%s=%s", cloud.TagClusterName, clusterName),
		},
	})
	if err != nil {
		return nil, wrapError("ListServers", err)
	}

	instances := make([]cloud.Instance, 0, len(servers))
	for _, server := range servers {
		instances = append(instances, toInstance(server))
	}
	return instances, nil
}

// GetInstance returns one server by ID.
func (c *Client) GetInstance(ctx context.Context, id string) (cloud.Instance, error) {
	server, err := c.server(ctx, id)
	if err != nil {
		return cloud.Instance{}, err
	}
	return toInstance(server), nil
}

// CreateInstance creates and boots one server from the launch spec.
// Hetzner ties disk size to the server type, so DiskSizeGB is not
// honored here.
func (c *Client) CreateInstance(ctx context.Context, spec cloud.LaunchSpec) (cloud.Instance, error) {
	if err := validatePolicy(spec.RecoveryPolicy); err != nil {
		return cloud.Instance{}, err
	}

	serverType, _, err := c.hc.ServerType.GetByName(ctx, spec.InstanceType)
	if err != nil {
		return cloud.Instance{}, wrapError("GetServerType", err)
	}
	if serverType == nil {
		return cloud.Instance{}, &cloud.ValidationError{Op: "CreateServer", Err: fmt.Errorf("unknown server type %q", spec.InstanceType)}
	}

	image, _, err := c.hc.Image.GetByNameAndArchitecture(ctx, spec.Image, serverType.Architecture)
	if err != nil {
		return cloud.Instance{}, wrapError("GetImage", err)
	}
	if image == nil {
		return cloud.Instance{}, &cloud.ValidationError{Op: "CreateServer", Err: fmt.Errorf("unknown image %q", spec.Image)}
	}

	location, _, err := c.hc.Location.GetByName(ctx, c.location)
	if err != nil {
		return cloud.Instance{}, wrapError("GetLocation", err)
	}

	opts := hcloud.ServerCreateOpts{
		Name:       fmt.Sprintf("%s-%s-%d", spec.ClusterName, spec.NodeRole, time.Now().UnixNano()),
		ServerType: serverType,
		Image:      image,
		Location:   location,
		Labels:     launchLabels(spec),
		UserData:   spec.UserData,
	}
	if spec.SSHKeyName != "" {
		key, _, err := c.hc.SSHKey.GetByName(ctx, spec.SSHKeyName)
		if err != nil {
			return cloud.Instance{}, wrapError("GetSSHKey", err)
		}
		if key == nil {
			return cloud.Instance{}, &cloud.ValidationError{Op: "CreateServer", Err: fmt.Errorf("unknown ssh key %q", spec.SSHKeyName)}
		}
		opts.SSHKeys = []*hcloud.SSHKey{key}
	}

	result, _, err := c.hc.Server.Create(ctx, opts)
	if err != nil {
		return cloud.Instance{}, wrapError("CreateServer", err)
	}
	return toInstance(result.Server), nil
}

// StartInstance powers on a stopped server. Already-running is a no-op.
func (c *Client) StartInstance(ctx context.Context, id string) error {
	server, err := c.server(ctx, id)
	if err != nil {
		return err
	}
	if server.Status == hcloud.ServerStatusRunning || server.Status == hcloud.ServerStatusStarting {
		return nil
	}
	_, _, err = c.hc.Server.Poweron(ctx, server)
	return wrapError("Poweron", err)
}

// StopInstance powers off a running server. Already-off is a no-op.
func (c *Client) StopInstance(ctx context.Context, id string) error {
	server, err := c.server(ctx, id)
	if err != nil {
		return err
	}
	if server.Status == hcloud.ServerStatusOff || server.Status == hcloud.ServerStatusStopping {
		return nil
	}
	_, _, err = c.hc.Server.Poweroff(ctx, server)
	return wrapError("Poweroff", err)
}

// TerminateInstance deletes the server. An already-gone server is a
// no-op success.
func (c *Client) TerminateInstance(ctx context.Context, id string) error {
	serverID, err := parseID(id)
	if err != nil {
		return err
	}
	_, _, err = c.hc.Server.DeleteWithResult(ctx, &hcloud.Server{ID: serverID})
	if isNotFound(err) {
		return nil
	}
	return wrapError("DeleteServer", err)
}

// SetRecoveryPolicy fails fast when the requested policy differs from
// the one recorded at create time. Hetzner has no post-create knob for
// it, so no API call is issued.
func (c *Client) SetRecoveryPolicy(ctx context.Context, id, policy string) error {
	if err := validatePolicy(policy); err != nil {
		return err
	}
	labels, err := c.Tags(ctx, id)
	if err != nil {
		return err
	}
	if labels[cloud.TagRecoveryPolicy] == policy {
		return nil
	}
	return &cloud.ImmutablePropertyError{InstanceID: id, Property: "recovery_policy"}
}

// IsInstanceRunning reports whether the server is running.
func (c *Client) IsInstanceRunning(ctx context.Context, id string) (bool, error) {
	server, err := c.server(ctx, id)
	if err != nil {
		return false, err
	}
	return server.Status == hcloud.ServerStatusRunning, nil
}

// InternalAddress returns the server's first private network address.
func (c *Client) InternalAddress(ctx context.Context, id string) (string, error) {
	inst, err := c.GetInstance(ctx, id)
	if err != nil {
		return "", err
	}
	return inst.InternalAddress, nil
}

// ExternalAddress returns the server's public IPv4 address.
func (c *Client) ExternalAddress(ctx context.Context, id string) (string, error) {
	inst, err := c.GetInstance(ctx, id)
	if err != nil {
		return "", err
	}
	return inst.ExternalAddress, nil
}

// Tags returns the server's labels.
func (c *Client) Tags(ctx context.Context, id string) (map[string]string, error) {
	server, err := c.server(ctx, id)
	if err != nil {
		return nil, err
	}
	return server.Labels, nil
}

// SetTags merges the given labels into the server's existing set.
func (c *Client) SetTags(ctx context.Context, id string, tags map[string]string) error {
	server, err := c.server(ctx, id)
	if err != nil {
		return err
	}
	merged := make(map[string]string, len(server.Labels)+len(tags))
	for key, value := range server.Labels {
		merged[key] = value
	}
	for key, value := range tags {
		merged[key] = value
	}
	_, _, err = c.hc.Server.Update(ctx, server, hcloud.ServerUpdateOpts{Labels: merged})
	return wrapError("UpdateServer", err)
}

func (c *Client) server(ctx context.Context, id string) (*hcloud.Server, error) {
	serverID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	server, _, err := c.hc.Server.GetByID(ctx, serverID)
	if err != nil {
		return nil, wrapError("GetServer", err)
	}
	if server == nil {
		return nil, &cloud.NotFoundError{InstanceID: id}
	}
	return server, nil
}

func parseID(id string) (int64, error) {
	serverID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, &cloud.ValidationError{Op: "ParseServerID", Err: fmt.Errorf("malformed server id %q", id)}
	}
	return serverID, nil
}

func validatePolicy(policy string) error {
	switch policy {
	case cloud.RecoveryPolicyFail, cloud.RecoveryPolicyRestart:
		return nil
	default:
		return &cloud.ValidationError{
			Op:  "CreateServer",
			Err: fmt.Errorf("unknown recovery policy %q", policy),
		}
	}
}

func launchLabels(spec cloud.LaunchSpec) map[string]string {
	labels := map[string]string{
		cloud.TagClusterName:    spec.ClusterName,
		cloud.TagNodeRole:       string(spec.NodeRole),
		cloud.TagFingerprint:    spec.Fingerprint,
		cloud.TagRecoveryPolicy: spec.RecoveryPolicy,
	}
	for key, value := range spec.ExtraTags {
		labels[key] = value
	}
	return labels
}

func toInstance(server *hcloud.Server) cloud.Instance {
	inst := cloud.Instance{
		ID:                strconv.FormatInt(server.ID, 10),
		Provider:          providerName,
		ClusterName:       server.Labels[cloud.TagClusterName],
		NodeRole:          cloud.NodeRole(server.Labels[cloud.TagNodeRole]),
		LaunchFingerprint: server.Labels[cloud.TagFingerprint],
		State:             stateFromServer(server.Status),
		CreatedAt:         server.Created,
		LastObservedAt:    time.Now(),
	}
	if server.Datacenter != nil && server.Datacenter.Location != nil {
		inst.Region = server.Datacenter.Location.Name
	}
	if !server.PublicNet.IPv4.IsUnspecified() && server.PublicNet.IPv4.IP != nil {
		inst.ExternalAddress = server.PublicNet.IPv4.IP.String()
	}
	if len(server.PrivateNet) > 0 && server.PrivateNet[0].IP != nil {
		inst.InternalAddress = server.PrivateNet[0].IP.String()
	}
	return inst
}

// stateFromServer maps hcloud server statuses onto the neutral lifecycle.
// Hetzner has no explicit error status; an unrecognized status is
// surfaced as error rather than dropped, since the server remains
// visible and billable.
func stateFromServer(status hcloud.ServerStatus) cloud.InstanceState {
	switch status {
	case hcloud.ServerStatusInitializing, hcloud.ServerStatusRebuilding:
		return cloud.StatePending
	case hcloud.ServerStatusStarting:
		return cloud.StateRestarting
	case hcloud.ServerStatusRunning, hcloud.ServerStatusMigrating:
		return cloud.StateRunning
	case hcloud.ServerStatusStopping:
		return cloud.StateStopping
	case hcloud.ServerStatusOff:
		return cloud.StateStopped
	case hcloud.ServerStatusDeleting:
		return cloud.StateTerminating
	default:
		return cloud.StateError
	}
}
