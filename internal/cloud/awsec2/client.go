package awsec2

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/joncarter1/brr/internal/cloud"
)

const providerName = "aws"

// rootDeviceName is where the instance's boot volume attaches on the
// Ubuntu images this tool launches.
const rootDeviceName = "/dev/sda1"

func init() {
	cloud.RegisterProvider(providerName, func(ctx context.Context, region string) (cloud.NodeProvider, error) {
		return New(ctx, region)
	})
}

// Client implements the provider contract on EC2. One Client is bound to
// a home region; teardown reaches other regions through apiFor.
type Client struct {
	region string
	api    EC2API
	apiFor func(region string) EC2API
}

// Option configures a Client.
type Option func(*Client)

// WithAPI replaces the EC2 client, for tests. Teardown uses the same API
// for every region.
func WithAPI(api EC2API) Option {
	return func(c *Client) {
		c.api = api
		c.apiFor = func(string) EC2API { return api }
	}
}

// New creates a Client using the ambient AWS credential chain.
func New(ctx context.Context, region string, opts ...Option) (*Client, error) {
	return newClient(ctx, region, nil, opts...)
}

// NewWithStaticCredentials creates a Client with explicit credentials,
// bypassing the ambient chain. Used when the caller manages key material
// itself.
func NewWithStaticCredentials(ctx context.Context, region, accessKeyID, secretAccessKey string, opts ...Option) (*Client, error) {
	provider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	return newClient(ctx, region, []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(provider),
	}, opts...)
}

func newClient(ctx context.Context, region string, loadOpts []func(*awsconfig.LoadOptions) error, opts ...Option) (*Client, error) {
	c := &Client{region: region}
	for _, opt := range opts {
		opt(c)
	}
	if c.api == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, append(loadOpts, awsconfig.WithRegion(region))...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		c.api = ec2.NewFromConfig(cfg)
		c.apiFor = func(region string) EC2API {
			return ec2.NewFromConfig(cfg, func(o *ec2.Options) { o.Region = region })
		}
	}
	return c, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// nonTerminatedStates lists the EC2 states ListInstances surfaces.
// Terminated instances are invisible; everything else, including
// shutting-down, is reported.
var nonTerminatedStates = []string{
	string(ec2types.InstanceStateNamePending),
	string(ec2types.InstanceStateNameRunning),
	string(ec2types.InstanceStateNameStopping),
	string(ec2types.InstanceStateNameStopped),
	string(ec2types.InstanceStateNameShuttingDown),
}

// ListInstances returns the cluster's instances in every non-terminated
// state.
func (c *Client) ListInstances(ctx context.Context, clusterName string) ([]cloud.Instance, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:" + cloud.TagClusterName), Values: []string{clusterName}},
			{Name: aws.String("instance-state-name"), Values: nonTerminatedStates},
		},
	}

	var instances []cloud.Instance
	for {
		out, err := c.api.DescribeInstances(ctx, input)
		if err != nil {
			return nil, wrapError("DescribeInstances", err)
		}
		for _, reservation := range out.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, c.toInstance(inst))
			}
		}
		if out.NextToken == nil {
			return instances, nil
		}
		input.NextToken = out.NextToken
	}
}

// GetInstance returns one instance by ID.
func (c *Client) GetInstance(ctx context.Context, id string) (cloud.Instance, error) {
	raw, err := c.rawInstance(ctx, id)
	if err != nil {
		return cloud.Instance{}, err
	}
	return c.toInstance(raw), nil
}

// CreateInstance launches one instance from the launch spec. The
// recovery policy is validated locally and recorded in a tag; EC2
// cannot change it after launch.
func (c *Client) CreateInstance(ctx context.Context, spec cloud.LaunchSpec) (cloud.Instance, error) {
	autoRecovery, err := autoRecoveryFor(spec.RecoveryPolicy)
	if err != nil {
		return cloud.Instance{}, err
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.Image),
		InstanceType: ec2types.InstanceType(spec.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		MaintenanceOptions: &ec2types.InstanceMaintenanceOptionsRequest{
			AutoRecovery: autoRecovery,
		},
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags:         launchTags(spec),
		}},
	}
	if spec.SSHKeyName != "" {
		input.KeyName = aws.String(spec.SSHKeyName)
	}
	if spec.SubnetID != "" {
		input.SubnetId = aws.String(spec.SubnetID)
	}
	if spec.UserData != "" {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(spec.UserData)))
	}
	if spec.DiskSizeGB > 0 {
		input.BlockDeviceMappings = []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String(rootDeviceName),
			Ebs: &ec2types.EbsBlockDevice{
				VolumeSize:          aws.Int32(int32(spec.DiskSizeGB)),
				VolumeType:          ec2types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(true),
			},
		}}
	}

	out, err := c.api.RunInstances(ctx, input)
	if err != nil {
		return cloud.Instance{}, wrapError("RunInstances", err)
	}
	if len(out.Instances) == 0 {
		return cloud.Instance{}, fmt.Errorf("RunInstances returned no instance")
	}
	return c.toInstance(out.Instances[0]), nil
}

// StartInstance starts a stopped instance. Starting a running instance
// is a no-op on the provider side.
func (c *Client) StartInstance(ctx context.Context, id string) error {
	_, err := c.api.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}})
	if isInstanceGone(err) {
		return &cloud.NotFoundError{InstanceID: id}
	}
	return wrapError("StartInstances", err)
}

// StopInstance stops a running instance. Stopping a stopped instance is
// a no-op on the provider side.
func (c *Client) StopInstance(ctx context.Context, id string) error {
	_, err := c.api.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}})
	if isInstanceGone(err) {
		return &cloud.NotFoundError{InstanceID: id}
	}
	return wrapError("StopInstances", err)
}

// TerminateInstance terminates the instance. An already-gone instance is
// a no-op success.
func (c *Client) TerminateInstance(ctx context.Context, id string) error {
	_, err := c.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
	if isInstanceGone(err) {
		return nil
	}
	return wrapError("TerminateInstances", err)
}

// SetRecoveryPolicy fails fast when the requested policy differs from the
// one recorded at create time. No provider call can change it, so none is
// issued.
func (c *Client) SetRecoveryPolicy(ctx context.Context, id, policy string) error {
	if _, err := autoRecoveryFor(policy); err != nil {
		return err
	}
	tags, err := c.Tags(ctx, id)
	if err != nil {
		return err
	}
	if tags[cloud.TagRecoveryPolicy] == policy {
		return nil
	}
	return &cloud.ImmutablePropertyError{InstanceID: id, Property: "recovery_policy"}
}

// IsInstanceRunning reports whether the instance is in the running state.
func (c *Client) IsInstanceRunning(ctx context.Context, id string) (bool, error) {
	inst, err := c.GetInstance(ctx, id)
	if err != nil {
		return false, err
	}
	return inst.State == cloud.StateRunning, nil
}

// InternalAddress returns the instance's private IPv4 address.
func (c *Client) InternalAddress(ctx context.Context, id string) (string, error) {
	inst, err := c.GetInstance(ctx, id)
	if err != nil {
		return "", err
	}
	return inst.InternalAddress, nil
}

// ExternalAddress returns the instance's public IPv4 address, empty when
// none is assigned.
func (c *Client) ExternalAddress(ctx context.Context, id string) (string, error) {
	inst, err := c.GetInstance(ctx, id)
	if err != nil {
		return "", err
	}
	return inst.ExternalAddress, nil
}

// Tags returns the instance's tags.
func (c *Client) Tags(ctx context.Context, id string) (map[string]string, error) {
	raw, err := c.rawInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	return tagMap(raw.Tags), nil
}

// SetTags creates or overwrites the given tags on the instance.
func (c *Client) SetTags(ctx context.Context, id string, tags map[string]string) error {
	ec2Tags := make([]ec2types.Tag, 0, len(tags))
	for key, value := range tags {
		ec2Tags = append(ec2Tags, ec2types.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	_, err := c.api.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      ec2Tags,
	})
	return wrapError("CreateTags", err)
}

func (c *Client) rawInstance(ctx context.Context, id string) (ec2types.Instance, error) {
	out, err := c.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		if isInstanceGone(err) {
			return ec2types.Instance{}, &cloud.NotFoundError{InstanceID: id}
		}
		return ec2types.Instance{}, wrapError("DescribeInstances", err)
	}
	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			return inst, nil
		}
	}
	return ec2types.Instance{}, &cloud.NotFoundError{InstanceID: id}
}

func (c *Client) toInstance(raw ec2types.Instance) cloud.Instance {
	tags := tagMap(raw.Tags)
	inst := cloud.Instance{
		ID:                aws.ToString(raw.InstanceId),
		Provider:          providerName,
		Region:            c.region,
		ClusterName:       tags[cloud.TagClusterName],
		NodeRole:          cloud.NodeRole(tags[cloud.TagNodeRole]),
		LaunchFingerprint: tags[cloud.TagFingerprint],
		State:             stateFromEC2(raw.State),
		LastObservedAt:    time.Now(),
		InternalAddress:   aws.ToString(raw.PrivateIpAddress),
		ExternalAddress:   aws.ToString(raw.PublicIpAddress),
	}
	if raw.LaunchTime != nil {
		inst.CreatedAt = *raw.LaunchTime
	}
	return inst
}

func stateFromEC2(state *ec2types.InstanceState) cloud.InstanceState {
	if state == nil {
		return cloud.StateError
	}
	switch state.Name {
	case ec2types.InstanceStateNamePending:
		return cloud.StatePending
	case ec2types.InstanceStateNameRunning:
		return cloud.StateRunning
	case ec2types.InstanceStateNameStopping:
		return cloud.StateStopping
	case ec2types.InstanceStateNameStopped:
		return cloud.StateStopped
	case ec2types.InstanceStateNameShuttingDown:
		return cloud.StateTerminating
	case ec2types.InstanceStateNameTerminated:
		return cloud.StateTerminated
	default:
		return cloud.StateError
	}
}

func autoRecoveryFor(policy string) (ec2types.InstanceAutoRecoveryState, error) {
	switch policy {
	case cloud.RecoveryPolicyRestart:
		return ec2types.InstanceAutoRecoveryStateDefault, nil
	case cloud.RecoveryPolicyFail:
		return ec2types.InstanceAutoRecoveryStateDisabled, nil
	default:
		return "", &cloud.ValidationError{
			Op:  "RunInstances",
			Err: fmt.Errorf("unknown recovery policy %q", policy),
		}
	}
}

func launchTags(spec cloud.LaunchSpec) []ec2types.Tag {
	tags := map[string]string{
		"Name":                  fmt.Sprintf("%s-%s", spec.ClusterName, spec.NodeRole),
		cloud.TagClusterName:    spec.ClusterName,
		cloud.TagNodeRole:       string(spec.NodeRole),
		cloud.TagFingerprint:    spec.Fingerprint,
		cloud.TagRecoveryPolicy: spec.RecoveryPolicy,
	}
	for key, value := range spec.ExtraTags {
		tags[key] = value
	}

	out := make([]ec2types.Tag, 0, len(tags))
	for key, value := range tags {
		out = append(out, ec2types.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	return out
}

func tagMap(tags []ec2types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		out[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return out
}
