package cloud

import (
	"context"
	"fmt"
	"sync"
)

// LaunchSpec holds everything needed to create one instance. The
// Fingerprint must be the hash of the fields that define the node's
// launch configuration; an instance whose recorded fingerprint differs
// is stale and is only ever destroyed.
type LaunchSpec struct {
	ClusterName    string
	NodeRole       NodeRole
	Fingerprint    string
	Region         string
	InstanceType   string
	Image          string
	DiskSizeGB     int
	SubnetID       string
	SSHKeyName     string
	UserData       string
	// RecoveryPolicy is immutable after creation on every supported
	// provider. Adapters validate it before the create call.
	RecoveryPolicy string
	ExtraTags      map[string]string
}

// Recovery policies accepted by the adapters.
const (
	RecoveryPolicyFail    = "fail"
	RecoveryPolicyRestart = "restart"
)

// NodeProvider is the plugin contract the orchestration engine calls.
// All operations are synchronous and idempotent: stopping a stopped
// instance (or terminating a terminated one) is a no-op success.
type NodeProvider interface {
	Name() string

	// ListInstances returns every instance of the cluster in any
	// non-terminated provider state, including provider error states
	// that are visible and billable but not equivalent to deletion.
	ListInstances(ctx context.Context, clusterName string) ([]Instance, error)
	GetInstance(ctx context.Context, id string) (Instance, error)

	CreateInstance(ctx context.Context, spec LaunchSpec) (Instance, error)
	StartInstance(ctx context.Context, id string) error
	StopInstance(ctx context.Context, id string) error
	TerminateInstance(ctx context.Context, id string) error

	// SetRecoveryPolicy exists so callers hit a fast local failure
	// instead of a doomed provider call: changing the policy after
	// creation returns ImmutablePropertyError without any API traffic.
	SetRecoveryPolicy(ctx context.Context, id, policy string) error

	IsInstanceRunning(ctx context.Context, id string) (bool, error)
	InternalAddress(ctx context.Context, id string) (string, error)
	ExternalAddress(ctx context.Context, id string) (string, error)

	Tags(ctx context.Context, id string) (map[string]string, error)
	SetTags(ctx context.Context, id string, tags map[string]string) error
}

// ResourceKind classifies resources for teardown ordering.
type ResourceKind string

const (
	KindInstance ResourceKind = "instance"
	KindVolume   ResourceKind = "volume"
	KindKeyPair  ResourceKind = "keypair"
	KindNetwork  ResourceKind = "network"
)

// DestroyStage returns the teardown stage for the kind. Lower stages are
// destroyed first within a region; kinds sharing a stage have no ordering
// dependency and may be destroyed in parallel.
func (k ResourceKind) DestroyStage() int {
	switch k {
	case KindInstance:
		return 0
	case KindVolume, KindKeyPair:
		return 1
	case KindNetwork:
		return 2
	default:
		return 3
	}
}

// Resource identifies one destroyable provider resource.
type Resource struct {
	Provider string
	Region   string
	Kind     ResourceKind
	ID       string
	Name     string
}

func (r Resource) String() string {
	name := r.Name
	if name == "" {
		name = r.ID
	}
	return fmt.Sprintf("%s/%s %s %s", r.Provider, r.Region, r.Kind, name)
}

// ResourceDiscoverer enumerates and destroys provider resources for
// teardown. Implemented by the same adapters that implement NodeProvider.
type ResourceDiscoverer interface {
	Name() string
	// Regions returns every region teardown should sweep.
	Regions(ctx context.Context) ([]string, error)
	// DiscoverResources lists all live resources in one region.
	DiscoverResources(ctx context.Context, region string) ([]Resource, error)
	// DestroyResource deletes one resource. Already-gone is a no-op success.
	DestroyResource(ctx context.Context, r Resource) error
}

// Factory constructs a provider bound to one region.
type Factory func(ctx context.Context, region string) (NodeProvider, error)

var (
	providersMu sync.Mutex
	providers   = map[string]Factory{}
)

// RegisterProvider installs a named provider factory. Called from adapter
// packages at init time.
func RegisterProvider(name string, factory Factory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// GetProvider constructs the named provider for the given region.
func GetProvider(ctx context.Context, name, region string) (NodeProvider, error) {
	providersMu.Lock()
	factory, ok := providers[name]
	providersMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return factory(ctx, region)
}

// GetDiscoverer constructs the named provider and asserts its teardown
// capability. Every bundled adapter implements both contracts.
func GetDiscoverer(ctx context.Context, name, region string) (ResourceDiscoverer, error) {
	provider, err := GetProvider(ctx, name, region)
	if err != nil {
		return nil, err
	}
	discoverer, ok := provider.(ResourceDiscoverer)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support teardown", name)
	}
	return discoverer, nil
}
