package cloud

import "context"

// MockProvider implements NodeProvider and ResourceDiscoverer with
// replaceable function fields for tests.
type MockProvider struct {
	NameValue string

	ListInstancesFunc     func(ctx context.Context, clusterName string) ([]Instance, error)
	GetInstanceFunc       func(ctx context.Context, id string) (Instance, error)
	CreateInstanceFunc    func(ctx context.Context, spec LaunchSpec) (Instance, error)
	StartInstanceFunc     func(ctx context.Context, id string) error
	StopInstanceFunc      func(ctx context.Context, id string) error
	TerminateInstanceFunc func(ctx context.Context, id string) error
	SetRecoveryPolicyFunc func(ctx context.Context, id, policy string) error
	IsInstanceRunningFunc func(ctx context.Context, id string) (bool, error)
	InternalAddressFunc   func(ctx context.Context, id string) (string, error)
	ExternalAddressFunc   func(ctx context.Context, id string) (string, error)
	TagsFunc              func(ctx context.Context, id string) (map[string]string, error)
	SetTagsFunc           func(ctx context.Context, id string, tags map[string]string) error

	RegionsFunc           func(ctx context.Context) ([]string, error)
	DiscoverResourcesFunc func(ctx context.Context, region string) ([]Resource, error)
	DestroyResourceFunc   func(ctx context.Context, r Resource) error
}

func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockProvider) ListInstances(ctx context.Context, clusterName string) ([]Instance, error) {
	return m.ListInstancesFunc(ctx, clusterName)
}

func (m *MockProvider) GetInstance(ctx context.Context, id string) (Instance, error) {
	return m.GetInstanceFunc(ctx, id)
}

func (m *MockProvider) CreateInstance(ctx context.Context, spec LaunchSpec) (Instance, error) {
	return m.CreateInstanceFunc(ctx, spec)
}

func (m *MockProvider) StartInstance(ctx context.Context, id string) error {
	return m.StartInstanceFunc(ctx, id)
}

func (m *MockProvider) StopInstance(ctx context.Context, id string) error {
	return m.StopInstanceFunc(ctx, id)
}

func (m *MockProvider) TerminateInstance(ctx context.Context, id string) error {
	return m.TerminateInstanceFunc(ctx, id)
}

func (m *MockProvider) SetRecoveryPolicy(ctx context.Context, id, policy string) error {
	return m.SetRecoveryPolicyFunc(ctx, id, policy)
}

func (m *MockProvider) IsInstanceRunning(ctx context.Context, id string) (bool, error) {
	return m.IsInstanceRunningFunc(ctx, id)
}

func (m *MockProvider) InternalAddress(ctx context.Context, id string) (string, error) {
	return m.InternalAddressFunc(ctx, id)
}

func (m *MockProvider) ExternalAddress(ctx context.Context, id string) (string, error) {
	return m.ExternalAddressFunc(ctx, id)
}

func (m *MockProvider) Tags(ctx context.Context, id string) (map[string]string, error) {
	return m.TagsFunc(ctx, id)
}

func (m *MockProvider) SetTags(ctx context.Context, id string, tags map[string]string) error {
	return m.SetTagsFunc(ctx, id, tags)
}

func (m *MockProvider) Regions(ctx context.Context) ([]string, error) {
	return m.RegionsFunc(ctx)
}

func (m *MockProvider) DiscoverResources(ctx context.Context, region string) ([]Resource, error) {
	return m.DiscoverResourcesFunc(ctx, region)
}

func (m *MockProvider) DestroyResource(ctx context.Context, r Resource) error {
	return m.DestroyResourceFunc(ctx, r)
}
