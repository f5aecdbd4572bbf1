// Package cloud defines the provider-neutral instance model and the
// plugin contract every cloud adapter implements.
package cloud

import (
	"fmt"
	"time"
)

// NodeRole distinguishes the cluster head from its workers.
type NodeRole string

const (
	RoleHead   NodeRole = "head"
	RoleWorker NodeRole = "worker"
)

// InstanceState is the provider-neutral lifecycle state of an instance.
type InstanceState string

const (
	StatePending     InstanceState = "pending"
	StateRunning     InstanceState = "running"
	StateStopping    InstanceState = "stopping"
	StateStopped     InstanceState = "stopped"
	StateRestarting  InstanceState = "restarting"
	StateTerminating InstanceState = "terminating"
	StateTerminated  InstanceState = "terminated"
	// StateError is provider-assigned and requires operator attention.
	// It is never entered by this tool's own transitions.
	StateError InstanceState = "error"
)

// Tag keys written to every instance this tool creates. Adapters map them
// onto the provider's native tag/label mechanism.
const (
	TagClusterName = "brr-cluster-name"
	TagNodeRole    = "brr-node-role"
	TagFingerprint = "brr-launch-fingerprint"
	// TagRecoveryPolicy records the policy chosen at create time, so a
	// later SetRecoveryPolicy call can be checked without a provider
	// round trip.
	TagRecoveryPolicy = "brr-recovery-policy"
)

// Instance is one provisioned compute resource.
type Instance struct {
	ID                string
	Provider          string
	Region            string
	ClusterName       string
	NodeRole          NodeRole
	LaunchFingerprint string
	State             InstanceState
	CreatedAt         time.Time
	LastObservedAt    time.Time
	InternalAddress   string
	ExternalAddress   string
}

// IsTerminal reports whether the instance can never serve demand again.
func (s InstanceState) IsTerminal() bool {
	return s == StateTerminating || s == StateTerminated
}

// allowedTransitions enumerates every permitted state transition.
// Anything else is an invariant violation.
var allowedTransitions = map[InstanceState][]InstanceState{
	StatePending:     {StateRunning, StateTerminating, StateError},
	StateRunning:     {StateStopping, StateTerminating, StateError},
	StateStopping:    {StateStopped, StateError},
	StateStopped:     {StateRestarting, StateTerminating},
	StateRestarting:  {StateRunning},
	StateTerminating: {StateTerminated},
	StateTerminated:  {},
	StateError:       {StateTerminating},
}

// CanTransition reports whether from -> to is a permitted transition.
func CanTransition(from, to InstanceState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a state change on the instance.
func (i *Instance) Transition(to InstanceState) error {
	if !CanTransition(i.State, to) {
		return &InvariantViolationError{
			InstanceID: i.ID,
			From:       i.State,
			To:         to,
		}
	}
	i.State = to
	return nil
}

// InvariantViolationError reports a state transition outside the
// lifecycle machine.
type InvariantViolationError struct {
	InstanceID string
	From       InstanceState
	To         InstanceState
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("instance %s: illegal transition %s -> %s", e.InstanceID, e.From, e.To)
}

// ClusterView is a point-in-time snapshot of one cluster's instances
// within a single provider and region, keyed by instance ID. It is
// rebuilt from provider truth on every reconciliation pass.
type ClusterView map[string]Instance

// NewClusterView builds a view from a listing result.
func NewClusterView(instances []Instance) ClusterView {
	view := make(ClusterView, len(instances))
	for _, inst := range instances {
		view[inst.ID] = inst
	}
	return view
}

// ByRole returns the instances holding the given role, unordered.
func (v ClusterView) ByRole(role NodeRole) []Instance {
	var out []Instance
	for _, inst := range v {
		if inst.NodeRole == role {
			out = append(out, inst)
		}
	}
	return out
}
