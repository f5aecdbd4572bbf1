// Package reconcile maps desired instance counts against observed
// provider state and carries out the minimal set of provider operations.
package reconcile

import (
	"sort"

	"github.com/joncarter1/brr/internal/cloud"
)

// ActionKind enumerates the operations a pass can schedule.
type ActionKind string

const (
	ActionCreate    ActionKind = "create"
	ActionRestart   ActionKind = "restart"
	ActionStop      ActionKind = "stop"
	ActionTerminate ActionKind = "terminate"
)

// Action is one scheduled provider operation. InstanceID is empty for
// creates. Stale marks terminations that remove instances whose launch
// fingerprint no longer matches; those are never deferred behind
// scale-up work, and Cause carries the StaleCacheError that forced them.
type Action struct {
	Kind       ActionKind
	InstanceID string
	Stale      bool
	Cause      error
}

// PlanInput is everything the decision function needs. It is pure data:
// the caller lists instances (one role only) and states the goal.
type PlanInput struct {
	Desired     int
	Fingerprint string
	CachePolicy bool
	Instances   []cloud.Instance
}

// Plan computes the operations that move observed state to desired state.
// It is a pure function of its input, so every stop-vs-terminate and
// restart-vs-create decision is directly unit-testable.
//
// Ordering of the returned slice is the execution order contract: stale
// terminations come first, then restarts, creates, and scale-down
// actions. An unchanged world yields an empty plan.
func Plan(in PlanInput) []Action {
	var actions []Action

	// Partition. Stale instances can never satisfy demand and are
	// always removed, whatever the desired count says.
	var running, stopped, inFlight []cloud.Instance
	for _, inst := range in.Instances {
		if inst.State.IsTerminal() {
			continue
		}
		if inst.LaunchFingerprint != in.Fingerprint {
			actions = append(actions, Action{
				Kind:       ActionTerminate,
				InstanceID: inst.ID,
				Stale:      true,
				Cause: &cloud.StaleCacheError{
					InstanceID:  inst.ID,
					Fingerprint: inst.LaunchFingerprint,
					Want:        in.Fingerprint,
				},
			})
			continue
		}
		switch inst.State {
		case cloud.StateRunning:
			running = append(running, inst)
		case cloud.StateStopped:
			stopped = append(stopped, inst)
		case cloud.StatePending, cloud.StateRestarting:
			inFlight = append(inFlight, inst)
		case cloud.StateStopping:
			// Will settle as stopped; nothing to do this pass.
		case cloud.StateError:
			// Needs operator attention; never auto-retried.
		}
	}

	oldestFirst(running)
	oldestFirst(stopped)

	supply := len(running) + len(inFlight)

	switch {
	case supply < in.Desired:
		deficit := in.Desired - supply

		// Restarting a stopped instance is cheaper than creating and
		// preserves its identity and addresses.
		restarts := min(deficit, len(stopped))
		for _, inst := range stopped[:restarts] {
			actions = append(actions, Action{Kind: ActionRestart, InstanceID: inst.ID})
		}
		stopped = stopped[restarts:]

		for i := 0; i < deficit-restarts; i++ {
			actions = append(actions, Action{Kind: ActionCreate})
		}

	case supply > in.Desired:
		// Oldest first, to bound the cost of long-lived instances.
		excess := running[:min(supply-in.Desired, len(running))]
		for _, inst := range excess {
			if in.CachePolicy {
				actions = append(actions, Action{Kind: ActionStop, InstanceID: inst.ID})
			} else {
				actions = append(actions, Action{Kind: ActionTerminate, InstanceID: inst.ID})
			}
		}
	}

	// Cached capacity only exists under the cache policy. Without it,
	// leftover stopped instances are cost with no path back into service.
	if !in.CachePolicy {
		for _, inst := range stopped {
			actions = append(actions, Action{Kind: ActionTerminate, InstanceID: inst.ID})
		}
	}

	return actions
}

func oldestFirst(instances []cloud.Instance) {
	sort.Slice(instances, func(i, j int) bool {
		if instances[i].CreatedAt.Equal(instances[j].CreatedAt) {
			return instances[i].ID < instances[j].ID
		}
		return instances[i].CreatedAt.Before(instances[j].CreatedAt)
	})
}
