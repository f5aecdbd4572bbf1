package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joncarter1/brr/internal/cloud"
)

const fp = "fp-current"

func worker(id string, state cloud.InstanceState, fingerprint string, age time.Duration) cloud.Instance {
	return cloud.Instance{
		ID:                id,
		NodeRole:          cloud.RoleWorker,
		State:             state,
		LaunchFingerprint: fingerprint,
		CreatedAt:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}

func kinds(actions []Action) map[ActionKind]int {
	out := map[ActionKind]int{}
	for _, a := range actions {
		out[a.Kind]++
	}
	return out
}

func ids(actions []Action, kind ActionKind) []string {
	var out []string
	for _, a := range actions {
		if a.Kind == kind {
			out = append(out, a.InstanceID)
		}
	}
	return out
}

func TestPlanUnchangedWorldIsEmpty(t *testing.T) {
	actions := Plan(PlanInput{
		Desired:     3,
		Fingerprint: fp,
		CachePolicy: true,
		Instances: []cloud.Instance{
			worker("w-1", cloud.StateRunning, fp, 3*time.Hour),
			worker("w-2", cloud.StateRunning, fp, 2*time.Hour),
			worker("w-3", cloud.StateRunning, fp, time.Hour),
		},
	})
	assert.Empty(t, actions, "a pass over an in-sync cluster schedules nothing")
}

func TestPlanPendingCountsTowardSupply(t *testing.T) {
	// The pass after a scale-up sees its creations still pending; it
	// must not create again.
	actions := Plan(PlanInput{
		Desired:     2,
		Fingerprint: fp,
		CachePolicy: true,
		Instances: []cloud.Instance{
			worker("w-1", cloud.StateRunning, fp, time.Hour),
			worker("w-2", cloud.StatePending, fp, time.Minute),
		},
	})
	assert.Empty(t, actions)
}

func TestPlanRestartsBeforeCreating(t *testing.T) {
	actions := Plan(PlanInput{
		Desired:     4,
		Fingerprint: fp,
		CachePolicy: true,
		Instances: []cloud.Instance{
			worker("w-1", cloud.StateRunning, fp, 3*time.Hour),
			worker("w-2", cloud.StateStopped, fp, 2*time.Hour),
			worker("w-3", cloud.StateStopped, fp, time.Hour),
		},
	})

	counts := kinds(actions)
	assert.Equal(t, 2, counts[ActionRestart], "stopped instances are cheapest")
	assert.Equal(t, 1, counts[ActionCreate], "only the remaining deficit is created")
	assert.Zero(t, counts[ActionTerminate])
}

func TestPlanScaleDownCachePolicy(t *testing.T) {
	instances := []cloud.Instance{
		worker("w-1", cloud.StateRunning, fp, 5*time.Hour),
		worker("w-2", cloud.StateRunning, fp, 4*time.Hour),
		worker("w-3", cloud.StateRunning, fp, 3*time.Hour),
		worker("w-4", cloud.StateRunning, fp, 2*time.Hour),
		worker("w-5", cloud.StateRunning, fp, time.Hour),
	}

	t.Run("caching enabled stops oldest", func(t *testing.T) {
		actions := Plan(PlanInput{Desired: 2, Fingerprint: fp, CachePolicy: true, Instances: instances})
		assert.Equal(t, []string{"w-1", "w-2", "w-3"}, ids(actions, ActionStop))
		assert.Empty(t, ids(actions, ActionTerminate))
	})

	t.Run("caching disabled terminates oldest", func(t *testing.T) {
		actions := Plan(PlanInput{Desired: 2, Fingerprint: fp, CachePolicy: false, Instances: instances})
		assert.Equal(t, []string{"w-1", "w-2", "w-3"}, ids(actions, ActionTerminate))
		assert.Empty(t, ids(actions, ActionStop))
	})
}

// Scaling 5 -> 2 -> 5 with caching must bring back the three stopped
// instances rather than creating new ones.
func TestPlanCacheRoundTrip(t *testing.T) {
	up := []cloud.Instance{
		worker("w-1", cloud.StateRunning, fp, 5*time.Hour),
		worker("w-2", cloud.StateRunning, fp, 4*time.Hour),
		worker("w-3", cloud.StateRunning, fp, 3*time.Hour),
		worker("w-4", cloud.StateRunning, fp, 2*time.Hour),
		worker("w-5", cloud.StateRunning, fp, time.Hour),
	}

	down := Plan(PlanInput{Desired: 2, Fingerprint: fp, CachePolicy: true, Instances: up})
	stoppedIDs := ids(down, ActionStop)
	require.Len(t, stoppedIDs, 3)

	// World after the stops settle.
	after := make([]cloud.Instance, len(up))
	copy(after, up)
	for i := range after {
		for _, id := range stoppedIDs {
			if after[i].ID == id {
				after[i].State = cloud.StateStopped
			}
		}
	}

	back := Plan(PlanInput{Desired: 5, Fingerprint: fp, CachePolicy: true, Instances: after})
	assert.ElementsMatch(t, stoppedIDs, ids(back, ActionRestart), "same instances come back")
	assert.Empty(t, ids(back, ActionCreate))
}

func TestPlanStaleAlwaysTerminated(t *testing.T) {
	actions := Plan(PlanInput{
		Desired:     2,
		Fingerprint: fp,
		CachePolicy: true,
		Instances: []cloud.Instance{
			worker("w-1", cloud.StateRunning, fp, 2*time.Hour),
			// Cached instance from an older launch configuration:
			// demand would reuse it, staleness forbids that.
			worker("w-old", cloud.StateStopped, "fp-old", 10*time.Hour),
		},
	})

	require.NotEmpty(t, actions)
	assert.Equal(t, ActionTerminate, actions[0].Kind, "stale termination is scheduled first")
	assert.Equal(t, "w-old", actions[0].InstanceID)
	assert.True(t, actions[0].Stale)

	var stale *cloud.StaleCacheError
	require.ErrorAs(t, actions[0].Cause, &stale)
	assert.Equal(t, "w-old", stale.InstanceID)
	assert.Equal(t, "fp-old", stale.Fingerprint)
	assert.Equal(t, fp, stale.Want)

	counts := kinds(actions)
	assert.Equal(t, 1, counts[ActionCreate], "deficit is filled by create, never the stale instance")
	assert.Zero(t, counts[ActionRestart])
}

func TestPlanStaleTerminatedEvenWhenExcess(t *testing.T) {
	actions := Plan(PlanInput{
		Desired:     1,
		Fingerprint: fp,
		CachePolicy: true,
		Instances: []cloud.Instance{
			worker("w-1", cloud.StateRunning, fp, time.Hour),
			worker("w-stale", cloud.StatePending, "fp-old", time.Minute),
		},
	})

	assert.Equal(t, []string{"w-stale"}, ids(actions, ActionTerminate))
}

func TestPlanTerminalAndErrorInstancesUntouched(t *testing.T) {
	actions := Plan(PlanInput{
		Desired:     1,
		Fingerprint: fp,
		CachePolicy: false,
		Instances: []cloud.Instance{
			worker("w-1", cloud.StateRunning, fp, time.Hour),
			worker("w-gone", cloud.StateTerminating, "fp-old", 9*time.Hour),
			worker("w-err", cloud.StateError, fp, 4*time.Hour),
		},
	})
	assert.Empty(t, actions, "terminating instances are already handled; error needs an operator")
}

func TestPlanCachingDisabledDrainsLeftoverStopped(t *testing.T) {
	actions := Plan(PlanInput{
		Desired:     1,
		Fingerprint: fp,
		CachePolicy: false,
		Instances: []cloud.Instance{
			worker("w-1", cloud.StateRunning, fp, 2*time.Hour),
			worker("w-2", cloud.StateStopped, fp, time.Hour),
		},
	})
	assert.Equal(t, []string{"w-2"}, ids(actions, ActionTerminate))
}
