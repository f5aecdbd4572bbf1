package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/joncarter1/brr/internal/cloud"
	"github.com/joncarter1/brr/internal/config"
	"github.com/joncarter1/brr/internal/util/async"
	"github.com/joncarter1/brr/internal/util/retry"
)

const defaultParallelism = 8

// Reconciler executes reconciliation passes against one provider.
type Reconciler struct {
	provider    cloud.NodeProvider
	parallelism int
	retryOpts   []retry.Option
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithParallelism bounds concurrent provider calls within a pass.
func WithParallelism(n int) Option {
	return func(r *Reconciler) { r.parallelism = n }
}

// WithRetryOptions overrides the per-operation backoff configuration.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(r *Reconciler) { r.retryOpts = opts }
}

// New creates a Reconciler for the given provider.
func New(provider cloud.NodeProvider, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider:    provider,
		parallelism: defaultParallelism,
		retryOpts:   []retry.Option{retry.WithMaxRetries(3)},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result reports what one pass did. Errored holds instances marked
// error after their operation exhausted its retries (or failed fatally);
// they need operator attention but never abort the rest of the pass.
type Result struct {
	Created    []string
	Restarted  []string
	Stopped    []string
	Terminated []string
	Errored    map[string]error
}

// Empty reports whether the pass changed nothing.
func (res *Result) Empty() bool {
	return len(res.Created) == 0 && len(res.Restarted) == 0 &&
		len(res.Stopped) == 0 && len(res.Terminated) == 0 && len(res.Errored) == 0
}

// Reconcile runs one pass for a single (cluster, role): list, plan,
// execute. Stale terminations complete before any scale-up operation is
// issued, so a fingerprint change can never be masked by new capacity.
// The returned error joins per-instance failures; listing failure is the
// only error that aborts the pass outright.
func (r *Reconciler) Reconcile(ctx context.Context, spec cloud.LaunchSpec, desired int, cachePolicy bool) (*Result, error) {
	instances, err := r.provider.ListInstances(ctx, spec.ClusterName)
	if err != nil {
		return nil, fmt.Errorf("list instances for %s: %w", spec.ClusterName, err)
	}

	view := cloud.NewClusterView(instances)
	actions := Plan(PlanInput{
		Desired:     desired,
		Fingerprint: spec.Fingerprint,
		CachePolicy: cachePolicy,
		Instances:   view.ByRole(spec.NodeRole),
	})

	result := &Result{Errored: map[string]error{}}
	if len(actions) == 0 {
		return result, nil
	}

	log.Printf("[Reconcile] %s/%s: %d operation(s) scheduled (desired=%d, observed=%d)",
		spec.ClusterName, spec.NodeRole, len(actions), desired, len(view.ByRole(spec.NodeRole)))

	var staleTasks, remainingTasks []async.Task
	var mu sync.Mutex

	for i, action := range actions {
		task := r.taskFor(action, spec, i, result, &mu)
		if action.Stale {
			log.Printf("[Reconcile] removing %s: %v", action.InstanceID, action.Cause)
			staleTasks = append(staleTasks, task)
		} else {
			remainingTasks = append(remainingTasks, task)
		}
	}

	// Stale removal first, to completion. Its failures are already
	// recorded per instance and must not block scale work.
	_ = async.RunBounded(ctx, r.parallelism, staleTasks)
	_ = async.RunBounded(ctx, r.parallelism, remainingTasks)

	var errs []error
	for id, opErr := range result.Errored {
		errs = append(errs, fmt.Errorf("%s: %w", id, opErr))
	}
	return result, errors.Join(errs...)
}

// taskFor wraps one action in retry, classification, and result
// recording. index disambiguates creates, which have no instance ID yet.
func (r *Reconciler) taskFor(action Action, spec cloud.LaunchSpec, index int, result *Result, mu *sync.Mutex) async.Task {
	name := action.InstanceID
	if name == "" {
		name = fmt.Sprintf("create-%d", index)
	}

	return async.Task{
		Name: name,
		Func: func(ctx context.Context) error {
			err := r.execute(ctx, action, spec, result, mu)
			if err != nil {
				mu.Lock()
				result.Errored[name] = err
				mu.Unlock()
				log.Printf("[Reconcile] %s %s failed, instance marked error: %v", action.Kind, name, err)
			}
			return err
		},
	}
}

func (r *Reconciler) execute(ctx context.Context, action Action, spec cloud.LaunchSpec, result *Result, mu *sync.Mutex) error {
	// A single unresolved placeholder aborts this one instance's
	// operation; the rest of the batch proceeds.
	if action.Kind == ActionCreate || action.Kind == ActionRestart {
		if err := config.CheckResolved(spec); err != nil {
			return err
		}
	}

	var createdID string
	op := func() error {
		var err error
		switch action.Kind {
		case ActionCreate:
			var inst cloud.Instance
			inst, err = r.provider.CreateInstance(ctx, spec)
			if err == nil {
				createdID = inst.ID
			}
		case ActionRestart:
			err = r.provider.StartInstance(ctx, action.InstanceID)
		case ActionStop:
			err = r.provider.StopInstance(ctx, action.InstanceID)
		case ActionTerminate:
			err = r.provider.TerminateInstance(ctx, action.InstanceID)
		}
		return err
	}

	// Only transient provider errors are worth backing off on; quota,
	// validation, and immutability failures surface immediately.
	opts := append([]retry.Option{retry.WithRetryable(cloud.IsTransient)}, r.retryOpts...)
	if err := retry.WithExponentialBackoff(ctx, op, opts...); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	switch action.Kind {
	case ActionCreate:
		result.Created = append(result.Created, createdID)
	case ActionRestart:
		result.Restarted = append(result.Restarted, action.InstanceID)
	case ActionStop:
		result.Stopped = append(result.Stopped, action.InstanceID)
	case ActionTerminate:
		result.Terminated = append(result.Terminated, action.InstanceID)
	}
	return nil
}
