package teardown

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/joncarter1/brr/internal/cloud"
	"github.com/joncarter1/brr/internal/util/async"
)

const defaultWorkersPerRegion = 10

// ConfirmFunc gates destruction. It runs after discovery and before any
// destroy call; declining leaves every resource untouched.
type ConfirmFunc func(plan *Plan) (bool, error)

// Orchestrator runs teardown for one provider.
type Orchestrator struct {
	discoverer       cloud.ResourceDiscoverer
	workersPerRegion int
	confirm          ConfirmFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkersPerRegion bounds concurrent destroys within each region.
func WithWorkersPerRegion(n int) Option {
	return func(o *Orchestrator) { o.workersPerRegion = n }
}

// WithConfirm installs the confirmation gate used by Run. Without one,
// Run destroys unconditionally.
func WithConfirm(fn ConfirmFunc) Option {
	return func(o *Orchestrator) { o.confirm = fn }
}

// New creates an Orchestrator over the given discoverer.
func New(discoverer cloud.ResourceDiscoverer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		discoverer:       discoverer,
		workersPerRegion: defaultWorkersPerRegion,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Discover enumerates all live resources across the provider's regions
// (or the given subset) and freezes them into a Plan. A discovery
// failure in any region aborts the run: destroying from an incomplete
// plan would leave unreported leftovers.
func (o *Orchestrator) Discover(ctx context.Context, regionFilter []string) (*Plan, error) {
	regions := regionFilter
	if len(regions) == 0 {
		var err error
		regions, err = o.discoverer.Regions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list regions: %w", err)
		}
	}

	plan := &Plan{
		Provider: o.discoverer.Name(),
		byRegion: make(map[string][]cloud.Resource, len(regions)),
	}

	var mu sync.Mutex
	tasks := make([]async.Task, 0, len(regions))
	for _, region := range regions {
		tasks = append(tasks, async.Task{
			Name: region,
			Func: func(ctx context.Context) error {
				resources, err := o.discoverer.DiscoverResources(ctx, region)
				if err != nil {
					return err
				}
				if len(resources) == 0 {
					return nil
				}
				mu.Lock()
				plan.byRegion[region] = resources
				mu.Unlock()
				return nil
			},
		})
	}
	if err := async.RunAll(ctx, tasks); err != nil {
		return nil, fmt.Errorf("discover resources: %w", err)
	}

	log.Printf("[Teardown] %s: discovered %d resource(s) across %d region(s)",
		plan.Provider, plan.Size(), len(plan.byRegion))
	return plan, nil
}

// Execute destroys every plan entry. Regions run in parallel; within a
// region, destroy stages run in order and entries within a stage run
// with bounded parallelism. A failed entry never cancels its siblings.
// Cancellation stops issuing new destroy calls; entries never issued are
// recorded as not attempted, so every entry ends in exactly one bucket.
func (o *Orchestrator) Execute(ctx context.Context, plan *Plan) *Report {
	report := &Report{}

	regionTasks := make([]async.Task, 0, len(plan.byRegion))
	for _, region := range plan.Regions() {
		regionTasks = append(regionTasks, async.Task{
			Name: region,
			Func: func(ctx context.Context) error {
				o.destroyRegion(ctx, plan.stagedRegion(region), report)
				return nil
			},
		})
	}
	_ = async.RunAll(ctx, regionTasks)

	log.Printf("[Teardown] %s: %d destroyed, %d failed, %d not attempted",
		plan.Provider, len(report.Succeeded), len(report.Failed), len(report.NotAttempted))
	return report
}

// Run is discover, confirm, destroy. Declining the confirmation returns
// a report with SkippedDueToDecline set and no resources touched.
func (o *Orchestrator) Run(ctx context.Context, regionFilter []string) (*Report, error) {
	plan, err := o.Discover(ctx, regionFilter)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return &Report{}, nil
	}

	if o.confirm != nil {
		ok, err := o.confirm(plan)
		if err != nil {
			return nil, fmt.Errorf("confirm teardown: %w", err)
		}
		if !ok {
			log.Printf("[Teardown] %s: declined, nothing destroyed", plan.Provider)
			return &Report{SkippedDueToDecline: true}, nil
		}
	}

	report := o.Execute(ctx, plan)
	return report, report.Err()
}

// destroyRegion walks one region's resources stage by stage. Entries in
// a stage share no ordering dependency and run concurrently; a later
// stage starts only once the previous stage has fully settled.
func (o *Orchestrator) destroyRegion(ctx context.Context, staged []cloud.Resource, report *Report) {
	for start := 0; start < len(staged); {
		stage := staged[start].Kind.DestroyStage()
		end := start
		for end < len(staged) && staged[end].Kind.DestroyStage() == stage {
			end++
		}

		tasks := make([]async.Task, 0, end-start)
		for _, res := range staged[start:end] {
			tasks = append(tasks, async.Task{
				Name: res.String(),
				Func: func(ctx context.Context) error {
					o.destroyOne(ctx, res, report)
					return nil
				},
			})
		}
		_ = async.RunBounded(ctx, o.workersPerRegion, tasks)
		start = end
	}
}

func (o *Orchestrator) destroyOne(ctx context.Context, res cloud.Resource, report *Report) {
	if ctx.Err() != nil {
		report.notAttempted(res)
		return
	}
	if err := o.discoverer.DestroyResource(ctx, res); err != nil {
		log.Printf("[Teardown] destroy %s failed: %v", res, err)
		report.failed(res, err)
		return
	}
	report.succeeded(res)
}
