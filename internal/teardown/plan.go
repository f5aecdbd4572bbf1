// Package teardown discovers and destroys every resource a provider holds
// for this tool, in two phases: a single discovery pass that freezes a
// plan, then parallel destruction that executes exactly that plan.
package teardown

import (
	"sort"

	"github.com/joncarter1/brr/internal/cloud"
)

// Plan is the frozen set of deletions for one run. It is built once,
// before any destruction starts, and never recomputed mid-run, so
// concurrent deletions cannot race against a second discovery pass.
type Plan struct {
	Provider string
	// byRegion preserves the discovery grouping. Regions are independent
	// failure domains and execute in parallel.
	byRegion map[string][]cloud.Resource
}

// Regions returns the plan's regions in stable order.
func (p *Plan) Regions() []string {
	regions := make([]string, 0, len(p.byRegion))
	for region := range p.byRegion {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

// Resources returns every planned deletion, grouped by region then
// ordered by destroy stage. The order matches execution order closely
// enough for display.
func (p *Plan) Resources() []cloud.Resource {
	var out []cloud.Resource
	for _, region := range p.Regions() {
		out = append(out, p.stagedRegion(region)...)
	}
	return out
}

// Size returns the total number of planned deletions.
func (p *Plan) Size() int {
	n := 0
	for _, resources := range p.byRegion {
		n += len(resources)
	}
	return n
}

// Empty reports whether discovery found nothing to destroy.
func (p *Plan) Empty() bool {
	return p.Size() == 0
}

// stagedRegion returns one region's resources sorted by destroy stage.
// Within a stage the discovery order is kept.
func (p *Plan) stagedRegion(region string) []cloud.Resource {
	resources := make([]cloud.Resource, len(p.byRegion[region]))
	copy(resources, p.byRegion[region])
	sort.SliceStable(resources, func(i, j int) bool {
		return resources[i].Kind.DestroyStage() < resources[j].Kind.DestroyStage()
	})
	return resources
}
