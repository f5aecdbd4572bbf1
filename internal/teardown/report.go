package teardown

import (
	"fmt"
	"strings"
	"sync"

	"github.com/joncarter1/brr/internal/cloud"
)

// Failure records one plan entry that could not be destroyed.
type Failure struct {
	Resource cloud.Resource
	Err      error
}

// Report is the outcome of one teardown run. Every plan entry ends up in
// exactly one of Succeeded, Failed, or NotAttempted; nothing is dropped.
type Report struct {
	mu sync.Mutex

	Succeeded    []cloud.Resource
	Failed       []Failure
	NotAttempted []cloud.Resource

	// SkippedDueToDecline means the user refused confirmation and no
	// resource was touched.
	SkippedDueToDecline bool
}

func (r *Report) succeeded(res cloud.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Succeeded = append(r.Succeeded, res)
}

func (r *Report) failed(res cloud.Resource, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, Failure{Resource: res, Err: err})
}

func (r *Report) notAttempted(res cloud.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.NotAttempted = append(r.NotAttempted, res)
}

// Err returns a PartialFailureError when any entry failed or was left
// unattempted, and nil after a fully successful (or declined) run.
func (r *Report) Err() error {
	if len(r.Failed) == 0 && len(r.NotAttempted) == 0 {
		return nil
	}
	return &PartialFailureError{
		Failures:     r.Failed,
		NotAttempted: r.NotAttempted,
	}
}

// PartialFailureError aggregates every failed teardown entry with its
// cause. It is never collapsed into a bare "not all resources cleaned
// up" message.
type PartialFailureError struct {
	Failures     []Failure
	NotAttempted []cloud.Resource
}

func (e *PartialFailureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "teardown incomplete: %d failed, %d not attempted", len(e.Failures), len(e.NotAttempted))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Resource, f.Err)
	}
	for _, res := range e.NotAttempted {
		fmt.Fprintf(&b, "\n  %s: not attempted", res)
	}
	return b.String()
}
