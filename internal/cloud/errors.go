package cloud

import (
	"errors"
	"fmt"
)

// TransientError wraps a provider failure that is safe to retry with
// backoff: rate limits, timeouts, temporary conflicts.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient provider error: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks err as retryable. Returns nil for a nil err.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// QuotaExceededError means the provider refused a create for capacity or
// quota reasons. Not retryable within a pass.
type QuotaExceededError struct {
	Op  string
	Err error
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: quota exceeded: %v", e.Op, e.Err)
}

func (e *QuotaExceededError) Unwrap() error { return e.Err }

// ValidationError means the provider (or client-side validation) rejected
// the request contents. Not retryable.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ImmutablePropertyError reports an attempt to change a field the provider
// documents as immutable after creation. It is raised locally, before any
// provider call is issued.
type ImmutablePropertyError struct {
	InstanceID string
	Property   string
}

func (e *ImmutablePropertyError) Error() string {
	return fmt.Sprintf("instance %s: property %q is immutable after creation", e.InstanceID, e.Property)
}

// UnresolvedConfigError reports a launch-configuration field that still
// contains a template placeholder. It is fatal for that one instance's
// operation; the rest of the batch proceeds.
type UnresolvedConfigError struct {
	Field string
	Token string
}

func (e *UnresolvedConfigError) Error() string {
	return fmt.Sprintf("launch config field %q contains unresolved placeholder %s", e.Field, e.Token)
}

// StaleCacheError reports a cached (stopped) instance whose launch
// fingerprint no longer matches the desired configuration. Such an
// instance is always destroyed, never restarted.
type StaleCacheError struct {
	InstanceID  string
	Fingerprint string
	Want        string
}

func (e *StaleCacheError) Error() string {
	return fmt.Sprintf("instance %s: cached with stale fingerprint %s (current %s)",
		e.InstanceID, e.Fingerprint, e.Want)
}

// NotFoundError reports an instance the provider no longer knows about.
type NotFoundError struct {
	InstanceID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("instance %s not found", e.InstanceID)
}

// IsNotFound reports whether err indicates a missing instance.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
