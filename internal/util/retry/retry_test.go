package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts() []Option {
	return []Option{
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
	}
}

func TestSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExhaustsBoundedAttempts(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return boom
	}, append(fastOpts(), WithMaxRetries(2))...)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
}

func TestFatalErrorNotRetried(t *testing.T) {
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return Fatal(errors.New("bad request"))
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryableClassifierShortCircuits(t *testing.T) {
	marker := errors.New("quota exhausted")
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return marker
	}, append(fastOpts(), WithRetryable(func(err error) bool {
		return !errors.Is(err, marker)
	}))...)

	require.Error(t, err)
	assert.ErrorIs(t, err, marker)
	assert.Equal(t, 1, attempts, "classified non-retryable on the first attempt")
}

func TestContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithExponentialBackoff(ctx, func() error {
		return errors.New("flaky")
	}, WithInitialDelay(time.Minute))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFatalHelpers(t *testing.T) {
	assert.Nil(t, Fatal(nil))
	assert.True(t, IsFatal(Fatal(errors.New("x"))))
	assert.False(t, IsFatal(errors.New("x")))
}
