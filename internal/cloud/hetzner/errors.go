package hetzner

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/joncarter1/brr/internal/cloud"
)

// wrapError maps an hcloud API failure onto the provider-neutral
// taxonomy. Anything not recognized passes through unchanged.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case hcloud.IsError(err,
		hcloud.ErrorCodeRateLimitExceeded,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeResourceUnavailable):
		return cloud.Transient(op, err)
	case hcloud.IsError(err, hcloud.ErrorCodeResourceLimitExceeded):
		return &cloud.QuotaExceededError{Op: op, Err: err}
	case hcloud.IsError(err,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeInvalidServerType):
		return &cloud.ValidationError{Op: op, Err: err}
	default:
		return err
	}
}

func isNotFound(err error) bool {
	return hcloud.IsError(err, hcloud.ErrorCodeNotFound)
}
