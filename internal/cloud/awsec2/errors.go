package awsec2

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/joncarter1/brr/internal/cloud"
)

// wrapError maps an EC2 API failure onto the provider-neutral taxonomy.
// Anything not recognized passes through unchanged.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isCode(err,
		"RequestLimitExceeded",
		"Throttling",
		"ThrottlingException",
		"InsufficientInstanceCapacity",
		"InternalError",
		"Unavailable"):
		return cloud.Transient(op, err)
	case isCode(err,
		"InstanceLimitExceeded",
		"VcpuLimitExceeded",
		"MaxSpotInstanceCountExceeded"):
		return &cloud.QuotaExceededError{Op: op, Err: err}
	case isCode(err,
		"InvalidParameterValue",
		"InvalidParameterCombination",
		"InvalidAMIID.NotFound",
		"InvalidKeyPair.NotFound",
		"InvalidSubnetID.NotFound"):
		return &cloud.ValidationError{Op: op, Err: err}
	default:
		return err
	}
}

// isInstanceGone reports whether err means the instance no longer exists
// on the provider side.
func isInstanceGone(err error) bool {
	return isCode(err, "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed")
}

func isCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
