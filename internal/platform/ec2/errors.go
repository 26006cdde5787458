package ec2

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ErrNotVisible is returned by describe calls that succeed without listing
// the requested resource, which happens briefly after creation.
var ErrNotVisible = errors.New("not visible yet")

// throttleCodes are returned when the account exceeds its request rate.
var throttleCodes = []string{
	"RequestLimitExceeded",
	"Throttling",
	"ThrottlingException",
	"ServiceUnavailable",
	"Unavailable",
	"InternalError",
}

// apiErrorCode returns the EC2 error code of err, or "" for non-API errors.
func apiErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsNotFound checks if an error indicates a resource was not found.
// EC2 uses codes such as InvalidInstanceID.NotFound and InvalidGroup.NotFound.
func IsNotFound(err error) bool {
	code := apiErrorCode(err)
	return strings.HasSuffix(code, ".NotFound")
}

// IsThrottled checks if an error indicates rate limiting or a transient server fault.
func IsThrottled(err error) bool {
	code := apiErrorCode(err)
	for _, c := range throttleCodes {
		if code == c {
			return true
		}
	}
	return false
}

// IsDependencyViolation checks if a delete failed because another resource
// still references the target, e.g. a security group used by a terminating instance.
func IsDependencyViolation(err error) bool {
	code := apiErrorCode(err)
	return code == "DependencyViolation" || code == "InvalidGroup.InUse"
}

// IsIncorrectState checks if a call was rejected because the resource is mid-transition.
func IsIncorrectState(err error) bool {
	code := apiErrorCode(err)
	return code == "IncorrectState" || code == "VolumeInUse" || code == "IncorrectInstanceState"
}

// IsTransient reports whether a describe error should be retried by a poll
// loop: the resource is not yet visible (eventual consistency right after
// creation), the request was throttled, or it never reached EC2. Any other
// API error is also treated as transient, since EC2 occasionally rejects
// describes of fresh resources with unexpected codes. Cancellation and
// credential errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNotVisible) || IsNotFound(err) || IsThrottled(err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AuthFailure", "UnauthorizedOperation", "InvalidClientTokenId", "SignatureDoesNotMatch":
			return false
		}
		return true
	}
	return isTransportError(err)
}

// isTransportError checks if a request failed on the wire.
func isTransportError(err error) bool {
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
