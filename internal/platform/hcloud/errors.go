package hcloud

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ErrNotVisible is returned by describe calls for an image the API does not
// list yet.
var ErrNotVisible = errors.New("not visible yet")

// errorCodeResourceInUse is returned when deleting a firewall that is still
// applied to a server being deleted.
const errorCodeResourceInUse hcloud.ErrorCode = "resource_in_use"

// isResourceLocked checks if an error indicates a resource is locked.
// Locked resources typically occur during snapshot creation or other
// long-running operations. These errors are retryable.
func isResourceLocked(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,   // Item is locked (action running)
		hcloud.ErrorCodeConflict, // Resource changed during request
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeResourceUnavailable,
	)
}

// isResourceInUse checks if an error indicates another resource still
// references the one being deleted.
func isResourceInUse(err error) bool {
	return isHCloudErrorCode(err, errorCodeResourceInUse)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}

// IsRateLimited checks if an error indicates rate limiting.
func IsRateLimited(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeRateLimitExceeded)
}

// IsTransient reports whether a describe error may clear up on its own.
// API errors are transient unless they concern credentials or the request
// itself. Requests that failed on the wire are transient; cancellation is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNotVisible) || IsRateLimited(err) || isResourceLocked(err) {
		return true
	}
	var hcloudErr hcloud.Error
	if !errors.As(err, &hcloudErr) {
		return isTransportError(err)
	}
	return !isHCloudErrorCode(err,
		hcloud.ErrorCodeUnauthorized,
		hcloud.ErrorCodeForbidden,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeTokenReadonly,
	)
}

// isTransportError checks if a request failed before a response arrived.
func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
