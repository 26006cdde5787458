package hcloud

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/amiforge/internal/util/retry"
)

// DeleteOperation encapsulates deletion logic for any hcloud resource.
// It provides consistent retry, timeout, and error handling across all resource types.
//
// Usage example:
//
//	func (c *RealClient) DeleteSecurityGroup(ctx context.Context, id string) error {
//	    return (&DeleteOperation[*hcloud.Firewall]{
//	        ID:           id,
//	        ResourceType: "firewall",
//	        Get:          c.client.Firewall.GetByID,
//	        Delete:       c.client.Firewall.Delete,
//	    }).Execute(ctx, c)
//	}
type DeleteOperation[T any] struct {
	ID           string
	ResourceType string

	// Get retrieves the resource by ID; a nil resource means it is gone.
	Get func(ctx context.Context, id int64) (T, *hcloud.Response, error)

	// Delete removes the resource
	Delete func(ctx context.Context, resource T) (*hcloud.Response, error)

	// Retryable marks additional errors worth retrying, beyond locking.
	Retryable func(error) bool
}

// Execute performs the delete operation with retry logic and timeout handling.
// The operation is idempotent - it succeeds if the resource doesn't exist.
// Locked resources are retried with exponential backoff.
func (op *DeleteOperation[T]) Execute(ctx context.Context, client *RealClient) error {
	id, err := parseID(op.ResourceType, op.ID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, client.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		resource, _, err := op.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get %s %s: %w", op.ResourceType, op.ID, err)
		}

		// Check if resource is nil (already deleted)
		if reflect.ValueOf(resource).IsNil() {
			return nil
		}

		_, err = op.Delete(ctx, resource)
		if err == nil || IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.ID, err)
	}, client.retryOptions("delete "+op.ResourceType, func(err error) bool {
		return isResourceLocked(err) || IsRateLimited(err) || op.Retryable != nil && op.Retryable(err)
	})...)
}

// retryOptions configures the backoff of a retried call from the client's
// timeouts. Errors rejected by retryable fail at once.
func (c *RealClient) retryOptions(name string, retryable func(error) bool) []retry.Option {
	return []retry.Option{
		retry.WithName(name),
		retry.WithRetryable(retryable),
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(c.timeouts.RetryMaxDelay),
		retry.WithMultiplier(c.timeouts.RetryMultiplier),
	}
}

// waitForActions waits for one or more actions to complete.
// Handles both single actions and multiple actions uniformly.
func waitForActions(ctx context.Context, client *hcloud.Client, actions ...*hcloud.Action) error {
	pending := make([]*hcloud.Action, 0, len(actions))
	for _, a := range actions {
		if a != nil {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return client.Action.WaitFor(ctx, pending...)
}
