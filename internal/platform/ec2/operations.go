package ec2

import (
	"context"
	"fmt"

	"github.com/imamik/amiforge/internal/util/retry"
)

// DeleteOperation encapsulates deletion logic for any EC2 resource.
// It provides consistent retry, timeout, and error handling across all resource types.
//
// Usage example:
//
//	return (&DeleteOperation{
//	    ID:           volumeID,
//	    ResourceType: "volume",
//	    Delete: func(ctx context.Context) error {
//	        _, err := c.api.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(volumeID)})
//	        return err
//	    },
//	}).Execute(ctx, c)
type DeleteOperation struct {
	ID           string
	ResourceType string

	// Delete issues the delete call once.
	Delete func(ctx context.Context) error

	// Retryable marks additional errors worth retrying, beyond throttling.
	Retryable func(error) bool
}

// Execute performs the delete operation with bounded retries.
// The operation is idempotent - it succeeds if the resource doesn't exist.
// Throttled calls and errors accepted by Retryable are retried with
// exponential backoff until the delete timeout; anything else fails at once.
func (op *DeleteOperation) Execute(ctx context.Context, client *Client) error {
	ctx, cancel := context.WithTimeout(ctx, client.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		err := op.Delete(ctx)
		if err == nil || IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.ID, err)
	}, client.retryOptions("delete "+op.ResourceType, func(err error) bool {
		return IsThrottled(err) || op.Retryable != nil && op.Retryable(err)
	})...)
}

// retryOptions configures the backoff of a retried call from the client's
// timeouts. Errors rejected by retryable fail at once.
func (c *Client) retryOptions(name string, retryable func(error) bool) []retry.Option {
	return []retry.Option{
		retry.WithName(name),
		retry.WithRetryable(retryable),
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(c.timeouts.RetryMaxDelay),
		retry.WithMultiplier(c.timeouts.RetryMultiplier),
	}
}
