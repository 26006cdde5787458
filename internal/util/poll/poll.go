package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/amiforge/internal/util/retry"
)

// Outcome is the result of a bounded wait. Every caller must map it to
// proceed, retry or abort.
type Outcome int

const (
	// ReachedTarget means the target predicate held.
	ReachedTarget Outcome = iota
	// TimedOut means neither predicate held before the timeout elapsed.
	TimedOut
	// FailureState means the failure predicate held.
	FailureState
	// Aborted means the wait ended with an error: a fatal fetch error or
	// context cancellation.
	Aborted
)

// String returns the outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case ReachedTarget:
		return "reached-target"
	case TimedOut:
		return "timed-out"
	case FailureState:
		return "failure-state"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// progressEvery controls how often a still-waiting poll is logged.
const progressEvery = 10

// Condition describes one wait.
type Condition[S any] struct {
	// Resource names what is being waited on, e.g. "volume vol-123".
	Resource string
	// Target is a human-readable description of the target state.
	Target string

	// Fetch returns the current status. Errors are treated as transient
	// unless wrapped with retry.Fatal.
	Fetch func(ctx context.Context) (S, error)

	IsTarget  func(S) bool
	IsFailure func(S) bool

	Interval time.Duration
	Timeout  time.Duration
}

// Result reports how a wait ended.
type Result[S any] struct {
	Outcome Outcome
	// Last is the most recent successfully fetched status.
	Last S
	// Seen is false if no fetch ever succeeded.
	Seen    bool
	Polls   int
	Elapsed time.Duration
	// LastErr is the most recent transient fetch error, if any.
	LastErr error
}

// Wait polls c.Fetch once per interval until IsTarget or IsFailure holds or
// c.Timeout elapses. The returned error is non-nil only for a fatal fetch
// error or context cancellation; timeouts and failure states are reported
// through Result.Outcome.
func Wait[S any](ctx context.Context, clock Clock, c Condition[S]) (Result[S], error) {
	if clock == nil {
		clock = RealClock{}
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("resource", c.Resource, "target", c.Target)

	start := clock.Now()
	deadline := start.Add(c.Timeout)
	var res Result[S]

	for {
		res.Polls++
		status, err := c.Fetch(ctx)
		res.Elapsed = clock.Now().Sub(start)

		switch {
		case err != nil && retry.IsFatal(err):
			res.Outcome = Aborted
			return res, fmt.Errorf("failed to fetch status of %s: %w", c.Resource, err)
		case err != nil:
			res.LastErr = err
			log.Info("status fetch failed, will retry", "error", err.Error(), "elapsed", res.Elapsed.String())
		default:
			res.Last = status
			res.Seen = true
			if c.IsFailure != nil && c.IsFailure(status) {
				res.Outcome = FailureState
				return res, nil
			}
			if c.IsTarget(status) {
				res.Outcome = ReachedTarget
				return res, nil
			}
			if res.Polls%progressEvery == 1 {
				log.V(1).Info("waiting", "status", fmt.Sprint(status),
					"elapsed", res.Elapsed.Round(time.Second).String(), "timeout", c.Timeout.String())
			}
		}

		// The next poll would land at or past the deadline.
		if !clock.Now().Add(c.Interval).Before(deadline) {
			res.Outcome = TimedOut
			return res, nil
		}
		if err := clock.Sleep(ctx, c.Interval); err != nil {
			res.Outcome = Aborted
			return res, err
		}
	}
}
