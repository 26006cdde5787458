package image

import (
	"fmt"
	"strings"
	"time"
)

// TimeoutError means a resource did not reach its target state in time.
type TimeoutError struct {
	Resource   string
	ID         string
	Target     string
	Elapsed    time.Duration
	LastStatus string
	// LastErr is the most recent transient fetch error, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s %s did not reach %s after %s (last status %q)",
		e.Resource, e.ID, e.Target, e.Elapsed.Round(time.Second), e.LastStatus)
	if e.LastErr != nil {
		msg += fmt.Sprintf(", last error: %v", e.LastErr)
	}
	return msg
}

// FailureStateError means the provider reported a terminal failure state.
type FailureStateError struct {
	Resource string
	ID       string
	State    string
}

func (e *FailureStateError) Error() string {
	return fmt.Sprintf("%s %s entered failure state %q", e.Resource, e.ID, e.State)
}

// PreconditionError means a run was rejected before any cloud call.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// ContractError means the provider answered in a way its API rules out,
// such as a launch that reports zero instances.
type ContractError struct {
	Reason string
}

func (e *ContractError) Error() string {
	return "provider contract violated: " + e.Reason
}

// StageError is returned by a workflow that stopped before completion.
// Err is the error that stopped it; Teardown holds release failures, if any.
type StageError struct {
	Workflow string
	Stage    Stage
	Err      error
	Teardown error
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed at stage %s: %v", e.Workflow, e.Stage, e.Err)
	if e.Teardown != nil {
		fmt.Fprintf(&b, "; teardown also failed, resources may still be present and may still incur cost: %v", e.Teardown)
	}
	return b.String()
}

func (e *StageError) Unwrap() error {
	return e.Err
}
