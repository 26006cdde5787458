package image

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/amiforge/internal/config"
	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/util/labels"
	"github.com/imamik/amiforge/internal/util/naming"
	"github.com/imamik/amiforge/internal/util/poll"
	"github.com/imamik/amiforge/internal/util/retry"
)

// DefaultInstanceType is the utility and installer instance type on EC2.
const DefaultInstanceType = "m1.small"

// env carries the settings shared by both workflows.
type env struct {
	timeouts     *config.Timeouts
	clock        poll.Clock
	classify     cloud.Classifier
	metrics      *Metrics
	instanceType string
	newRunID     func() uint32

	dial         Dialer
	compression  string
	attachDevice string
	guestDevice  string
}

// Option configures a workflow.
type Option func(*env)

// WithTimeouts sets custom stage budgets.
func WithTimeouts(t *config.Timeouts) Option {
	return func(e *env) {
		e.timeouts = t
	}
}

// WithClock replaces the wall clock used for waits and settle delays.
func WithClock(c poll.Clock) Option {
	return func(e *env) {
		e.clock = c
	}
}

// WithClassifier sets how describe errors are classified. Errors it
// rejects abort a wait at once; all others are retried until the timeout.
func WithClassifier(c cloud.Classifier) Option {
	return func(e *env) {
		e.classify = c
	}
}

// WithMetrics records workflow metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(e *env) {
		e.metrics = m
	}
}

// WithInstanceType overrides DefaultInstanceType.
func WithInstanceType(name string) Option {
	return func(e *env) {
		if name != "" {
			e.instanceType = name
		}
	}
}

// WithRunID fixes the run identifier used in resource names.
func WithRunID(id uint32) Option {
	return func(e *env) {
		e.newRunID = func() uint32 { return id }
	}
}

// WithDialer replaces the SSH dialer used to reach utility instances.
func WithDialer(d Dialer) Option {
	return func(e *env) {
		e.dial = d
	}
}

// WithCompression selects the upload codec, config.CompressionGzip or
// config.CompressionZstd.
func WithCompression(codec string) Option {
	return func(e *env) {
		if codec != "" {
			e.compression = codec
		}
	}
}

// WithDevices sets the device name a volume is attached as and the name
// the utility instance's kernel gives it.
func WithDevices(attach, guest string) Option {
	return func(e *env) {
		if attach != "" {
			e.attachDevice = attach
		}
		if guest != "" {
			e.guestDevice = guest
		}
	}
}

func newEnv(opts []Option) env {
	e := env{
		timeouts:     config.LoadTimeouts(),
		clock:        poll.RealClock{},
		classify:     cloud.AlwaysTransient,
		instanceType: DefaultInstanceType,
		newRunID:     naming.RunID,
		compression:  config.CompressionGzip,
		attachDevice: DefaultAttachDevice,
		guestDevice:  DefaultGuestDevice,
	}
	for _, opt := range opts {
		opt(&e)
	}
	if e.dial == nil {
		e.dial = SSHDialer(e.timeouts.SSHDial)
	}
	return e
}

// newSession starts a session and a logger scoped to it.
func (e *env) newSession(ctx context.Context, workflow string) (context.Context, *Session) {
	s := NewSession(workflow, e.newRunID(), e.clock, e.metrics)
	log := logr.FromContextOrDiscard(ctx).WithValues("workflow", workflow, "run", labels.RunValue(s.RunID()))
	return logr.NewContext(ctx, log), s
}

// fetcher adapts a describe call for the poller: errors the classifier
// does not accept as transient end the wait.
func fetcher[S any](classify cloud.Classifier, fetch func(ctx context.Context) (S, error)) func(ctx context.Context) (S, error) {
	return func(ctx context.Context) (S, error) {
		v, err := fetch(ctx)
		if err != nil && !classify(err) {
			return v, retry.Fatal(err)
		}
		return v, err
	}
}

// waitSpec describes one stage wait on a tracked resource.
type waitSpec[S any] struct {
	handle    *Handle
	target    string
	budget    config.Wait
	fetch     func(ctx context.Context) (S, error)
	status    func(S) string
	isTarget  func(S) bool
	isFailure func(S) bool
	// classify overrides the workflow's classifier.
	classify cloud.Classifier
}

// waitFor polls until w's target or failure state and maps the outcome to
// an error. The handle's status is updated from the last observation.
func waitFor[S any](ctx context.Context, e *env, w waitSpec[S]) (S, error) {
	classify := w.classify
	if classify == nil {
		classify = e.classify
	}
	res, err := poll.Wait(ctx, e.clock, poll.Condition[S]{
		Resource:  w.handle.String(),
		Target:    w.target,
		Fetch:     fetcher(classify, w.fetch),
		IsTarget:  w.isTarget,
		IsFailure: w.isFailure,
		Interval:  w.budget.Interval,
		Timeout:   w.budget.Timeout,
	})
	if res.Seen {
		w.handle.Status = w.status(res.Last)
	} else if w.handle.Status == "" {
		w.handle.Status = "unknown"
	}
	e.metrics.pollFinished(w.handle.Kind, res.Outcome, res.Polls)
	if err != nil {
		return res.Last, fmt.Errorf("failed waiting for %s: %w", w.handle, err)
	}

	switch res.Outcome {
	case poll.ReachedTarget:
		return res.Last, nil
	case poll.FailureState:
		return res.Last, &FailureStateError{Resource: string(w.handle.Kind), ID: w.handle.ID, State: w.handle.Status}
	default:
		return res.Last, &TimeoutError{
			Resource:   string(w.handle.Kind),
			ID:         w.handle.ID,
			Target:     w.target,
			Elapsed:    res.Elapsed,
			LastStatus: w.handle.Status,
			LastErr:    res.LastErr,
		}
	}
}

// launch runs exactly one instance and tracks it. The guard terminates the
// instance and waits for it to be gone.
func (e *env) launch(ctx context.Context, s *Session, compute cloud.Compute, in cloud.RunInstanceInput) (*Guard, error) {
	insts, err := compute.RunInstances(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to launch instance of %s: %w", in.ImageID, err)
	}
	if len(insts) == 0 {
		return nil, &ContractError{Reason: fmt.Sprintf("launch of %s returned no instance", in.ImageID)}
	}

	var guard *Guard
	for i := range insts {
		inst := insts[i]
		g, err := s.Track(ctx, cloud.KindInstance, inst.ID, string(inst.State), func(ctx context.Context) error {
			return e.terminate(ctx, compute, inst.ID)
		})
		if err != nil {
			return nil, err
		}
		guard = g
	}
	return guard, nil
}

// terminate terminates an instance and waits for it to be gone.
func (e *env) terminate(ctx context.Context, compute cloud.Compute, id string) error {
	if err := compute.TerminateInstance(ctx, id); err != nil {
		return err
	}
	_, err := waitFor(ctx, e, waitSpec[*cloud.Instance]{
		handle: &Handle{Kind: cloud.KindInstance, ID: id},
		target: string(cloud.InstanceTerminated),
		budget: e.timeouts.InstanceGone,
		fetch: func(ctx context.Context) (*cloud.Instance, error) {
			return compute.DescribeInstance(ctx, id)
		},
		status:   instanceStatus,
		isTarget: func(i *cloud.Instance) bool { return i.State == cloud.InstanceTerminated },
	})
	return err
}

// waitRunning waits for a launched instance to run and records its address.
func (e *env) waitRunning(ctx context.Context, s *Session, compute cloud.Compute, h *Handle) error {
	inst, err := waitFor(ctx, e, waitSpec[*cloud.Instance]{
		handle: h,
		target: string(cloud.InstanceRunning),
		budget: e.timeouts.InstanceRunning,
		fetch: func(ctx context.Context) (*cloud.Instance, error) {
			return compute.DescribeInstance(ctx, h.ID)
		},
		status:    instanceStatus,
		isTarget:  func(i *cloud.Instance) bool { return i.State == cloud.InstanceRunning },
		isFailure: instanceGone,
	})
	if err != nil {
		return fmt.Errorf("instance %s failed to start: %w", h.ID, err)
	}
	s.SetInstanceAddress(inst.PublicHost, inst.Zone)
	logr.FromContextOrDiscard(ctx).Info("instance is running", "instance", h.ID, "host", inst.PublicHost, "zone", inst.Zone)
	return nil
}

func instanceStatus(i *cloud.Instance) string {
	if i == nil {
		return "unknown"
	}
	return string(i.State)
}

// instanceGone reports states from which an instance never comes back.
func instanceGone(i *cloud.Instance) bool {
	return i.State == cloud.InstanceShuttingDown || i.State == cloud.InstanceTerminated
}
