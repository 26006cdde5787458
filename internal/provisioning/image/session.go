package image

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"

	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/util/labels"
	"github.com/imamik/amiforge/internal/util/poll"
)

// Stage names the state a workflow is working towards.
type Stage string

// Workflow stages.
const (
	StageIdle                 Stage = "idle"
	StageSecurityGroupCreated Stage = "security-group-created"
	StageKeyPairCreated       Stage = "key-pair-created"
	StageInstanceRequested    Stage = "instance-requested"
	StageInstanceRunning      Stage = "instance-running"
	StageSSHReachable         Stage = "ssh-reachable"
	StageRootElevated         Stage = "root-elevated"
	StageVolumeCreated        Stage = "volume-created"
	StageVolumeAttached       Stage = "volume-attached"
	StageContentCopied        Stage = "content-copied"
	StageSnapshotTaken        Stage = "snapshot-taken"
	StageVolumeDetached       Stage = "volume-detached"
	StageVolumeDeleted        Stage = "volume-deleted"
	StageInstanceStopped      Stage = "instance-stopped"
	StageSnapshotRegistered   Stage = "snapshot-registered"
	StageInstanceTerminated   Stage = "instance-terminated"
	StageTeardown             Stage = "teardown"
	StageDone                 Stage = "done"
)

// Handle is the last known view of one provisioned resource.
type Handle struct {
	Kind   cloud.Kind
	ID     string
	Status string
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s %s", h.Kind, h.ID)
}

// rank orders guards at teardown. Lower ranks are released first.
type rank int

const (
	rankCredential rank = iota
	rankInstance
	rankVolume
	rankArtifact
	rankSecurityGroup
)

func rankOf(kind cloud.Kind) rank {
	switch kind {
	case cloud.KindKeyPair:
		return rankCredential
	case cloud.KindInstance:
		return rankInstance
	case cloud.KindVolume:
		return rankVolume
	case cloud.KindSecurityGroup:
		return rankSecurityGroup
	default:
		return rankArtifact
	}
}

type guardState int

const (
	guardArmed guardState = iota
	guardDisarmed
	guardReleased
)

// Guard pairs a resource with the call that releases it.
type Guard struct {
	session *Session
	handle  *Handle
	rank    rank
	seq     int
	release func(ctx context.Context) error
	state   guardState
}

// Handle returns the guarded resource.
func (g *Guard) Handle() *Handle {
	return g.handle
}

// Disarm hands the resource over to the caller; teardown will skip it.
func (g *Guard) Disarm() {
	if g.state == guardArmed {
		g.state = guardDisarmed
	}
}

// Release runs the release call now unless it already ran or the guard
// was disarmed. A failure is logged as a cost warning and returned; the
// guard is not retried at teardown either way.
func (g *Guard) Release(ctx context.Context) error {
	if g.state != guardArmed {
		return nil
	}
	g.state = guardReleased

	log := logr.FromContextOrDiscard(ctx).WithValues("kind", string(g.handle.Kind), "id", g.handle.ID)
	log.V(1).Info("releasing resource")

	if err := g.release(ctx); err != nil {
		g.session.metrics.teardownFailed(g.handle.Kind)
		log.Info("resource may still be present and may still incur cost", "warning", err.Error())
		return fmt.Errorf("failed to release %s: %w", g.handle, err)
	}
	log.Info("released resource")
	return nil
}

// Session is the working set of one workflow run. It is not safe for
// concurrent use; each run owns its session.
type Session struct {
	workflow string
	runID    uint32
	clock    poll.Clock
	metrics  *Metrics

	stage      Stage
	stageStart time.Time

	handles    []*Handle
	guards     []*Guard
	credential *cloud.KeyPair
	host       string
	zone       string
}

// NewSession starts an empty session for one run of workflow.
func NewSession(workflow string, runID uint32, clock poll.Clock, metrics *Metrics) *Session {
	if clock == nil {
		clock = poll.RealClock{}
	}
	return &Session{
		workflow:   workflow,
		runID:      runID,
		clock:      clock,
		metrics:    metrics,
		stage:      StageIdle,
		stageStart: clock.Now(),
	}
}

// RunID returns the random identifier shared by the session's resource names.
func (s *Session) RunID() uint32 { return s.runID }

// Stage returns the stage the session is working towards.
func (s *Session) Stage() Stage { return s.stage }

// Enter records progress to the next stage.
func (s *Session) Enter(ctx context.Context, stage Stage) {
	now := s.clock.Now()
	s.metrics.observeStage(s.workflow, s.stage, now.Sub(s.stageStart))
	s.stage = stage
	s.stageStart = now
	logr.FromContextOrDiscard(ctx).V(1).Info("entering stage", "stage", string(stage))
}

// Tags returns the tags for a new resource of kind.
func (s *Session) Tags(kind cloud.Kind, name string, temporary bool) map[string]string {
	lb := labels.NewLabelBuilder(s.runID).WithKind(string(kind)).WithName(name)
	if temporary {
		lb.Temporary()
	}
	return lb.Build()
}

// Track records a newly created resource and its release call. At most one
// live security group and one live instance may exist per session; a second
// one is still tracked for teardown but reported as a ContractError.
func (s *Session) Track(ctx context.Context, kind cloud.Kind, id, status string, release func(ctx context.Context) error) (*Guard, error) {
	var dup *Guard
	if kind == cloud.KindSecurityGroup || kind == cloud.KindInstance {
		for _, g := range s.guards {
			if g.handle.Kind == kind && g.state == guardArmed {
				dup = g
				break
			}
		}
	}

	h := &Handle{Kind: kind, ID: id, Status: status}
	g := &Guard{
		session: s,
		handle:  h,
		rank:    rankOf(kind),
		seq:     len(s.guards),
		release: release,
	}
	s.handles = append(s.handles, h)
	s.guards = append(s.guards, g)
	s.metrics.resourceCreated(kind)
	logr.FromContextOrDiscard(ctx).Info("created resource", "kind", string(kind), "id", id)

	if dup != nil {
		return g, &ContractError{Reason: fmt.Sprintf("second %s %s while %s is live", kind, id, dup.handle.ID)}
	}
	return g, nil
}

// Handles returns every resource tracked so far, in acquisition order.
func (s *Session) Handles() []*Handle {
	out := make([]*Handle, len(s.handles))
	copy(out, s.handles)
	return out
}

// SetCredential stores the key pair trusted by the session's instance.
func (s *Session) SetCredential(kp *cloud.KeyPair) { s.credential = kp }

// Credential returns the session's key pair, or nil.
func (s *Session) Credential() *cloud.KeyPair { return s.credential }

// SetInstanceAddress records where the session's instance can be reached.
func (s *Session) SetInstanceAddress(host, zone string) {
	s.host = host
	s.zone = zone
}

// Host returns the instance's public address.
func (s *Session) Host() string { return s.host }

// Zone returns the instance's placement.
func (s *Session) Zone() string { return s.zone }

// Teardown releases every armed guard: the credential first, then the
// instance, volumes, snapshots and images, and the security group last.
// Within one rank the most recently acquired resource goes first. Every
// guard runs even if an earlier one fails; failures are accumulated.
// Teardown is not cancelled with ctx.
func (s *Session) Teardown(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	s.Enter(ctx, StageTeardown)

	pending := make([]*Guard, 0, len(s.guards))
	for _, g := range s.guards {
		if g.state == guardArmed {
			pending = append(pending, g)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].rank != pending[j].rank {
			return pending[i].rank < pending[j].rank
		}
		return pending[i].seq > pending[j].seq
	})

	var result *multierror.Error
	for _, g := range pending {
		if err := g.Release(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if s.credential != nil {
		s.credential.Wipe()
	}

	err := result.ErrorOrNil()
	if err != nil {
		logr.FromContextOrDiscard(ctx).Info("teardown incomplete", "warning", err.Error(), "failures", len(result.Errors))
	}
	return err
}
