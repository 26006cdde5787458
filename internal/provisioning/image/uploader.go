package image

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/imamik/amiforge/internal/config"
	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/platform/ssh"
	"github.com/imamik/amiforge/internal/util/naming"
)

// WorkflowFromFile names the upload workflow in logs, errors and metrics.
const WorkflowFromFile = "image-from-file"

// Default device names of the upload volume.
const (
	DefaultAttachDevice = "/dev/sdh"
	DefaultGuestDevice  = "/dev/xvdh"
)

const securityGroupDescription = "Temporary security group with SSH access generated by amiforge"

// Uploader copies a raw disk image onto a new volume through a utility
// instance and snapshots the volume.
type Uploader struct {
	env
	compute cloud.Compute
	storage cloud.BlockStorage
	catalog *config.Catalog
	region  string
}

// NewUploader creates an Uploader for region. The utility image is looked
// up in catalog.
func NewUploader(compute cloud.Compute, storage cloud.BlockStorage, catalog *config.Catalog, region string, opts ...Option) *Uploader {
	return &Uploader{
		env:     newEnv(opts),
		compute: compute,
		storage: storage,
		catalog: catalog,
		region:  region,
	}
}

// Upload runs the whole workflow and returns the snapshot ID. The caller
// owns the snapshot; every other resource is gone (or reported as possibly
// left behind) when Upload returns.
func (u *Uploader) Upload(ctx context.Context, src ImageSource) (string, error) {
	util, ok := u.catalog.UtilityImage(u.region)
	if !ok {
		return "", &PreconditionError{Reason: fmt.Sprintf("no utility image for region %s", u.region)}
	}
	if _, err := decompressCommand(u.compression); err != nil {
		return "", &PreconditionError{Reason: err.Error()}
	}
	size, err := src.Size(ctx)
	if err != nil {
		return "", err
	}

	ctx, s := u.newSession(ctx, WorkflowFromFile)
	log := logr.FromContextOrDiscard(ctx)
	log.Info("uploading image", "source", src.Name(), "bytes", size, "region", u.region, "utilityImage", util.ImageID)

	snapshotID, err := u.upload(ctx, s, src, size, util)
	stage := s.Stage()
	teardownErr := s.Teardown(ctx)
	if err != nil {
		return "", &StageError{Workflow: WorkflowFromFile, Stage: stage, Err: err, Teardown: teardownErr}
	}
	s.Enter(ctx, StageDone)

	log.Info("snapshot ready", "snapshot", snapshotID)
	return snapshotID, nil
}

func (u *Uploader) upload(ctx context.Context, s *Session, src ImageSource, size int64, util config.UtilityImage) (string, error) {
	log := logr.FromContextOrDiscard(ctx)
	runID := s.RunID()

	s.Enter(ctx, StageSecurityGroupCreated)
	sgName := naming.SecurityGroup(runID)
	sgID, err := u.compute.CreateSecurityGroup(ctx, sgName, securityGroupDescription,
		[]cloud.IngressRule{cloud.SSHFromAnywhere()}, s.Tags(cloud.KindSecurityGroup, sgName, true))
	if err != nil {
		return "", fmt.Errorf("failed to create security group %s: %w", sgName, err)
	}
	if _, err := s.Track(ctx, cloud.KindSecurityGroup, sgID, "", func(ctx context.Context) error {
		return u.compute.DeleteSecurityGroup(ctx, sgID)
	}); err != nil {
		return "", err
	}

	s.Enter(ctx, StageKeyPairCreated)
	keyName := naming.KeyPair(runID)
	kp, err := u.compute.CreateKeyPair(ctx, keyName, s.Tags(cloud.KindKeyPair, keyName, true))
	if err != nil {
		return "", fmt.Errorf("failed to create key pair %s: %w", keyName, err)
	}
	s.SetCredential(kp)
	if _, err := s.Track(ctx, cloud.KindKeyPair, kp.Name, "", func(ctx context.Context) error {
		kp.Wipe()
		return u.compute.DeleteKeyPair(ctx, kp)
	}); err != nil {
		return "", err
	}

	s.Enter(ctx, StageInstanceRequested)
	serverName := naming.Server(runID)
	instGuard, err := u.launch(ctx, s, u.compute, cloud.RunInstanceInput{
		ImageID:         util.ImageID,
		InstanceType:    u.instanceType,
		KeyName:         kp.Name,
		SecurityGroupID: sgID,
		Tags:            s.Tags(cloud.KindInstance, serverName, true),
	})
	if err != nil {
		return "", err
	}
	instanceID := instGuard.Handle().ID

	s.Enter(ctx, StageInstanceRunning)
	if err := u.waitRunning(ctx, s, u.compute, instGuard.Handle()); err != nil {
		return "", err
	}
	if s.Host() == "" {
		return "", &ContractError{Reason: fmt.Sprintf("instance %s is running without a public address", instanceID)}
	}

	s.Enter(ctx, StageSSHReachable)
	login, err := u.dial(s.Host(), util.User, kp.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to prepare SSH client for %s: %w", s.Host(), err)
	}
	if err := u.waitReachable(ctx, login, s.Host()); err != nil {
		return "", err
	}

	s.Enter(ctx, StageRootElevated)
	root, err := u.elevate(ctx, s.Host(), util, login)
	if err != nil {
		return "", err
	}

	s.Enter(ctx, StageVolumeCreated)
	sizeGiB := VolumeSizeGiB(size)
	log.Info("creating volume", "sizeGiB", sizeGiB, "zone", s.Zone())
	volumeID, err := u.storage.CreateVolume(ctx, sizeGiB, s.Zone(), s.Tags(cloud.KindVolume, serverName, true))
	if err != nil {
		return "", fmt.Errorf("failed to create %d GiB volume in %s: %w", sizeGiB, s.Zone(), err)
	}
	volGuard, err := s.Track(ctx, cloud.KindVolume, volumeID, string(cloud.VolumeCreating), func(ctx context.Context) error {
		return u.storage.DeleteVolume(ctx, volumeID)
	})
	if err != nil {
		return "", err
	}
	if _, err := u.waitVolume(ctx, volGuard.Handle(), cloud.VolumeAvailable, u.timeouts.VolumeAvailable); err != nil {
		return "", fmt.Errorf("volume %s never became available: %w", volumeID, err)
	}

	s.Enter(ctx, StageVolumeAttached)
	if err := u.storage.AttachVolume(ctx, volumeID, instanceID, u.attachDevice); err != nil {
		return "", fmt.Errorf("failed to attach volume %s to %s: %w", volumeID, instanceID, err)
	}
	if err := u.waitAttached(ctx, volGuard.Handle()); err != nil {
		return "", fmt.Errorf("unable to attach volume %s to instance %s: %w", volumeID, instanceID, err)
	}
	log.V(1).Info("waiting for attachment to settle", "delay", u.timeouts.AttachSettle.String())
	if err := u.clock.Sleep(ctx, u.timeouts.AttachSettle); err != nil {
		return "", err
	}

	s.Enter(ctx, StageContentCopied)
	if err := u.copyContent(ctx, root, src); err != nil {
		return "", err
	}

	s.Enter(ctx, StageSnapshotTaken)
	snapshotID, err := u.storage.CreateSnapshot(ctx, volumeID, naming.SnapshotDescription(src.Name()), s.Tags(cloud.KindSnapshot, "", false))
	if err != nil {
		return "", fmt.Errorf("failed to snapshot volume %s: %w", volumeID, err)
	}
	snapGuard, err := s.Track(ctx, cloud.KindSnapshot, snapshotID, string(cloud.SnapshotPending), func(ctx context.Context) error {
		return u.storage.DeleteSnapshot(ctx, snapshotID)
	})
	if err != nil {
		return "", err
	}
	if err := u.waitSnapshot(ctx, snapGuard.Handle()); err != nil {
		return "", fmt.Errorf("unable to snapshot volume %s: %w", volumeID, err)
	}

	s.Enter(ctx, StageVolumeDetached)
	if err := u.storage.DetachVolume(ctx, volumeID); err != nil {
		return "", fmt.Errorf("failed to detach volume %s, it may persist and incur cost: %w", volumeID, err)
	}
	if _, err := u.waitVolume(ctx, volGuard.Handle(), cloud.VolumeAvailable, u.timeouts.VolumeDetached); err != nil {
		return "", fmt.Errorf("unable to detach volume %s, it may persist and incur cost: %w", volumeID, err)
	}

	s.Enter(ctx, StageVolumeDeleted)
	if err := volGuard.Release(ctx); err != nil {
		return "", err
	}

	snapGuard.Disarm()
	return snapshotID, nil
}

// waitReachable runs a no-op command until it succeeds. Every failure
// before the deadline is retried.
func (u *Uploader) waitReachable(ctx context.Context, remote Remote, host string) error {
	_, err := waitFor(ctx, &u.env, waitSpec[bool]{
		handle: &Handle{Kind: kindSSH, ID: host},
		target: "reachable",
		budget: u.timeouts.SSHReachable,
		fetch: func(ctx context.Context) (bool, error) {
			_, err := remote.Run(ctx, ssh.Command{Line: "/bin/true"})
			return err == nil, err
		},
		status: func(ok bool) string {
			if ok {
				return "reachable"
			}
			return "unreachable"
		},
		isTarget: func(ok bool) bool { return ok },
		classify: cloud.AlwaysTransient,
	})
	if err != nil {
		return fmt.Errorf("unable to gain SSH access to %s: %w", host, err)
	}
	return nil
}

// rootKeyCommands copy user's trusted keys to root. They may fail
// individually, e.g. when /root/.ssh already exists.
func rootKeyCommands(user string) []string {
	return []string{
		"mkdir /root/.ssh",
		"chmod 600 /root/.ssh",
		fmt.Sprintf("cp -f /home/%s/.ssh/authorized_keys /root/.ssh", user),
		"chmod 600 /root/.ssh/authorized_keys",
	}
}

// elevate gives root the login user's SSH access and verifies it.
func (u *Uploader) elevate(ctx context.Context, host string, util config.UtilityImage, login Remote) (Remote, error) {
	log := logr.FromContextOrDiscard(ctx)

	root := login
	if util.User != "root" {
		for _, line := range rootKeyCommands(util.User) {
			cmd := ssh.Command{Line: line, Prefix: util.CommandPrefix, PTY: true}
			if _, err := login.Run(ctx, cmd); err != nil {
				log.V(1).Info("ignoring failed command", "command", cmd.String(), "error", err.Error())
			}
		}
		root = login.AsUser("root")
	}

	res, err := root.Run(ctx, ssh.Command{Line: "/bin/id"})
	switch {
	case ssh.IsConnectError(err):
		return nil, fmt.Errorf("transfer of authorized_keys to root from %s must have failed: %w", util.User, err)
	case err != nil:
		return nil, fmt.Errorf("failed to verify root access on %s: %w", host, err)
	}
	if !strings.Contains(res.Stdout, "uid=0") {
		return nil, fmt.Errorf("transfer of authorized_keys to root from %s must have failed: /bin/id on %s printed %q",
			util.User, host, strings.TrimSpace(res.Stdout))
	}
	return root, nil
}

// copyContent streams src compressed into the guest device and flushes it.
func (u *Uploader) copyContent(ctx context.Context, root Remote, src ImageSource) error {
	decompress, err := decompressCommand(u.compression)
	if err != nil {
		return err
	}

	r, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()

	stream, err := compressStream(u.compression, r)
	if err != nil {
		return err
	}
	defer func() {
		_ = stream.Close()
	}()

	line := fmt.Sprintf("%s | dd of=%s bs=4k", decompress, u.guestDevice)
	logr.FromContextOrDiscard(ctx).Info("copying image into volume, this may take some time",
		"source", src.Name(), "command", line)
	if _, err := root.Run(ctx, ssh.Command{Line: line, Stdin: stream}); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src.Name(), u.guestDevice, err)
	}

	if _, err := root.Run(ctx, ssh.Command{Line: "sync"}); err != nil {
		return fmt.Errorf("failed to sync %s: %w", u.guestDevice, err)
	}
	return nil
}

func (u *Uploader) describeVolume(h *Handle) func(ctx context.Context) (*cloud.Volume, error) {
	return func(ctx context.Context) (*cloud.Volume, error) {
		return u.storage.DescribeVolume(ctx, h.ID)
	}
}

func volumeStatus(v *cloud.Volume) string {
	if v.Attachment == "" {
		return string(v.State)
	}
	return fmt.Sprintf("%s/%s", v.State, v.Attachment)
}

func volumeFailed(v *cloud.Volume) bool {
	return v.State == cloud.VolumeError || v.State == cloud.VolumeDeleting || v.State == cloud.VolumeDeleted
}

func (u *Uploader) waitVolume(ctx context.Context, h *Handle, state cloud.VolumeState, budget config.Wait) (*cloud.Volume, error) {
	return waitFor(ctx, &u.env, waitSpec[*cloud.Volume]{
		handle:    h,
		target:    string(state),
		budget:    budget,
		fetch:     u.describeVolume(h),
		status:    volumeStatus,
		isTarget:  func(v *cloud.Volume) bool { return v.State == state },
		isFailure: volumeFailed,
	})
}

func (u *Uploader) waitAttached(ctx context.Context, h *Handle) error {
	_, err := waitFor(ctx, &u.env, waitSpec[*cloud.Volume]{
		handle:    h,
		target:    string(cloud.AttachmentAttached),
		budget:    u.timeouts.VolumeAttached,
		fetch:     u.describeVolume(h),
		status:    volumeStatus,
		isTarget:  func(v *cloud.Volume) bool { return v.Attachment == cloud.AttachmentAttached },
		isFailure: volumeFailed,
	})
	return err
}

func (u *Uploader) waitSnapshot(ctx context.Context, h *Handle) error {
	_, err := waitFor(ctx, &u.env, waitSpec[*cloud.Snapshot]{
		handle: h,
		target: string(cloud.SnapshotCompleted),
		budget: u.timeouts.SnapshotCompleted,
		fetch: func(ctx context.Context) (*cloud.Snapshot, error) {
			return u.storage.DescribeSnapshot(ctx, h.ID)
		},
		status: func(s *cloud.Snapshot) string {
			if s.Progress == "" {
				return string(s.State)
			}
			return fmt.Sprintf("%s (%s)", s.State, s.Progress)
		},
		isTarget:  func(s *cloud.Snapshot) bool { return s.State == cloud.SnapshotCompleted },
		isFailure: func(s *cloud.Snapshot) bool { return s.State == cloud.SnapshotFailed },
	})
	return err
}
