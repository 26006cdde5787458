package image

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/util/naming"
)

// WorkflowFromInstaller names the installer workflow in logs, errors and metrics.
const WorkflowFromInstaller = "image-from-installer"

// DefaultRootVolumeGiB is the root disk size of installer instances.
const DefaultRootVolumeGiB = 10

const (
	installerGroupDescription = "Temporary security group with SSH and VNC access generated by amiforge"
	rootDevice                = "/dev/sda"
	vncFromPort               = 5900
	vncToPort                 = 5950
)

// InstallInput describes one installer run.
type InstallInput struct {
	// BaseImage boots the installer.
	BaseImage string
	// UserData is the rendered installer script. The installer must power
	// the instance off when it is done.
	UserData string
	// Name and Description of the captured image. Generated when empty.
	Name        string
	Description string
	// RootVolumeGiB defaults to DefaultRootVolumeGiB.
	RootVolumeGiB int32
}

// Installer boots an unattended installer and captures the stopped
// instance as an image.
type Installer struct {
	env
	compute cloud.Compute
	images  cloud.ImageCapturer
}

// NewInstaller creates an Installer.
func NewInstaller(compute cloud.Compute, images cloud.ImageCapturer, opts ...Option) *Installer {
	return &Installer{
		env:     newEnv(opts),
		compute: compute,
		images:  images,
	}
}

// Install runs the whole workflow and returns the captured image ID.
func (in *Installer) Install(ctx context.Context, input InstallInput) (string, error) {
	if input.BaseImage == "" {
		return "", &PreconditionError{Reason: "base image is required"}
	}
	if input.Name == "" {
		input.Name = naming.Image(input.BaseImage)
	}
	if input.Description == "" {
		input.Description = naming.InstalledImageDescription(input.BaseImage)
	}
	if input.RootVolumeGiB <= 0 {
		input.RootVolumeGiB = DefaultRootVolumeGiB
	}

	ctx, s := in.newSession(ctx, WorkflowFromInstaller)
	log := logr.FromContextOrDiscard(ctx)
	log.Info("running installer", "baseImage", input.BaseImage, "name", input.Name)

	imageID, err := in.install(ctx, s, input)
	stage := s.Stage()
	teardownErr := s.Teardown(ctx)
	if err != nil {
		return "", &StageError{Workflow: WorkflowFromInstaller, Stage: stage, Err: err, Teardown: teardownErr}
	}
	s.Enter(ctx, StageDone)

	log.Info("image ready", "image", imageID)
	return imageID, nil
}

func (in *Installer) install(ctx context.Context, s *Session, input InstallInput) (string, error) {
	log := logr.FromContextOrDiscard(ctx)
	runID := s.RunID()

	s.Enter(ctx, StageSecurityGroupCreated)
	sgName := naming.InstallerSecurityGroup(runID)
	rules := []cloud.IngressRule{
		cloud.SSHFromAnywhere(),
		{Protocol: "tcp", FromPort: vncFromPort, ToPort: vncToPort, CIDR: "0.0.0.0/0"},
	}
	sgID, err := in.compute.CreateSecurityGroup(ctx, sgName, installerGroupDescription, rules,
		s.Tags(cloud.KindSecurityGroup, sgName, true))
	if err != nil {
		return "", fmt.Errorf("failed to create security group %s: %w", sgName, err)
	}
	if _, err := s.Track(ctx, cloud.KindSecurityGroup, sgID, "", func(ctx context.Context) error {
		return in.compute.DeleteSecurityGroup(ctx, sgID)
	}); err != nil {
		return "", err
	}

	s.Enter(ctx, StageInstanceRequested)
	serverName := naming.Server(runID)
	instGuard, err := in.launch(ctx, s, in.compute, cloud.RunInstanceInput{
		ImageID:         input.BaseImage,
		InstanceType:    in.instanceType,
		SecurityGroupID: sgID,
		UserData:        input.UserData,
		BlockDevices: []cloud.BlockDevice{{
			DeviceName:          rootDevice,
			VolumeSizeGiB:       input.RootVolumeGiB,
			DeleteOnTermination: true,
		}},
		Tags: s.Tags(cloud.KindInstance, serverName, true),
	})
	if err != nil {
		return "", err
	}
	instance := instGuard.Handle()

	s.Enter(ctx, StageInstanceRunning)
	if err := in.waitRunning(ctx, s, in.compute, instance); err != nil {
		return "", err
	}

	s.Enter(ctx, StageInstanceStopped)
	log.Info("waiting for the installer to power off the instance", "instance", instance.ID,
		"timeout", in.timeouts.InstallerStopped.Timeout.String())
	if err := in.waitStopped(ctx, instance); err != nil {
		return "", fmt.Errorf("installer on instance %s did not finish: %w", instance.ID, err)
	}

	s.Enter(ctx, StageSnapshotRegistered)
	imageID, err := in.images.CreateImageFromInstance(ctx, instance.ID, input.Name, input.Description,
		s.Tags(cloud.KindImage, input.Name, false))
	if err != nil {
		return "", fmt.Errorf("failed to create image from instance %s: %w", instance.ID, err)
	}
	imgGuard, err := s.Track(ctx, cloud.KindImage, imageID, string(cloud.ImagePending), func(ctx context.Context) error {
		return in.images.DeregisterImage(ctx, imageID)
	})
	if err != nil {
		return "", err
	}
	if err := in.clock.Sleep(ctx, in.timeouts.ImageSettle); err != nil {
		return "", err
	}
	if err := in.waitImage(ctx, imgGuard.Handle()); err != nil {
		return "", fmt.Errorf("image %s from instance %s is not usable: %w", imageID, instance.ID, err)
	}
	imgGuard.Disarm()

	s.Enter(ctx, StageInstanceTerminated)
	if err := instGuard.Release(ctx); err != nil {
		log.Info("image is ready but the installer instance was not removed", "instance", instance.ID)
	}
	return imageID, nil
}

func (in *Installer) waitStopped(ctx context.Context, h *Handle) error {
	_, err := waitFor(ctx, &in.env, waitSpec[*cloud.Instance]{
		handle: h,
		target: string(cloud.InstanceStopped),
		budget: in.timeouts.InstallerStopped,
		fetch: func(ctx context.Context) (*cloud.Instance, error) {
			return in.compute.DescribeInstance(ctx, h.ID)
		},
		status:    instanceStatus,
		isTarget:  func(i *cloud.Instance) bool { return i.State == cloud.InstanceStopped },
		isFailure: instanceGone,
	})
	return err
}

func (in *Installer) waitImage(ctx context.Context, h *Handle) error {
	_, err := waitFor(ctx, &in.env, waitSpec[*cloud.Image]{
		handle: h,
		target: string(cloud.ImageAvailable),
		budget: in.timeouts.ImageAvailable,
		fetch: func(ctx context.Context) (*cloud.Image, error) {
			return in.images.DescribeImage(ctx, h.ID)
		},
		status:    func(i *cloud.Image) string { return string(i.State) },
		isTarget:  func(i *cloud.Image) bool { return i.State == cloud.ImageAvailable },
		isFailure: func(i *cloud.Image) bool { return i.State == cloud.ImageFailed },
	})
	return err
}
