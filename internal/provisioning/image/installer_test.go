package image

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/amiforge/internal/platform/cloud"
)

func newTestInstaller(fc *fakeCloud, extra ...Option) *Installer {
	return NewInstaller(fc, fc, testOptions(newFakeClock(), &fakeHost{}, extra...)...)
}

func installerCloud() *fakeCloud {
	fc := newFakeCloud()
	fc.DescribeInstanceFunc = fc.instanceSequence(
		cloud.InstancePending, cloud.InstanceRunning, cloud.InstanceRunning, cloud.InstanceStopping, cloud.InstanceStopped)
	return fc
}

func TestInstall_HappyPath(t *testing.T) {
	t.Parallel()

	fc := installerCloud()
	imageID, err := newTestInstaller(fc).Install(context.Background(), InstallInput{
		BaseImage: "ami-base",
		UserData:  "#!/bin/sh\npoweroff\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "ami-1", imageID)

	assert.Equal(t, []string{
		"CreateSecurityGroup amiforge-vnc-tmp-abcdef01",
		"RunInstances ami-base",
		"CreateImageFromInstance i-1",
		"TerminateInstance i-1",
		"DeleteSecurityGroup sg-1",
	}, fc.Calls())
	assert.Zero(t, fc.called("DeregisterImage"))

	assert.Equal(t, []cloud.IngressRule{
		cloud.SSHFromAnywhere(),
		{Protocol: "tcp", FromPort: 5900, ToPort: 5950, CIDR: "0.0.0.0/0"},
	}, fc.sgRules)
	assert.Equal(t, "#!/bin/sh\npoweroff\n", fc.runInput.UserData)
	assert.Equal(t, "sg-1", fc.runInput.SecurityGroupID)
	assert.Empty(t, fc.runInput.KeyName)
	assert.Equal(t, []cloud.BlockDevice{{DeviceName: "/dev/sda", VolumeSizeGiB: 10, DeleteOnTermination: true}}, fc.runInput.BlockDevices)
	assert.Equal(t, "amiforge-build-abcdef01", fc.runInput.Tags["Name"])
}

func TestInstall_RootVolumeSize(t *testing.T) {
	t.Parallel()

	fc := installerCloud()
	_, err := newTestInstaller(fc).Install(context.Background(), InstallInput{BaseImage: "ami-base", RootVolumeGiB: 32})
	require.NoError(t, err)
	assert.Equal(t, int32(32), fc.runInput.BlockDevices[0].VolumeSizeGiB)
}

func TestInstall_MissingBaseImage(t *testing.T) {
	t.Parallel()

	fc := installerCloud()
	_, err := newTestInstaller(fc).Install(context.Background(), InstallInput{})

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Empty(t, fc.Calls())
}

func TestInstall_FailedImageIsDeregistered(t *testing.T) {
	t.Parallel()

	fc := installerCloud()
	fc.DescribeImageFunc = func(_ context.Context, id string) (*cloud.Image, error) {
		return &cloud.Image{ID: id, State: cloud.ImageFailed}, nil
	}

	_, err := newTestInstaller(fc).Install(context.Background(), InstallInput{BaseImage: "ami-base"})

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, WorkflowFromInstaller, stageErr.Workflow)
	assert.Equal(t, StageSnapshotRegistered, stageErr.Stage)
	var failure *FailureStateError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "ami-1", failure.ID)
	assert.Equal(t, "failed", failure.State)

	calls := fc.Calls()
	assert.Equal(t, []string{
		"TerminateInstance i-1",
		"DeregisterImage ami-1",
		"DeleteSecurityGroup sg-1",
	}, calls[len(calls)-3:])
}

func TestInstall_InstallerNeverPowersOff(t *testing.T) {
	t.Parallel()

	fc := newFakeCloud()
	fc.DescribeInstanceFunc = fc.instanceSequence(cloud.InstanceRunning)

	_, err := newTestInstaller(fc).Install(context.Background(), InstallInput{BaseImage: "ami-base"})

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageInstanceStopped, stageErr.Stage)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "running", timeout.LastStatus)
	assert.Equal(t, "stopped", timeout.Target)

	assert.Zero(t, fc.called("CreateImageFromInstance"))
	assert.Equal(t, 1, fc.called("TerminateInstance i-1"))
	assert.Equal(t, 1, fc.called("DeleteSecurityGroup sg-1"))
}

func TestInstall_InstanceTerminatedDuringInstall(t *testing.T) {
	t.Parallel()

	fc := newFakeCloud()
	fc.DescribeInstanceFunc = fc.instanceSequence(cloud.InstanceRunning, cloud.InstanceTerminated)

	_, err := newTestInstaller(fc).Install(context.Background(), InstallInput{BaseImage: "ami-base"})

	var failure *FailureStateError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "terminated", failure.State)
}

func TestInstall_InlineTerminationFailureKeepsImage(t *testing.T) {
	t.Parallel()

	fc := installerCloud()
	fc.TerminateInstanceFunc = func(context.Context, string) error {
		return errors.New("IncorrectInstanceState")
	}

	imageID, err := newTestInstaller(fc).Install(context.Background(), InstallInput{BaseImage: "ami-base"})
	require.NoError(t, err)
	assert.Equal(t, "ami-1", imageID)
	assert.Zero(t, fc.called("DeregisterImage"))
	assert.Equal(t, 1, fc.called("TerminateInstance"), "a failed release is not retried at teardown")
}

func TestInstall_Names(t *testing.T) {
	t.Parallel()

	fc := installerCloud()
	_, err := newTestInstaller(fc).Install(context.Background(), InstallInput{BaseImage: "ami-base"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fc.imageName, "amiforge AMI - ami-base - uuid-"), fc.imageName)
	assert.Equal(t, "Created from modified snapshot of AMI ami-base", fc.imageDesc)

	fc = installerCloud()
	_, err = newTestInstaller(fc).Install(context.Background(), InstallInput{
		BaseImage:   "ami-base",
		Name:        "fedora-20",
		Description: "Fedora 20 minimal",
	})
	require.NoError(t, err)
	assert.Equal(t, "fedora-20", fc.imageName)
	assert.Equal(t, "Fedora 20 minimal", fc.imageDesc)
}
