package ec2

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/amiforge/internal/platform/cloud"
)

// tagSpecs builds a TagSpecification for resourceType, or nil without tags.
func tagSpecs(resourceType types.ResourceType, tags map[string]string) []types.TagSpecification {
	if len(tags) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ec2Tags := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		ec2Tags = append(ec2Tags, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return []types.TagSpecification{{ResourceType: resourceType, Tags: ec2Tags}}
}

func toInstance(in types.Instance) cloud.Instance {
	out := cloud.Instance{
		ID:    aws.ToString(in.InstanceId),
		State: cloud.InstanceUnknown,
	}
	if in.State != nil {
		out.State = instanceState(in.State.Name)
	}
	out.PublicHost = aws.ToString(in.PublicDnsName)
	if out.PublicHost == "" {
		out.PublicHost = aws.ToString(in.PublicIpAddress)
	}
	if in.Placement != nil {
		out.Zone = aws.ToString(in.Placement.AvailabilityZone)
	}
	return out
}

func instanceState(name types.InstanceStateName) cloud.InstanceState {
	switch name {
	case types.InstanceStateNamePending:
		return cloud.InstancePending
	case types.InstanceStateNameRunning:
		return cloud.InstanceRunning
	case types.InstanceStateNameStopping:
		return cloud.InstanceStopping
	case types.InstanceStateNameStopped:
		return cloud.InstanceStopped
	case types.InstanceStateNameShuttingDown:
		return cloud.InstanceShuttingDown
	case types.InstanceStateNameTerminated:
		return cloud.InstanceTerminated
	default:
		return cloud.InstanceUnknown
	}
}

func toVolume(v types.Volume) cloud.Volume {
	out := cloud.Volume{
		ID:      aws.ToString(v.VolumeId),
		State:   cloud.VolumeState(v.State),
		SizeGiB: aws.ToInt32(v.Size),
	}
	if len(v.Attachments) > 0 {
		switch v.Attachments[0].State {
		case types.VolumeAttachmentStateAttaching:
			out.Attachment = cloud.AttachmentAttaching
		case types.VolumeAttachmentStateAttached:
			out.Attachment = cloud.AttachmentAttached
		case types.VolumeAttachmentStateDetaching, types.VolumeAttachmentStateBusy:
			out.Attachment = cloud.AttachmentDetaching
		case types.VolumeAttachmentStateDetached:
			out.Attachment = cloud.AttachmentDetached
		}
	}
	return out
}

func snapshotState(s types.SnapshotState) cloud.SnapshotState {
	switch s {
	case types.SnapshotStateCompleted:
		return cloud.SnapshotCompleted
	case types.SnapshotStateError, types.SnapshotStateRecoverable:
		return cloud.SnapshotFailed
	default:
		return cloud.SnapshotPending
	}
}

func imageState(s types.ImageState) cloud.ImageState {
	switch s {
	case types.ImageStateAvailable:
		return cloud.ImageAvailable
	case types.ImageStateFailed, types.ImageStateError, types.ImageStateInvalid,
		types.ImageStateDeregistered:
		return cloud.ImageFailed
	default:
		return cloud.ImagePending
	}
}

func blockDeviceMappings(devices []cloud.BlockDevice) []types.BlockDeviceMapping {
	out := make([]types.BlockDeviceMapping, 0, len(devices))
	for _, d := range devices {
		m := types.BlockDeviceMapping{DeviceName: aws.String(d.DeviceName)}
		if d.Ephemeral() {
			m.VirtualName = aws.String(d.VirtualName)
		} else {
			ebs := &types.EbsBlockDevice{DeleteOnTermination: aws.Bool(d.DeleteOnTermination)}
			if d.SnapshotID != "" {
				ebs.SnapshotId = aws.String(d.SnapshotID)
			}
			if d.VolumeSizeGiB > 0 {
				ebs.VolumeSize = aws.Int32(d.VolumeSizeGiB)
			}
			m.Ebs = ebs
		}
		out = append(out, m)
	}
	return out
}
