package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/amiforge/internal/platform/cloud"
)

// CreateVolume creates an empty volume in zone.
func (c *Client) CreateVolume(ctx context.Context, sizeGiB int32, zone string, tags map[string]string) (string, error) {
	out, err := c.api.CreateVolume(ctx, &ec2.CreateVolumeInput{
		AvailabilityZone:  aws.String(zone),
		Size:              aws.Int32(sizeGiB),
		TagSpecifications: tagSpecs(types.ResourceTypeVolume, tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create %d GiB volume in %s: %w", sizeGiB, zone, err)
	}
	return aws.ToString(out.VolumeId), nil
}

// DescribeVolume returns the current view of a volume.
func (c *Client) DescribeVolume(ctx context.Context, id string) (*cloud.Volume, error) {
	out, err := c.api.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{VolumeIds: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("failed to describe volume %s: %w", id, err)
	}
	for _, v := range out.Volumes {
		if aws.ToString(v.VolumeId) == id {
			vol := toVolume(v)
			return &vol, nil
		}
	}
	return nil, fmt.Errorf("volume %s: %w", id, ErrNotVisible)
}

// AttachVolume attaches a volume to an instance at device.
func (c *Client) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	if _, err := c.api.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(device),
	}); err != nil {
		return fmt.Errorf("failed to attach volume %s to %s at %s: %w", volumeID, instanceID, device, err)
	}
	return nil
}

// DetachVolume requests a detach.
func (c *Client) DetachVolume(ctx context.Context, volumeID string) error {
	if _, err := c.api.DetachVolume(ctx, &ec2.DetachVolumeInput{VolumeId: aws.String(volumeID)}); err != nil {
		return fmt.Errorf("failed to detach volume %s: %w", volumeID, err)
	}
	return nil
}

// DeleteVolume deletes a volume, retrying while it is still detaching.
func (c *Client) DeleteVolume(ctx context.Context, id string) error {
	return (&DeleteOperation{
		ID:           id,
		ResourceType: "volume",
		Delete: func(ctx context.Context) error {
			_, err := c.api.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(id)})
			return err
		},
		Retryable: IsIncorrectState,
	}).Execute(ctx, c)
}

// CreateSnapshot starts a snapshot of a volume.
func (c *Client) CreateSnapshot(ctx context.Context, volumeID, description string, tags map[string]string) (string, error) {
	out, err := c.api.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
		VolumeId:          aws.String(volumeID),
		Description:       aws.String(description),
		TagSpecifications: tagSpecs(types.ResourceTypeSnapshot, tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to snapshot volume %s: %w", volumeID, err)
	}
	return aws.ToString(out.SnapshotId), nil
}

// DescribeSnapshot returns the current view of a snapshot.
func (c *Client) DescribeSnapshot(ctx context.Context, id string) (*cloud.Snapshot, error) {
	out, err := c.api.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{SnapshotIds: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("failed to describe snapshot %s: %w", id, err)
	}
	for _, s := range out.Snapshots {
		if aws.ToString(s.SnapshotId) == id {
			return &cloud.Snapshot{
				ID:       id,
				State:    snapshotState(s.State),
				Progress: aws.ToString(s.Progress),
			}, nil
		}
	}
	return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotVisible)
}

// DeleteSnapshot deletes a snapshot.
func (c *Client) DeleteSnapshot(ctx context.Context, id string) error {
	return (&DeleteOperation{
		ID:           id,
		ResourceType: "snapshot",
		Delete: func(ctx context.Context) error {
			_, err := c.api.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{SnapshotId: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}
