package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/amiforge/internal/platform/cloud"
)

// imageStatusUnavailable is reported for snapshots whose creation failed.
const imageStatusUnavailable hcloud.ImageStatus = "unavailable"

// CreateImageFromInstance starts a snapshot of the server's root disk and
// returns the image ID without waiting; callers poll DescribeImage.
// Snapshots have no name, so name and description share the description.
func (c *RealClient) CreateImageFromInstance(ctx context.Context, instanceID, name, description string, tags map[string]string) (string, error) {
	serverID, err := parseID("server", instanceID)
	if err != nil {
		return "", err
	}

	desc := name
	if description != "" {
		desc = fmt.Sprintf("%s (%s)", name, description)
	}

	result, _, err := c.client.Server.CreateImage(ctx, &hcloud.Server{ID: serverID}, &hcloud.ServerCreateImageOpts{
		Type:        hcloud.ImageTypeSnapshot,
		Description: hcloud.Ptr(desc),
		Labels:      hcloudLabels(tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot of server %s: %w", instanceID, err)
	}
	if result.Image == nil {
		return "", fmt.Errorf("snapshot of server %s: create returned no image", instanceID)
	}

	return formatID(result.Image.ID), nil
}

// DescribeImage returns the current view of a snapshot image.
func (c *RealClient) DescribeImage(ctx context.Context, id string) (*cloud.Image, error) {
	imageID, err := parseID("image", id)
	if err != nil {
		return nil, err
	}

	image, _, err := c.client.Image.GetByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get image %s: %w", id, err)
	}
	if image == nil {
		return nil, fmt.Errorf("image %s: %w", id, ErrNotVisible)
	}

	return &cloud.Image{ID: id, State: imageState(image.Status)}, nil
}

// DeregisterImage deletes a snapshot image.
func (c *RealClient) DeregisterImage(ctx context.Context, id string) error {
	return (&DeleteOperation[*hcloud.Image]{
		ID:           id,
		ResourceType: "image",
		Get:          c.client.Image.GetByID,
		Delete:       c.client.Image.Delete,
	}).Execute(ctx, c)
}

func imageState(status hcloud.ImageStatus) cloud.ImageState {
	switch status {
	case hcloud.ImageStatusCreating:
		return cloud.ImagePending
	case hcloud.ImageStatusAvailable:
		return cloud.ImageAvailable
	case imageStatusUnavailable:
		return cloud.ImageFailed
	default:
		return cloud.ImagePending
	}
}
