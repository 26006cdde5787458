package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/amiforge/internal/platform/cloud"
)

// RegisterImage registers an EBS-backed paravirtual image.
func (c *Client) RegisterImage(ctx context.Context, in cloud.RegisterImageInput) (string, error) {
	req := &ec2.RegisterImageInput{
		Name:                aws.String(in.Name),
		Architecture:        types.ArchitectureValues(in.Architecture),
		RootDeviceName:      aws.String(in.RootDeviceName),
		BlockDeviceMappings: blockDeviceMappings(in.BlockDevices),
	}
	if in.Description != "" {
		req.Description = aws.String(in.Description)
	}
	if in.KernelID != "" {
		req.KernelId = aws.String(in.KernelID)
		req.VirtualizationType = aws.String("paravirtual")
	}

	out, err := c.api.RegisterImage(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to register image %s: %w", in.Name, err)
	}
	return aws.ToString(out.ImageId), nil
}

// CreateImageFromInstance captures the root volume of a stopped instance.
func (c *Client) CreateImageFromInstance(ctx context.Context, instanceID, name, description string, tags map[string]string) (string, error) {
	out, err := c.api.CreateImage(ctx, &ec2.CreateImageInput{
		InstanceId:        aws.String(instanceID),
		Name:              aws.String(name),
		Description:       aws.String(description),
		TagSpecifications: tagSpecs(types.ResourceTypeImage, tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create image from instance %s: %w", instanceID, err)
	}
	return aws.ToString(out.ImageId), nil
}

// DescribeImage returns the current view of an image.
func (c *Client) DescribeImage(ctx context.Context, id string) (*cloud.Image, error) {
	out, err := c.api.DescribeImages(ctx, &ec2.DescribeImagesInput{ImageIds: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("failed to describe image %s: %w", id, err)
	}
	for _, img := range out.Images {
		if aws.ToString(img.ImageId) == id {
			return &cloud.Image{ID: id, State: imageState(img.State)}, nil
		}
	}
	return nil, fmt.Errorf("image %s: %w", id, ErrNotVisible)
}

// DeregisterImage removes an image registration.
func (c *Client) DeregisterImage(ctx context.Context, id string) error {
	return (&DeleteOperation{
		ID:           id,
		ResourceType: "image",
		Delete: func(ctx context.Context) error {
			_, err := c.api.DeregisterImage(ctx, &ec2.DeregisterImageInput{ImageId: aws.String(id)})
			return err
		},
	}).Execute(ctx, c)
}
