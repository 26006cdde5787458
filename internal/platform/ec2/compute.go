package ec2

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/amiforge/internal/platform/cloud"
)

// CreateSecurityGroup creates a group and authorizes its ingress rules.
// If authorization fails the group is deleted again before returning.
func (c *Client) CreateSecurityGroup(ctx context.Context, name, description string, rules []cloud.IngressRule, tags map[string]string) (string, error) {
	out, err := c.api.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(name),
		Description:       aws.String(description),
		TagSpecifications: tagSpecs(types.ResourceTypeSecurityGroup, tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group %s: %w", name, err)
	}
	groupID := aws.ToString(out.GroupId)

	if len(rules) == 0 {
		return groupID, nil
	}

	perms := make([]types.IpPermission, 0, len(rules))
	for _, r := range rules {
		perms = append(perms, types.IpPermission{
			IpProtocol: aws.String(r.Protocol),
			FromPort:   aws.Int32(r.FromPort),
			ToPort:     aws.Int32(r.ToPort),
			IpRanges:   []types.IpRange{{CidrIp: aws.String(r.CIDR)}},
		})
	}

	if _, err := c.api.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: perms,
	}); err != nil {
		if delErr := c.DeleteSecurityGroup(ctx, groupID); delErr != nil {
			return "", fmt.Errorf("failed to authorize ingress on %s: %w (group may still be present: %v)", groupID, err, delErr)
		}
		return "", fmt.Errorf("failed to authorize ingress on %s: %w", groupID, err)
	}

	return groupID, nil
}

// DeleteSecurityGroup deletes a group, retrying while a terminating
// instance still references it.
func (c *Client) DeleteSecurityGroup(ctx context.Context, id string) error {
	return (&DeleteOperation{
		ID:           id,
		ResourceType: "security group",
		Delete: func(ctx context.Context) error {
			_, err := c.api.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(id)})
			return err
		},
		Retryable: IsDependencyViolation,
	}).Execute(ctx, c)
}

// CreateKeyPair creates an EC2-minted RSA key pair. The private key is
// returned once and never stored.
func (c *Client) CreateKeyPair(ctx context.Context, name string, tags map[string]string) (*cloud.KeyPair, error) {
	out, err := c.api.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
		KeyName:           aws.String(name),
		KeyType:           types.KeyTypeRsa,
		TagSpecifications: tagSpecs(types.ResourceTypeKeyPair, tags),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key pair %s: %w", name, err)
	}
	if aws.ToString(out.KeyMaterial) == "" {
		return nil, fmt.Errorf("key pair %s returned no key material", name)
	}

	return &cloud.KeyPair{
		Name:       aws.ToString(out.KeyName),
		ID:         aws.ToString(out.KeyPairId),
		PrivateKey: []byte(aws.ToString(out.KeyMaterial)),
	}, nil
}

// DeleteKeyPair deletes the remote half of a key pair.
func (c *Client) DeleteKeyPair(ctx context.Context, kp *cloud.KeyPair) error {
	return (&DeleteOperation{
		ID:           kp.Name,
		ResourceType: "key pair",
		Delete: func(ctx context.Context) error {
			_, err := c.api.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyName: aws.String(kp.Name)})
			return err
		},
	}).Execute(ctx, c)
}

// RunInstances launches exactly one instance.
func (c *Client) RunInstances(ctx context.Context, in cloud.RunInstanceInput) ([]cloud.Instance, error) {
	req := &ec2.RunInstancesInput{
		ImageId:           aws.String(in.ImageID),
		InstanceType:      types.InstanceType(in.InstanceType),
		MinCount:          aws.Int32(1),
		MaxCount:          aws.Int32(1),
		TagSpecifications: tagSpecs(types.ResourceTypeInstance, in.Tags),
	}
	if in.KeyName != "" {
		req.KeyName = aws.String(in.KeyName)
	}
	if in.SecurityGroupID != "" {
		req.SecurityGroupIds = []string{in.SecurityGroupID}
	}
	if in.UserData != "" {
		req.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(in.UserData)))
	}
	if len(in.BlockDevices) > 0 {
		req.BlockDeviceMappings = blockDeviceMappings(in.BlockDevices)
	}
	if in.Zone != "" {
		req.Placement = &types.Placement{AvailabilityZone: aws.String(in.Zone)}
	}

	out, err := c.api.RunInstances(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to run instance of %s: %w", in.ImageID, err)
	}

	instances := make([]cloud.Instance, 0, len(out.Instances))
	for _, i := range out.Instances {
		instances = append(instances, toInstance(i))
	}
	return instances, nil
}

// DescribeInstance returns the current view of an instance.
func (c *Client) DescribeInstance(ctx context.Context, id string) (*cloud.Instance, error) {
	out, err := c.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}
	for _, r := range out.Reservations {
		for _, i := range r.Instances {
			if aws.ToString(i.InstanceId) == id {
				inst := toInstance(i)
				return &inst, nil
			}
		}
	}
	return nil, fmt.Errorf("instance %s: %w", id, ErrNotVisible)
}

// TerminateInstance requests termination. An already-gone instance is not an error.
func (c *Client) TerminateInstance(ctx context.Context, id string) error {
	_, err := c.api.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to terminate instance %s: %w", id, err)
	}
	return nil
}
