package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/util/labels"
	"github.com/imamik/amiforge/internal/util/retry"
)

// RunInstances creates one server. Block device mappings are ignored: the
// root disk size is fixed by the server type.
func (c *RealClient) RunInstances(ctx context.Context, in cloud.RunInstanceInput) ([]cloud.Instance, error) {
	opts, err := c.buildServerCreateOpts(ctx, in)
	if err != nil {
		return nil, err
	}

	result, err := c.createServerWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}
	if result.Server == nil {
		return nil, nil
	}

	return []cloud.Instance{toInstance(result.Server)}, nil
}

// buildServerCreateOpts resolves all dependencies and builds server creation options.
func (c *RealClient) buildServerCreateOpts(ctx context.Context, in cloud.RunInstanceInput) (hcloud.ServerCreateOpts, error) {
	serverType := in.InstanceType
	if serverType == "" {
		serverType = c.serverType
	}

	serverTypeObj, _, err := c.client.ServerType.Get(ctx, serverType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverTypeObj == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("server type not found: %s", serverType)
	}

	imageObj, _, err := c.client.Image.GetForArchitecture(ctx, in.ImageID, serverTypeObj.Architecture)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get image: %w", err)
	}
	if imageObj == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("image not found: %s (%s)", in.ImageID, serverTypeObj.Architecture)
	}

	name := in.Tags[labels.KeyName]
	if name == "" {
		return hcloud.ServerCreateOpts{}, retry.Fatal(fmt.Errorf("server name missing from tag %q", labels.KeyName))
	}

	opts := hcloud.ServerCreateOpts{
		Name:       name,
		ServerType: serverTypeObj,
		Image:      imageObj,
		Labels:     hcloudLabels(in.Tags),
		UserData:   in.UserData,
	}

	if in.KeyName != "" {
		key, _, err := c.client.SSHKey.Get(ctx, in.KeyName)
		if err != nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get ssh key: %w", err)
		}
		if key == nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("ssh key not found: %s", in.KeyName)
		}
		opts.SSHKeys = []*hcloud.SSHKey{key}
	}

	if in.SecurityGroupID != "" {
		fwID, err := parseID("firewall", in.SecurityGroupID)
		if err != nil {
			return hcloud.ServerCreateOpts{}, err
		}
		opts.Firewalls = []*hcloud.ServerCreateFirewall{{Firewall: hcloud.Firewall{ID: fwID}}}
	}

	location := in.Zone
	if location == "" {
		location = c.location
	}
	if location != "" {
		locObj, _, err := c.client.Location.Get(ctx, location)
		if err != nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get location: %w", err)
		}
		if locObj == nil {
			return hcloud.ServerCreateOpts{}, fmt.Errorf("location not found: %s", location)
		}
		opts.Location = locObj
	}

	return opts, nil
}

// createServerWithRetry creates a server, retrying only rate-limited calls:
// any other failure may have left a server behind.
func (c *RealClient) createServerWithRetry(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, error) {
	var result hcloud.ServerCreateResult

	err := retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := c.client.Server.Create(ctx, opts)
		if err != nil {
			return err
		}
		result = res
		return nil
	}, c.retryOptions("create server", IsRateLimited)...)

	if err != nil {
		return result, fmt.Errorf("failed to create server: %w", err)
	}
	return result, nil
}

// DescribeInstance returns the current view of a server. A server the API
// no longer knows is reported as terminated.
func (c *RealClient) DescribeInstance(ctx context.Context, id string) (*cloud.Instance, error) {
	serverID, err := parseID("server", id)
	if err != nil {
		return nil, err
	}

	server, _, err := c.client.Server.GetByID(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	if server == nil {
		return &cloud.Instance{ID: id, State: cloud.InstanceTerminated}, nil
	}

	inst := toInstance(server)
	return &inst, nil
}

// TerminateInstance deletes the server.
func (c *RealClient) TerminateInstance(ctx context.Context, id string) error {
	return (&DeleteOperation[*hcloud.Server]{
		ID:           id,
		ResourceType: "server",
		Get:          c.client.Server.GetByID,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			_, resp, err := c.client.Server.DeleteWithResult(ctx, server)
			return resp, err
		},
	}).Execute(ctx, c)
}

func toInstance(s *hcloud.Server) cloud.Instance {
	inst := cloud.Instance{
		ID:    formatID(s.ID),
		State: instanceState(s.Status),
	}
	if ip := s.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		inst.PublicHost = ip.String()
	}
	if s.Datacenter != nil && s.Datacenter.Location != nil {
		inst.Zone = s.Datacenter.Location.Name
	}
	return inst
}

func instanceState(status hcloud.ServerStatus) cloud.InstanceState {
	switch status {
	case hcloud.ServerStatusInitializing, hcloud.ServerStatusStarting:
		return cloud.InstancePending
	case hcloud.ServerStatusRunning:
		return cloud.InstanceRunning
	case hcloud.ServerStatusStopping:
		return cloud.InstanceStopping
	case hcloud.ServerStatusOff:
		return cloud.InstanceStopped
	case hcloud.ServerStatusDeleting:
		return cloud.InstanceShuttingDown
	default:
		return cloud.InstanceUnknown
	}
}
