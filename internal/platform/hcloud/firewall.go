package hcloud

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/amiforge/internal/platform/cloud"
)

// CreateSecurityGroup creates a firewall admitting the given inbound rules.
// Hetzner firewalls drop all other inbound traffic once applied.
func (c *RealClient) CreateSecurityGroup(ctx context.Context, name, description string, rules []cloud.IngressRule, tags map[string]string) (string, error) {
	fwRules, err := firewallRules(rules, description)
	if err != nil {
		return "", err
	}

	res, _, err := c.client.Firewall.Create(ctx, hcloud.FirewallCreateOpts{
		Name:   name,
		Rules:  fwRules,
		Labels: hcloudLabels(tags),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create firewall %s: %w", name, err)
	}
	if res.Firewall == nil {
		return "", fmt.Errorf("firewall %s: create returned no firewall", name)
	}
	if err := waitForActions(ctx, c.client, res.Actions...); err != nil {
		return formatID(res.Firewall.ID), fmt.Errorf("failed to wait for firewall %s: %w", name, err)
	}

	return formatID(res.Firewall.ID), nil
}

// DeleteSecurityGroup deletes a firewall, retrying while a server being
// deleted still holds it.
func (c *RealClient) DeleteSecurityGroup(ctx context.Context, id string) error {
	return (&DeleteOperation[*hcloud.Firewall]{
		ID:           id,
		ResourceType: "firewall",
		Get:          c.client.Firewall.GetByID,
		Delete:       c.client.Firewall.Delete,
		Retryable:    isResourceInUse,
	}).Execute(ctx, c)
}

func firewallRules(rules []cloud.IngressRule, description string) ([]hcloud.FirewallRule, error) {
	out := make([]hcloud.FirewallRule, 0, len(rules))
	for _, r := range rules {
		_, cidr, err := net.ParseCIDR(r.CIDR)
		if err != nil {
			return nil, fmt.Errorf("invalid source range %q: %w", r.CIDR, err)
		}

		rule := hcloud.FirewallRule{
			Direction: hcloud.FirewallRuleDirectionIn,
			Protocol:  hcloud.FirewallRuleProtocol(r.Protocol),
			SourceIPs: []net.IPNet{*cidr},
		}
		if description != "" {
			rule.Description = hcloud.Ptr(description)
		}
		if port := portRange(r.FromPort, r.ToPort); port != "" {
			rule.Port = hcloud.Ptr(port)
		}
		out = append(out, rule)
	}
	return out, nil
}

// portRange formats a port or port range the way the firewall API expects.
func portRange(from, to int32) string {
	switch {
	case from <= 0:
		return ""
	case to <= from:
		return strconv.Itoa(int(from))
	default:
		return fmt.Sprintf("%d-%d", from, to)
	}
}
