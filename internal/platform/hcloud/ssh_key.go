package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/util/keygen"
)

// CreateKeyPair generates an RSA key pair locally and uploads its public
// half. The private key stays in memory only.
func (c *RealClient) CreateKeyPair(ctx context.Context, name string, tags map[string]string) (*cloud.KeyPair, error) {
	kp, err := keygen.GenerateRSAKeyPair(c.keyBits)
	if err != nil {
		return nil, err
	}

	key, _, err := c.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: string(kp.PublicKey),
		Labels:    hcloudLabels(tags),
	})
	if err != nil {
		keygen.Wipe(kp.PrivateKey)
		return nil, fmt.Errorf("failed to create ssh key %s: %w", name, err)
	}

	return &cloud.KeyPair{
		Name:       key.Name,
		ID:         formatID(key.ID),
		PrivateKey: kp.PrivateKey,
	}, nil
}

// DeleteKeyPair deletes the uploaded public key.
func (c *RealClient) DeleteKeyPair(ctx context.Context, kp *cloud.KeyPair) error {
	return (&DeleteOperation[*hcloud.SSHKey]{
		ID:           kp.ID,
		ResourceType: "ssh key",
		Get:          c.client.SSHKey.GetByID,
		Delete:       c.client.SSHKey.Delete,
	}).Execute(ctx, c)
}
