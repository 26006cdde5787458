package hcloud

import (
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/amiforge/internal/config"
	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/util/labels"
	"github.com/imamik/amiforge/internal/util/retry"
)

var (
	_ cloud.Compute       = (*RealClient)(nil)
	_ cloud.ImageCapturer = (*RealClient)(nil)
)

// DefaultServerType is used when a launch names no server type.
const DefaultServerType = "cx22"

// RealClient implements the cloud capabilities using the Hetzner Cloud API.
type RealClient struct {
	client     *hcloud.Client
	timeouts   *config.Timeouts
	serverType string
	location   string
	keyBits    int
}

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// WithServerType sets the server type used when RunInstances names none.
func WithServerType(name string) ClientOption {
	return func(c *RealClient) {
		if name != "" {
			c.serverType = name
		}
	}
}

// WithLocation sets the location used when RunInstances names no zone.
func WithLocation(name string) ClientOption {
	return func(c *RealClient) {
		c.location = name
	}
}

// WithKeyBits sets the RSA size of locally generated key pairs.
func WithKeyBits(bits int) ClientOption {
	return func(c *RealClient) {
		c.keyBits = bits
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		client:     hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("amiforge", "")),
		timeouts:   config.LoadTimeouts(),
		serverType: DefaultServerType,
		keyBits:    4096,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HCloudClient returns the underlying hcloud.Client for advanced operations.
func (c *RealClient) HCloudClient() *hcloud.Client {
	return c.client
}

// parseID converts a resource ID handed out by this client back to its
// numeric form. A malformed ID can never succeed, so the error is fatal.
func parseID(resourceType, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, retry.Fatal(fmt.Errorf("invalid %s id %q", resourceType, id))
	}
	return n, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// hcloudLabels drops tags Hetzner cannot store as labels.
func hcloudLabels(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if k == labels.KeyName {
			continue
		}
		out[k] = v
	}
	return out
}
