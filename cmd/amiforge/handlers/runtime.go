// Package handlers runs the workflows behind each CLI command.
//
// Handlers build provider clients from the positional credentials, wire the
// settings resolved by the root command into the workflows and print the
// resulting ids. Provider and workflow constructors are package variables
// so tests can replace them.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"

	"github.com/imamik/amiforge/internal/config"
	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/platform/ec2"
	"github.com/imamik/amiforge/internal/platform/hcloud"
	"github.com/imamik/amiforge/internal/platform/s3"
	"github.com/imamik/amiforge/internal/provisioning/image"
)

// Runtime is what the root command resolved for every handler.
type Runtime struct {
	Settings *config.Settings
	// Out receives the result lines. Defaults to stdout.
	Out io.Writer
}

// EC2Provider is everything the EC2 workflows need from one client.
type EC2Provider interface {
	cloud.Compute
	cloud.BlockStorage
	cloud.ImageRegistrar
	cloud.ImageCapturer
}

// HCloudProvider is what the Hetzner installer workflow needs.
type HCloudProvider interface {
	cloud.Compute
	cloud.ImageCapturer
}

// Uploader turns an image source into a snapshot.
type Uploader interface {
	Upload(ctx context.Context, src image.ImageSource) (string, error)
}

// Registrar turns a snapshot into an image.
type Registrar interface {
	RegisterFromSnapshot(ctx context.Context, in image.RegisterInput) (string, error)
}

// Installer captures an image from an unattended install.
type Installer interface {
	Install(ctx context.Context, in image.InstallInput) (string, error)
}

// Factory function variables - can be replaced in tests.
var (
	newEC2Provider = func(ctx context.Context, region, accessKey, secretKey string, t *config.Timeouts) (EC2Provider, error) {
		return ec2.NewClient(ctx, region, accessKey, secretKey, ec2.WithTimeouts(t))
	}

	newObjectStore = func(ctx context.Context, region, accessKey, secretKey string) (image.ObjectStore, error) {
		return s3.NewClient(ctx, region, accessKey, secretKey)
	}

	newHCloudProvider = func(token, location, serverType string, t *config.Timeouts) HCloudProvider {
		return hcloud.NewRealClient(token,
			hcloud.WithTimeouts(t),
			hcloud.WithLocation(location),
			hcloud.WithServerType(serverType))
	}

	newUploader = func(p EC2Provider, catalog *config.Catalog, region string, opts ...image.Option) Uploader {
		return image.NewUploader(p, p, catalog, region, opts...)
	}

	newRegistrar = func(p EC2Provider, catalog *config.Catalog, region string) Registrar {
		return image.NewRegistrar(p, catalog, region)
	}

	newInstaller = func(compute cloud.Compute, images cloud.ImageCapturer, opts ...image.Option) Installer {
		return image.NewInstaller(compute, images, opts...)
	}

	loadTimeouts = config.LoadTimeouts
)

func (r *Runtime) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runtime) catalog() (*config.Catalog, error) {
	return config.LoadCatalog(r.Settings.CatalogFile)
}

// workflowOptions maps settings onto workflow options.
func (r *Runtime) workflowOptions(t *config.Timeouts, m *image.Metrics, classify cloud.Classifier) []image.Option {
	return []image.Option{
		image.WithTimeouts(t),
		image.WithMetrics(m),
		image.WithClassifier(classify),
		image.WithInstanceType(r.Settings.InstanceType),
		image.WithCompression(r.Settings.Compression),
		image.WithDevices(r.Settings.AttachDevice, r.Settings.GuestDevice),
	}
}

// writeMetrics writes m to the configured textfile. Failures are logged
// only; they never change the command's result.
func (r *Runtime) writeMetrics(ctx context.Context, m *image.Metrics) {
	if r.Settings.MetricsFile == "" {
		return
	}
	if err := m.WriteToTextfile(r.Settings.MetricsFile); err != nil {
		logr.FromContextOrDiscard(ctx).Error(err, "failed to write metrics", "path", r.Settings.MetricsFile)
	}
}

func (r *Runtime) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out(), format, args...)
}
