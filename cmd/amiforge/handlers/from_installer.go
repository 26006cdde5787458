package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"

	"github.com/imamik/amiforge/internal/installer"
	"github.com/imamik/amiforge/internal/platform/ec2"
	"github.com/imamik/amiforge/internal/platform/hcloud"
	"github.com/imamik/amiforge/internal/provisioning/image"
)

// InstallOptions describe the installer script and the captured image.
type InstallOptions struct {
	BaseImage     string
	ScriptPath    string
	RootPassword  string
	RootVolumeGiB int32
	Name          string
	Description   string
}

// input renders the script with the root password and checks that it
// powers the instance off.
func (o InstallOptions) input(ctx context.Context) (image.InstallInput, error) {
	data, err := os.ReadFile(o.ScriptPath)
	if err != nil {
		return image.InstallInput{}, &image.PreconditionError{Reason: fmt.Sprintf("cannot read install script: %v", err)}
	}
	script := installer.Render(string(data), o.RootPassword)

	log := logr.FromContextOrDiscard(ctx)
	info := installer.Inspect(script)
	if info.Distro == installer.DistroUnknown {
		log.Info("could not tell the installer type of the script, assuming it powers off when done", "script", o.ScriptPath)
	} else if !info.Poweroff {
		log.Info("install script never powers off, the run will wait until the installer timeout",
			"script", o.ScriptPath, "expected", installer.PoweroffHint(info.Distro))
	}
	if info.ConsoleCommand != "" {
		log.Info("installer console is enabled", "command", info.ConsoleCommand)
	}

	return image.InstallInput{
		BaseImage:     o.BaseImage,
		UserData:      script,
		Name:          o.Name,
		Description:   o.Description,
		RootVolumeGiB: o.RootVolumeGiB,
	}, nil
}

// FromInstaller boots an EC2 instance with an unattended install script
// and captures the result as an image.
func FromInstaller(ctx context.Context, rt *Runtime, access AWSAccess, opts InstallOptions) error {
	in, err := opts.input(ctx)
	if err != nil {
		return err
	}

	timeouts := loadTimeouts()
	provider, err := newEC2Provider(ctx, access.Region, access.AccessKey, access.SecretKey, timeouts)
	if err != nil {
		return err
	}

	metrics := image.NewMetrics()
	defer rt.writeMetrics(ctx, metrics)

	imageID, err := newInstaller(provider, provider, rt.workflowOptions(timeouts, metrics, ec2.IsTransient)...).Install(ctx, in)
	if err != nil {
		return err
	}

	rt.printf("Got AMI: %s\n", imageID)
	return nil
}

// HCloudInstaller runs the installer workflow on Hetzner Cloud and prints
// the id of the captured snapshot image.
func HCloudInstaller(ctx context.Context, rt *Runtime, location, token, serverType string, opts InstallOptions) error {
	in, err := opts.input(ctx)
	if err != nil {
		return err
	}
	if serverType == "" {
		serverType = rt.Settings.HCloudServerType
	}

	timeouts := loadTimeouts()
	provider := newHCloudProvider(token, location, serverType, timeouts)

	metrics := image.NewMetrics()
	defer rt.writeMetrics(ctx, metrics)

	wfOpts := append(rt.workflowOptions(timeouts, metrics, hcloud.IsTransient), image.WithInstanceType(serverType))
	imageID, err := newInstaller(provider, provider, wfOpts...).Install(ctx, in)
	if err != nil {
		return err
	}

	rt.printf("Got image: %s\n", imageID)
	return nil
}
