package handlers

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/amiforge/internal/platform/ec2"
	"github.com/imamik/amiforge/internal/platform/s3"
	"github.com/imamik/amiforge/internal/provisioning/image"
)

// AWSAccess identifies the region and credentials of an EC2 command.
type AWSAccess struct {
	Region    string
	AccessKey string
	SecretKey string
}

// ImageOptions are the registration choices shared by from-file and register.
type ImageOptions struct {
	Architecture string
	NoEphemeral  bool
	Name         string
	Description  string
}

func (o ImageOptions) registerInput(snapshotID string) image.RegisterInput {
	return image.RegisterInput{
		SnapshotID:       snapshotID,
		Architecture:     o.Architecture,
		DefaultEphemeral: !o.NoEphemeral,
		Name:             o.Name,
		Description:      o.Description,
	}
}

// FromFile uploads a raw disk image, snapshots it and registers the
// snapshot as an image. source is a local path or an s3:// URL.
func FromFile(ctx context.Context, rt *Runtime, access AWSAccess, source string, opts ImageOptions) error {
	log := logr.FromContextOrDiscard(ctx)

	catalog, err := rt.catalog()
	if err != nil {
		return err
	}
	// Reject unknown regions before uploading gigabytes that cannot be registered.
	arch := opts.Architecture
	if arch == "" {
		arch = image.DefaultArchitecture
	}
	if _, ok := catalog.BootLoader(access.Region, arch); !ok {
		return &image.PreconditionError{Reason: fmt.Sprintf("no boot loader for region %s and architecture %s", access.Region, arch)}
	}

	src, err := imageSource(ctx, access, source)
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

	uploader := newUploader(provider, catalog, access.Region, rt.workflowOptions(timeouts, metrics, ec2.IsTransient)...)
	snapshotID, err := uploader.Upload(ctx, src)
	if err != nil {
		return err
	}
	log.Info("snapshot created", "snapshot", snapshotID)

	imageID, err := newRegistrar(provider, catalog, access.Region).RegisterFromSnapshot(ctx, opts.registerInput(snapshotID))
	if err != nil {
		return fmt.Errorf("snapshot %s was created but could not be registered: %w", snapshotID, err)
	}

	rt.printf("Got AMI: %s\n", imageID)
	return nil
}

func imageSource(ctx context.Context, access AWSAccess, ref string) (image.ImageSource, error) {
	if !s3.IsURL(ref) {
		return image.FileSource{Path: ref}, nil
	}
	obj, err := s3.ParseURL(ref)
	if err != nil {
		return nil, &image.PreconditionError{Reason: err.Error()}
	}
	store, err := newObjectStore(ctx, access.Region, access.AccessKey, access.SecretKey)
	if err != nil {
		return nil, err
	}
	return image.ObjectSource{Store: store, Object: obj}, nil
}
