package handlers

import (
	"context"
)

// Register registers an existing snapshot as an image.
func Register(ctx context.Context, rt *Runtime, access AWSAccess, snapshotID string, opts ImageOptions) error {
	catalog, err := rt.catalog()
	if err != nil {
		return err
	}

	provider, err := newEC2Provider(ctx, access.Region, access.AccessKey, access.SecretKey, loadTimeouts())
	if err != nil {
		return err
	}

	imageID, err := newRegistrar(provider, catalog, access.Region).RegisterFromSnapshot(ctx, opts.registerInput(snapshotID))
	if err != nil {
		return err
	}

	rt.printf("Got AMI: %s\n", imageID)
	return nil
}
