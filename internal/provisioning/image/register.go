package image

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/amiforge/internal/config"
	"github.com/imamik/amiforge/internal/platform/cloud"
	"github.com/imamik/amiforge/internal/util/naming"
)

// DefaultArchitecture is used when RegisterInput leaves it empty.
const DefaultArchitecture = "x86_64"

// RegisterInput describes an image to register from a snapshot.
type RegisterInput struct {
	SnapshotID   string
	Architecture string
	// DefaultEphemeral maps ephemeral0 and ephemeral1 as sdb and sdc.
	DefaultEphemeral bool
	Name             string
	Description      string
}

// Registrar registers paravirtual images that boot a snapshot through the
// region's PV-GRUB kernel.
type Registrar struct {
	images  cloud.ImageRegistrar
	catalog *config.Catalog
	region  string
}

// NewRegistrar creates a Registrar for region.
func NewRegistrar(images cloud.ImageRegistrar, catalog *config.Catalog, region string) *Registrar {
	return &Registrar{images: images, catalog: catalog, region: region}
}

// RegisterFromSnapshot registers an image whose root device is the snapshot
// and returns the image ID.
func (r *Registrar) RegisterFromSnapshot(ctx context.Context, in RegisterInput) (string, error) {
	if in.SnapshotID == "" {
		return "", &PreconditionError{Reason: "snapshot id is required"}
	}
	arch := in.Architecture
	if arch == "" {
		arch = DefaultArchitecture
	}
	kernel, ok := r.catalog.BootLoader(r.region, arch)
	if !ok {
		return "", &PreconditionError{Reason: fmt.Sprintf("no boot loader for region %s and architecture %s", r.region, arch)}
	}

	name := in.Name
	if name == "" {
		name = naming.Image(in.SnapshotID)
	}
	description := in.Description
	if description == "" {
		description = naming.SnapshotImageDescription(in.SnapshotID)
	}

	log := logr.FromContextOrDiscard(ctx)
	log.Info("registering image", "snapshot", in.SnapshotID, "name", name, "kernel", kernel, "arch", arch)

	id, err := r.images.RegisterImage(ctx, cloud.RegisterImageInput{
		Name:           name,
		Description:    description,
		Architecture:   arch,
		KernelID:       kernel,
		RootDeviceName: rootDevice,
		BlockDevices:   BlockDeviceMapping(in.SnapshotID, in.DefaultEphemeral),
	})
	if err != nil {
		return "", fmt.Errorf("failed to register snapshot %s: %w", in.SnapshotID, err)
	}
	log.Info("registered image", "image", id)
	return id, nil
}

// BlockDeviceMapping returns the devices of an image booting snapshotID,
// optionally with the first two instance store volumes.
func BlockDeviceMapping(snapshotID string, ephemeral bool) []cloud.BlockDevice {
	devices := []cloud.BlockDevice{{
		DeviceName:          rootDevice,
		SnapshotID:          snapshotID,
		DeleteOnTermination: true,
	}}
	if ephemeral {
		devices = append(devices,
			cloud.BlockDevice{DeviceName: "/dev/sdb", VirtualName: "ephemeral0"},
			cloud.BlockDevice{DeviceName: "/dev/sdc", VirtualName: "ephemeral1"},
		)
	}
	return devices
}
