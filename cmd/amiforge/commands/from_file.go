package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/amiforge/cmd/amiforge/handlers"
)

func imageFlags(cmd *cobra.Command, opts *handlers.ImageOptions) {
	cmd.Flags().StringVar(&opts.Architecture, "arch", "x86_64", "Image architecture: x86_64 or i386")
	cmd.Flags().BoolVar(&opts.NoEphemeral, "no-ephemeral", false, "Do not map ephemeral0 and ephemeral1 as sdb and sdc")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Image name (default generated)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "Image description (default generated)")
}

// FromFile returns the from-file command.
//
// It uploads a raw whole-disk image through a temporary utility instance,
// snapshots the volume and registers a PV-GRUB image from the snapshot.
func FromFile(rt *handlers.Runtime) *cobra.Command {
	var opts handlers.ImageOptions

	cmd := &cobra.Command{
		Use:   "from-file <region> <access-key> <secret-key> <image-file|s3://bucket/key>",
		Short: "Create an image from a raw disk image file",
		Long: `Create an EBS-backed image from a raw whole-disk image.

The image is streamed compressed over SSH onto a new volume attached to a
temporary utility instance, the volume is snapshotted and the snapshot is
registered with the region's PV-GRUB kernel. Every temporary resource is
removed before the command returns.

Example:
  amiforge from-file us-east-1 AKIA... secret disk.img
  amiforge from-file eu-west-1 AKIA... secret s3://builds/fedora.img --no-ephemeral`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			access := handlers.AWSAccess{Region: args[0], AccessKey: args[1], SecretKey: args[2]}
			return handlers.FromFile(cmd.Context(), rt, access, args[3], opts)
		},
	}
	imageFlags(cmd, &opts)

	return cmd
}

// Register returns the register command.
func Register(rt *handlers.Runtime) *cobra.Command {
	var opts handlers.ImageOptions

	cmd := &cobra.Command{
		Use:   "register <region> <access-key> <secret-key> <snapshot-id>",
		Short: "Register an image from an existing snapshot",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			access := handlers.AWSAccess{Region: args[0], AccessKey: args[1], SecretKey: args[2]}
			return handlers.Register(cmd.Context(), rt, access, args[3], opts)
		},
	}
	imageFlags(cmd, &opts)

	return cmd
}
