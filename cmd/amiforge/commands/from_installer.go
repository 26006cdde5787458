package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/amiforge/cmd/amiforge/handlers"
)

func installFlags(cmd *cobra.Command, opts *handlers.InstallOptions) {
	cmd.Flags().Int32Var(&opts.RootVolumeGiB, "root-size", 10, "Root volume size in GiB")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Image name (default generated)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "Image description (default generated)")
}

// FromInstaller returns the from-installer command.
//
// The install script is a kickstart or preseed file; ${adminpw} in it is
// replaced with the root password. The script must power the instance off
// when the install is complete.
func FromInstaller(rt *handlers.Runtime) *cobra.Command {
	var opts handlers.InstallOptions

	cmd := &cobra.Command{
		Use:   "from-installer <region> <access-key> <secret-key> <base-image> <install-script> <root-password>",
		Short: "Create an image by running an unattended installer",
		Long: `Boot an installer image with an install script as user data, wait for
the installer to power the instance off and capture the instance as an image.

Example:
  amiforge from-installer us-east-1 AKIA... secret ami-1234 fedora.ks s3cret`,
		Args: cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			access := handlers.AWSAccess{Region: args[0], AccessKey: args[1], SecretKey: args[2]}
			opts.BaseImage, opts.ScriptPath, opts.RootPassword = args[3], args[4], args[5]
			return handlers.FromInstaller(cmd.Context(), rt, access, opts)
		},
	}
	installFlags(cmd, &opts)

	return cmd
}

// HCloudInstaller returns the hcloud-installer command, the installer
// workflow on Hetzner Cloud.
func HCloudInstaller(rt *handlers.Runtime) *cobra.Command {
	var (
		opts       handlers.InstallOptions
		serverType string
	)

	cmd := &cobra.Command{
		Use:   "hcloud-installer <location> <token> <base-image> <install-script> <root-password>",
		Short: "Create a Hetzner Cloud snapshot image by running an unattended installer",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.BaseImage, opts.ScriptPath, opts.RootPassword = args[2], args[3], args[4]
			return handlers.HCloudInstaller(cmd.Context(), rt, args[0], args[1], serverType, opts)
		},
	}
	installFlags(cmd, &opts)
	cmd.Flags().StringVar(&serverType, "server-type", "", "Server type (default from settings, cx22)")

	return cmd
}
