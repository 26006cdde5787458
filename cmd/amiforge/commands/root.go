// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imamik/amiforge/cmd/amiforge/handlers"
	"github.com/imamik/amiforge/internal/config"
	"github.com/imamik/amiforge/internal/logging"
)

// Root returns the root command for the amiforge CLI.
//
// Persistent flags are bound to viper, so every setting can also come from
// the config file or an AMIFORGE_ environment variable. The resolved
// settings and the root logger are prepared before any subcommand runs.
func Root() *cobra.Command {
	v := viper.New()
	rt := &handlers.Runtime{}
	var configFile string

	cmd := &cobra.Command{
		Use:           "amiforge",
		Short:         "Build EC2 machine images from disk images or unattended installs",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Arguments are valid at this point; later errors are not usage errors.
			cmd.SilenceUsage = true

			settings, err := config.LoadSettings(v, configFile)
			if err != nil {
				return err
			}
			log, err := logging.New(logging.Options{
				Level:  settings.LogLevel,
				Format: settings.LogFormat,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			rt.Settings = settings
			rt.Out = cmd.OutOrStdout()
			cmd.SetContext(logr.NewContext(cmd.Context(), log))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default "+config.ConfigPath()+")")
	flags.String(config.KeyLogLevel, "debug", "Log level: debug, info, warn or error")
	flags.String(config.KeyLogFormat, "auto", "Log format: auto, text or json")
	flags.String(config.KeyMetricsFile, "", "Write run metrics to this file in Prometheus text format")
	flags.String(config.KeyInstanceType, "m1.small", "Instance type of the utility and installer instances")
	flags.String(config.KeyCompression, config.CompressionGzip, "Upload compression: gzip, zstd or none")
	flags.String(config.KeyCatalog, "", "Region catalog file replacing the built-in one")
	for _, key := range []string{
		config.KeyLogLevel, config.KeyLogFormat, config.KeyMetricsFile,
		config.KeyInstanceType, config.KeyCompression, config.KeyCatalog,
	} {
		_ = v.BindPFlag(key, flags.Lookup(key))
	}

	cmd.AddCommand(FromFile(rt))
	cmd.AddCommand(FromInstaller(rt))
	cmd.AddCommand(Register(rt))
	cmd.AddCommand(HCloudInstaller(rt))
	cmd.AddCommand(Version())

	return cmd
}
