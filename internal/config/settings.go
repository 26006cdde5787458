package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "amiforge"

// Settings keys, shared by flags, environment variables and the config file.
const (
	KeyLogLevel         = "log-level"
	KeyLogFormat        = "log-format"
	KeyMetricsFile      = "metrics-file"
	KeyInstanceType     = "instance-type"
	KeyCompression      = "compression"
	KeyCatalog          = "catalog"
	KeyAttachDevice     = "attach-device"
	KeyGuestDevice      = "guest-device"
	KeyHCloudServerType = "hcloud-server-type"
)

// Compression codecs understood by the upload workflow.
const (
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	// CompressionNone sends the image bytes as they are.
	CompressionNone = "none"
)

// Settings holds operator preferences.
type Settings struct {
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	MetricsFile string `mapstructure:"metrics-file"`

	// InstanceType is used for both the utility and the installer instance.
	InstanceType string `mapstructure:"instance-type"`
	Compression  string `mapstructure:"compression"`
	CatalogFile  string `mapstructure:"catalog"`

	// AttachDevice is the device name passed to the attach call; GuestDevice
	// is where the kernel of the utility instance exposes it.
	AttachDevice string `mapstructure:"attach-device"`
	GuestDevice  string `mapstructure:"guest-device"`

	HCloudServerType string `mapstructure:"hcloud-server-type"`
}

// ConfigPath returns the default config file location.
//
//	Linux:   $XDG_CONFIG_HOME/amiforge/config.yaml
//	macOS:   ~/Library/Application Support/amiforge/config.yaml
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "debug")
	v.SetDefault(KeyLogFormat, "auto")
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeyInstanceType, "m1.small")
	v.SetDefault(KeyCompression, CompressionGzip)
	v.SetDefault(KeyCatalog, "")
	v.SetDefault(KeyAttachDevice, "/dev/sdh")
	v.SetDefault(KeyGuestDevice, "/dev/xvdh")
	v.SetDefault(KeyHCloudServerType, "cx22")
}

// LoadSettings reads settings from environment, config file, and defaults.
// A missing default config file is not an error; a missing explicit one is.
func LoadSettings(v *viper.Viper, configFile string) (*Settings, error) {
	SetDefaults(v)

	// Environment variables (AMIFORGE_LOG_LEVEL, etc.)
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigFile(ConfigPath())
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", ConfigPath(), err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks settings for errors.
func (s *Settings) Validate() error {
	switch s.Compression {
	case CompressionGzip, CompressionZstd, CompressionNone:
	default:
		return fmt.Errorf("compression must be %q, %q or %q, got %q", CompressionGzip, CompressionZstd, CompressionNone, s.Compression)
	}
	switch s.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log-format must be auto, text or json, got %q", s.LogFormat)
	}
	if s.InstanceType == "" {
		return fmt.Errorf("instance-type cannot be empty")
	}
	if !strings.HasPrefix(s.AttachDevice, "/dev/") || !strings.HasPrefix(s.GuestDevice, "/dev/") {
		return fmt.Errorf("attach-device and guest-device must be absolute /dev paths")
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	// SetConfigFile bypasses the search path, so a missing file surfaces as an fs error.
	return errors.Is(err, fs.ErrNotExist)
}
