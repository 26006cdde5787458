// Package config defines the configuration consumed by the image workflows.
//
// Three values are produced here and passed into the workflows at
// construction time; none of them is process-wide state:
//
//   - [Settings]: operator preferences (log level, instance type, compression
//     codec, metrics output) read through viper from flags, AMIFORGE_*
//     environment variables and an optional config file under the XDG config
//     directory.
//   - [Catalog]: immutable per-region tables (utility images, PV-GRUB boot
//     loaders) parsed from an embedded YAML document or a user-supplied one.
//   - [Timeouts]: per-stage wait budgets and poll intervals, overridable via
//     AMIFORGE_TIMEOUT_* environment variables.
package config
