// Package config defines the tlsmesh-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation before startup
//   - sanitize.go: Copy safe for logging
//   - cluster.go: Conversion into component configurations
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// TLSMESH_ environment variables and command-line flags.
package config
