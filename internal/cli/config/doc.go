// Package config provides tlsmesh-cli configuration (~/.tlsmesh/cli.yaml).
//
// The file supplies defaults for the global flags; flags and TLSMESH_*
// environment variables override it.
package config
