// Package confloader loads configuration for TLSMesh binaries.
//
// Sources are layered with koanf; later sources override earlier ones:
//
//  1. Defaults already present in the target struct
//  2. A YAML configuration file
//  3. Environment variables (TLSMESH_ prefix)
//  4. Explicit overrides (command-line flags), via LoadMap
//
// Environment keys use a double underscore as the section separator so that
// single underscores survive inside key names:
//
//	TLSMESH_TLS__TRANSPORT__CERT_FILE=/etc/tlsmesh/node.crt
//	  -> tls.transport.cert_file
//
// Watcher reports writes to the configuration file for live settings such as
// the log level.
package confloader
