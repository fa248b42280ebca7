// Package tlsroots provides TLS certificate management for TLSMesh.
//
// This package handles TLS certificate loading and management:
//
//   - roots.go: System certificates + custom CA loading
//   - store.go: Per-channel key and trust material with atomic swap
//   - watcher.go: Certificate hot-reload via fsnotify
//
// Features:
//
//   - System certificate pool integration
//   - Custom CA certificate support
//   - Reload on demand or on file changes, without restarting listeners
//   - Certificate details for inspection
package tlsroots
