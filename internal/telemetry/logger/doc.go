// Package logger provides structured logging for TLSMesh.
//
// This package wraps log/slog for structured logging:
//
//   - logger.go: handler configuration and the global logger
//   - context.go: Context-aware logging with request/round IDs
//   - redact.go: Sensitive data redaction
//   - hclog.go: bridge for hashicorp libraries that expect go-hclog
//
// Features:
//
//   - JSON and text output formats
//   - Dynamic log level
//   - Automatic sensitive data masking
package logger
