package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if len(cfg.Security.AdminKeys) > 0 {
		keys := make([]AdminKeyConfig, len(cfg.Security.AdminKeys))
		for i, k := range cfg.Security.AdminKeys {
			keys[i] = AdminKeyConfig{ID: k.ID, Hash: maskSecret(k.Hash)}
		}
		sanitized.Security.AdminKeys = keys
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
