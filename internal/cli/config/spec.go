package config

// CLIConfig is the configuration for tlsmesh-cli.
type CLIConfig struct {
	Server string `yaml:"server"`
	Output string `yaml:"output"` // table, json, yaml

	// TLS material for reaching the server.
	CACert string `yaml:"cacert"`
	Cert   string `yaml:"cert"`
	Key    string `yaml:"key"`

	// APIKeyID selects an admin API key. The secret is never stored here;
	// pass it with --api-key or TLSMESH_API_KEY.
	APIKeyID string `yaml:"api_key_id"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: "https://localhost:5443",
		Output: "table",
	}
}
