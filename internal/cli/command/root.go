package command

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsmesh-go/internal/cli/config"
	"github.com/yndnr/tlsmesh-go/internal/cli/connection"
	"github.com/yndnr/tlsmesh-go/internal/cli/output"
	"github.com/yndnr/tlsmesh-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "tlsmesh-cli",
		Usage:   "TLSMesh certificate reload tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ReloadCommand(),
			CertsCommand(),
			HealthCommand(),
			HashKeyCommand(),
		},
		Before: applyConfigFile,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{"TLSMESH_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "TLSMesh node REST address (e.g., https://localhost:5443)",
			EnvVars: []string{"TLSMESH_SERVER"},
			Value:   config.Default().Server,
		},
		&cli.StringFlag{
			Name:    "cacert",
			Usage:   "CA bundle used to verify the server",
			EnvVars: []string{"TLSMESH_CACERT"},
		},
		&cli.StringFlag{
			Name:    "cert",
			Usage:   "Client certificate (admin DN)",
			EnvVars: []string{"TLSMESH_CERT"},
		},
		&cli.StringFlag{
			Name:    "key",
			Usage:   "Client private key",
			EnvVars: []string{"TLSMESH_KEY"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip server certificate verification",
		},
		&cli.StringFlag{
			Name:    "api-key-id",
			Aliases: []string{"k"},
			Usage:   "Admin API key ID",
			EnvVars: []string{"TLSMESH_API_KEY_ID"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"K"},
			Usage:   "Admin API key secret",
			EnvVars: []string{"TLSMESH_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   config.Default().Output,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: 60 * time.Second,
		},
	}
}

// configFlags maps CLI config fields onto global flags.
var configFlags = []struct {
	flag  string
	value func(*config.CLIConfig) string
}{
	{"server", func(c *config.CLIConfig) string { return c.Server }},
	{"output", func(c *config.CLIConfig) string { return c.Output }},
	{"cacert", func(c *config.CLIConfig) string { return c.CACert }},
	{"cert", func(c *config.CLIConfig) string { return c.Cert }},
	{"key", func(c *config.CLIConfig) string { return c.Key }},
	{"api-key-id", func(c *config.CLIConfig) string { return c.APIKeyID }},
}

// applyConfigFile fills flags that were not given explicitly from the CLI
// config file.
func applyConfigFile(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	for _, f := range configFlags {
		if c.IsSet(f.flag) {
			continue
		}
		if v := f.value(cfg); v != "" {
			if err := c.Set(f.flag, v); err != nil {
				return fmt.Errorf("apply config %s: %w", f.flag, err)
			}
		}
	}
	return nil
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server   string
	CACert   string
	Cert     string
	Key      string
	Insecure bool
	APIKeyID string
	APIKey   string
	Output   string
	Timeout  time.Duration
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:   c.String("server"),
		CACert:   c.String("cacert"),
		Cert:     c.String("cert"),
		Key:      c.String("key"),
		Insecure: c.Bool("insecure"),
		APIKeyID: c.String("api-key-id"),
		APIKey:   c.String("api-key"),
		Output:   c.String("output"),
		Timeout:  c.Duration("timeout"),
	}
}

// newClient builds the HTTP client from global flags.
func newClient(c *cli.Context) (*connection.HTTPClient, error) {
	flags := ParseGlobalFlags(c)
	return connection.NewHTTPClient(connection.Options{
		Server:             flags.Server,
		CACertFile:         flags.CACert,
		CertFile:           flags.Cert,
		KeyFile:            flags.Key,
		InsecureSkipVerify: flags.Insecure,
		APIKeyID:           flags.APIKeyID,
		APIKey:             flags.APIKey,
		Timeout:            flags.Timeout,
	})
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(writer(c), data)
}

func isTable(c *cli.Context) bool {
	format, err := output.ParseFormat(c.String("output"))
	return err == nil && format == output.FormatTable
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}
