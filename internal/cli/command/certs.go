package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsmesh-go/internal/cli/connection"
	"github.com/yndnr/tlsmesh-go/internal/cli/output"
)

// CertsCommand returns the certs command.
func CertsCommand() *cli.Command {
	return &cli.Command{
		Name:   "certs",
		Usage:  "Show the certificates a node is serving",
		Action: certsAction,
	}
}

type certInfo struct {
	Channel   string    `json:"channel" yaml:"channel"`
	Subject   string    `json:"subject" yaml:"subject"`
	Issuer    string    `json:"issuer" yaml:"issuer"`
	Serial    string    `json:"serial" yaml:"serial"`
	NotBefore time.Time `json:"not_before" yaml:"not_before"`
	NotAfter  time.Time `json:"not_after" yaml:"not_after"`
	LoadedAt  time.Time `json:"loaded_at" yaml:"loaded_at"`
	CertFile  string    `json:"cert_file" yaml:"cert_file"`
}

type certList struct {
	Certificates []certInfo `json:"certificates" yaml:"certificates"`
}

// Table lists one row per channel.
func (l certList) Table() *output.Table {
	t := output.NewTable("CHANNEL", "SUBJECT", "ISSUER", "SERIAL", "NOT_AFTER", "LOADED_AT")
	for _, c := range l.Certificates {
		t.AddRow(c.Channel, c.Subject, c.Issuer, c.Serial,
			formatTime(c.NotAfter), formatTime(c.LoadedAt))
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func certsAction(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, ParseGlobalFlags(c).Timeout)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/ssl/certs")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var list certList
	if err := connection.ParseResponse(resp, &list); err != nil {
		return err
	}
	return render(c, list)
}
