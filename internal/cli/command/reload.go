package command

import (
	"context"
	"fmt"
	"net/url"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsmesh-go/internal/cli/connection"
	"github.com/yndnr/tlsmesh-go/internal/cli/output"
)

// ReloadCommand returns the reload command.
func ReloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "reload",
		Usage:     "Reload TLS certificates for a channel",
		ArgsUsage: "<http|transport>",
		Description: "Reloads key and trust material from disk on the target node.\n" +
			"With --disconnect on the transport channel, every node drops its\n" +
			"connections to the target and the target drops its connections to\n" +
			"every node, so all links re-handshake with the new material.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "disconnect",
				Aliases: []string{"d"},
				Usage:   "Disconnect cluster links after a transport reload",
			},
		},
		Action: reloadAction,
	}
}

// reloadResult mirrors the data of a reload response.
type reloadResult struct {
	Status            string        `json:"status" yaml:"status"`
	Message           string        `json:"message" yaml:"message"`
	Channel           string        `json:"channel" yaml:"channel"`
	ClusterName       string        `json:"cluster_name" yaml:"cluster_name"`
	Nodes             []nodeResult  `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Failures          []nodeFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
	DisconnectedPeers int           `json:"disconnected_peers" yaml:"disconnected_peers"`
}

type nodeResult struct {
	RespondingNodeID string `json:"responding_node_id" yaml:"responding_node_id"`
}

type nodeFailure struct {
	NodeID string `json:"node_id" yaml:"node_id"`
	Code   string `json:"code,omitempty" yaml:"code,omitempty"`
	Cause  string `json:"cause" yaml:"cause"`
}

// Table lists per-node results of a cluster round.
func (r reloadResult) Table() *output.Table {
	t := output.NewTable("NODE", "RESULT", "DETAIL")
	for _, n := range r.Nodes {
		t.AddRow(n.RespondingNodeID, "disconnected", "")
	}
	for _, f := range r.Failures {
		detail := f.Cause
		if f.Code != "" {
			detail = "[" + f.Code + "] " + f.Cause
		}
		t.AddRow(f.NodeID, "failed", detail)
	}
	return t
}

func reloadAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: tlsmesh-cli reload [--disconnect] <http|transport>", 2)
	}
	certType := c.Args().First()

	client, err := newClient(c)
	if err != nil {
		return err
	}

	path := "/_security/api/ssl/" + url.PathEscape(certType) + "/reloadcerts"
	if c.Bool("disconnect") {
		path += "?disconnectAfterReload=true"
	}

	ctx, cancel := context.WithTimeout(c.Context, ParseGlobalFlags(c).Timeout)
	defer cancel()

	resp, err := client.Put(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result reloadResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if !isTable(c) {
		return render(c, result)
	}

	w := writer(c)
	fmt.Fprintf(w, "%s: %s\n", result.Status, result.Message)
	if len(result.Nodes) == 0 && len(result.Failures) == 0 {
		return nil
	}
	fmt.Fprintf(w, "cluster %s: %d nodes disconnected from target, %d failed, target disconnected from %d peers\n\n",
		result.ClusterName, len(result.Nodes), len(result.Failures), result.DisconnectedPeers)
	return render(c, result)
}
