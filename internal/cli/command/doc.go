// Package command provides CLI command definitions for tlsmesh-cli.
//
// Commands are built with urfave/cli/v2. Each command parses its flags,
// calls the node's REST API through connection.HTTPClient and writes the
// result in the format chosen by --output.
package command
