package command

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsmesh-go/internal/core/service"
	"github.com/yndnr/tlsmesh-go/pkg/token"
)

// HashKeyCommand returns the hash-key command, which prepares entries for
// security.admin_keys in the server config.
func HashKeyCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-key",
		Usage:     "Hash an admin API key secret for the server config",
		ArgsUsage: "[secret]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "generate",
				Usage: "Generate a random secret and print it with its hash",
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "Key ID to print in the config snippet",
				Value: "admin",
			},
		},
		Action: hashKeyAction,
	}
}

type hashedKey struct {
	ID     string `json:"id" yaml:"id"`
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`
	Hash   string `json:"hash" yaml:"hash"`
}

func hashKeyAction(c *cli.Context) error {
	var secret string
	switch {
	case c.Bool("generate"):
		generated, err := token.Generate()
		if err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
		secret = generated
	case c.NArg() > 0:
		secret = c.Args().First()
	default:
		reader := c.App.Reader
		if reader == nil {
			reader = os.Stdin
		}
		line, err := bufio.NewReader(reader).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read secret: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}
	if secret == "" {
		return cli.Exit("secret must not be empty", 2)
	}

	hash, err := service.HashSecret(secret)
	if err != nil {
		return err
	}

	key := hashedKey{ID: c.String("id"), Hash: hash}
	if c.Bool("generate") {
		key.Secret = secret
	}

	if !isTable(c) {
		return render(c, key)
	}
	w := writer(c)
	if key.Secret != "" {
		fmt.Fprintf(w, "secret: %s\n\n", key.Secret)
	}
	fmt.Fprintf(w, "security:\n  admin_keys:\n    - id: %s\n      hash: %q\n", key.ID, key.Hash)
	return nil
}
