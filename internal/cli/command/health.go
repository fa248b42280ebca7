package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsmesh-go/internal/cli/connection"
)

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check node health and readiness",
		Action: healthAction,
	}
}

type healthStatus struct {
	Target string `json:"target" yaml:"target"`
	Health string `json:"health" yaml:"health"`
	Ready  string `json:"ready" yaml:"ready"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func healthAction(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, ParseGlobalFlags(c).Timeout)
	defer cancel()

	status := healthStatus{Target: client.BaseURL()}

	resp, err := client.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := connection.ParseResponse(resp, &health); err != nil {
		return err
	}
	status.Health = health.Status

	resp, err = client.Get(ctx, "/ready")
	if err != nil {
		return fmt.Errorf("readiness check failed: %w", err)
	}
	status.Ready = "ready"
	if err := connection.ParseResponse(resp, nil); err != nil {
		var apiErr *connection.APIError
		if !errors.As(err, &apiErr) {
			return err
		}
		status.Ready = "not_ready"
		status.Reason = apiErr.Message
	}

	if isTable(c) {
		fmt.Fprintf(writer(c), "target: %s\nhealth: %s\nready:  %s\n", status.Target, status.Health, status.Ready)
		if status.Reason != "" {
			fmt.Fprintf(writer(c), "reason: %s\n", status.Reason)
		}
	} else if err := render(c, status); err != nil {
		return err
	}

	if status.Ready != "ready" {
		return cli.Exit("", 1)
	}
	return nil
}
