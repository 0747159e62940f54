// Package main provides the entry point for the tenant key service CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/tenantkeys/internal/app"
	"github.com/allisson/tenantkeys/internal/config"
)

var version = "dev"

// containerRun is a command body that receives a container built from the
// environment and the writer for command output.
type containerRun func(ctx context.Context, cmd *cli.Command, container *app.Container, out io.Writer) error

// containerAction adapts run to a cli action. The container lives exactly as
// long as the command.
func containerAction(run containerRun) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		container := app.NewContainer(cfg)
		defer func() {
			if err := container.Shutdown(ctx); err != nil {
				container.Logger().Warn("container shutdown failed", slog.Any("error", err))
			}
		}()
		return run(ctx, cmd, container, os.Stdout)
	}
}

func getCommands(version string) []*cli.Command {
	var cmds []*cli.Command
	cmds = append(cmds, getSystemCommands(version)...)
	cmds = append(cmds, getMasterKeyCommands()...)
	cmds = append(cmds, getTenantKeyCommands()...)
	return cmds
}

func main() {
	cmd := &cli.Command{
		Name:     "app",
		Usage:    "Tenant encryption key lifecycle service",
		Version:  version,
		Commands: getCommands(version),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
