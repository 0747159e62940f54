package main

import (
	"context"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/allisson/tenantkeys/cmd/app/commands"
	"github.com/allisson/tenantkeys/internal/app"
)

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Value:   "text",
	Usage:   "Output format: text or json",
}

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Serve the encryption API and run the rotation scheduler",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending database migrations",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "path", Value: "migrations", Usage: "Directory holding the postgresql/ and mysql/ migrations"},
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer) error {
				db, err := c.DB()
				if err != nil {
					return err
				}
				return commands.RunMigrations(c.Logger(), db, c.Config().DBDriver, cmd.String("path"))
			}),
		},
		{
			Name:  "clean-audit-logs",
			Usage: "Delete key audit records older than --days",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Required: true, Usage: "Retention in days"},
				&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Only count what would be deleted"},
				formatFlag,
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer) error {
				insights, err := c.InsightsUseCase()
				if err != nil {
					return err
				}
				return commands.RunCleanAuditLogs(
					ctx, insights, c.Logger(), out,
					int(cmd.Int("days")), cmd.Bool("dry-run"), cmd.String("format"),
				)
			}),
		},
		{
			Name:  "verify-audit-logs",
			Usage: "Check the HMAC signature of key audit records in a date range",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "start-date", Aliases: []string{"s"}, Required: true, Usage: "YYYY-MM-DD or YYYY-MM-DD HH:MM:SS"},
				&cli.StringFlag{Name: "end-date", Aliases: []string{"e"}, Required: true, Usage: "YYYY-MM-DD or YYYY-MM-DD HH:MM:SS"},
				formatFlag,
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer) error {
				insights, err := c.InsightsUseCase()
				if err != nil {
					return err
				}
				return commands.RunVerifyAuditLogs(
					ctx, insights, c.Logger(), out,
					cmd.String("start-date"), cmd.String("end-date"), cmd.String("format"),
				)
			}),
		},
	}
}
