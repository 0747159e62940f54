package main

import (
	"context"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/allisson/tenantkeys/cmd/app/commands"
	"github.com/allisson/tenantkeys/internal/app"
	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/tenantkeys/internal/crypto/usecase"
)

var (
	masterKeyIDFlag = &cli.StringFlag{
		Name:    "id",
		Aliases: []string{"i"},
		Usage:   "Master key id, defaults to master-key-<date>",
	}
	kmsProviderFlag = &cli.StringFlag{
		Name:     "kms-provider",
		Required: true,
		Usage:    "localsecrets, gcpkms, awskms, azurekeyvault or hashivault",
	}
	kmsKeyURIFlag = &cli.StringFlag{
		Name:     "kms-key-uri",
		Required: true,
		Usage:    "Keeper URL, e.g. base64key://... or gcpkms://projects/.../cryptoKeys/...",
	}
	algorithmFlag = &cli.StringFlag{
		Name:    "algorithm",
		Aliases: []string{"alg"},
		Value:   "aes-gcm",
		Usage:   "aes-gcm or chacha20-poly1305",
	}
	siteFlag = &cli.StringFlag{
		Name:    "site",
		Aliases: []string{"s"},
		Usage:   "Site (tenant) identifier",
	}
)

// kekAction resolves the KEK use case and master key chain shared by every
// KEK command.
func kekAction(run func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer, deps kekDeps) error) cli.ActionFunc {
	return containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer) error {
		kekUseCase, err := c.KekUseCase()
		if err != nil {
			return err
		}
		masterKeyChain, err := c.MasterKeyChain()
		if err != nil {
			return err
		}
		return run(ctx, cmd, c, out, kekDeps{useCase: kekUseCase, chain: masterKeyChain})
	})
}

func getMasterKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a KMS-sealed master key for a new deployment",
			Flags: []cli.Flag{masterKeyIDFlag, kmsProviderFlag, kmsKeyURIFlag},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer) error {
				return commands.RunCreateMasterKey(
					ctx, c.KMSService(), c.Logger(), out,
					cmd.String("id"), cmd.String("kms-provider"), cmd.String("kms-key-uri"),
				)
			}),
		},
		{
			Name:  "rotate-master-key",
			Usage: "Append a new active master key to MASTER_KEYS",
			Flags: []cli.Flag{masterKeyIDFlag, kmsProviderFlag, kmsKeyURIFlag},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer) error {
				cfg := c.Config()
				return commands.RunRotateMasterKey(
					ctx, c.KMSService(), c.Logger(), out,
					cmd.String("id"), cmd.String("kms-provider"), cmd.String("kms-key-uri"),
					cfg.MasterKeys, cfg.ActiveMasterKeyID,
				)
			}),
		},
		{
			Name:  "create-kek",
			Usage: "Create the first key encryption key",
			Flags: []cli.Flag{algorithmFlag},
			Action: kekAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer, d kekDeps) error {
				return commands.RunCreateKek(ctx, d.useCase, d.chain, c.Logger(), out, cmd.String("algorithm"))
			}),
		},
		{
			Name:  "rotate-kek",
			Usage: "Add a new key encryption key version",
			Flags: []cli.Flag{algorithmFlag},
			Action: kekAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer, d kekDeps) error {
				return commands.RunRotateKek(ctx, d.useCase, d.chain, c.Logger(), out, cmd.String("algorithm"))
			}),
		},
		{
			Name:  "rewrap-keks",
			Usage: "Re-seal every KEK with the active master key",
			Action: kekAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer, d kekDeps) error {
				return commands.RunRewrapKeks(ctx, d.useCase, d.chain, c.Logger(), out)
			}),
		},
	}
}

func getTenantKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "rewrap-keys",
			Usage: "Move tenant key material wrapped by an older KEK onto the active KEK",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "batch-size", Aliases: []string{"b"}, Value: 100, Usage: "Keys rewrapped per transaction"},
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer) error {
				lifecycle, err := c.LifecycleUseCase()
				if err != nil {
					return err
				}
				return commands.RunRewrapKeys(ctx, lifecycle, c.Logger(), out, int(cmd.Int("batch-size")))
			}),
		},
		{
			Name:  "process-rotations",
			Usage: "Rotate every ACTIVE key whose rotation policy has elapsed",
			Flags: []cli.Flag{siteFlag, formatFlag},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer) error {
				lifecycle, err := c.LifecycleUseCase()
				if err != nil {
					return err
				}
				return commands.RunProcessRotations(ctx, lifecycle, c.Logger(), out, cmd.String("site"), cmd.String("format"))
			}),
		},
		{
			Name:  "destroy-key",
			Usage: "Erase the material of a RETIRED key after its grace period",
			Flags: []cli.Flag{
				siteFlag,
				&cli.StringFlag{Name: "key-id", Aliases: []string{"k"}, Required: true, Usage: "RETIRED key to destroy"},
				&cli.StringFlag{Name: "principal", Aliases: []string{"p"}, Value: "cli", Usage: "Principal recorded in the audit log"},
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container, out io.Writer) error {
				lifecycle, err := c.LifecycleUseCase()
				if err != nil {
					return err
				}
				return commands.RunDestroyKey(
					ctx, lifecycle, c.Logger(), out,
					cmd.String("site"), cmd.String("key-id"), cmd.String("principal"),
				)
			}),
		},
	}
}

type kekDeps struct {
	useCase cryptoUseCase.KekUseCase
	chain   *cryptoDomain.MasterKeyChain
}
