package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/swarmpush/swarmpush/internal/reconciler"
	"github.com/swarmpush/swarmpush/internal/registry"
)

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "register a push token, keeping any stored user name",
		ArgsUsage: "PUSH_TOKEN",
		Flags: []cli.Flag{
			registryFlag,
			&cli.StringFlag{Name: "name", Usage: "display name; omit to keep the stored one"},
			&cli.StringFlag{Name: "brand", Usage: "device brand"},
			&cli.StringFlag{Name: "model", Usage: "device model name"},
		},
		Action: func(c *cli.Context) error {
			token := c.Args().First()
			if token == "" {
				return cli.Exit("a push token is required", 2)
			}
			log := logger(c)

			client := registry.NewHTTPClient(registry.HTTPClientConfig{
				BaseURL: c.String("registry"),
				Logger:  log,
			})
			rec := reconciler.New(client, reconciler.HardwareInfo{
				Brand: c.String("brand"),
				Model: c.String("model"),
			}, log)

			if c.IsSet("name") {
				rec.EditName(c.String("name"))
			}
			if err := rec.SetToken(c.Context, token); err != nil {
				return err
			}

			name := rec.Name()
			if name == "" {
				name = "Anonymous"
			}
			fmt.Fprintf(c.App.Writer, "registered %s as %s\n", token, name)
			return nil
		},
	}
}
