package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/swarmpush/swarmpush/internal/auth"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "manage operator tokens",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "sign an operator token for the broadcast and admin endpoints",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "operator", Required: true},
					&cli.StringFlag{Name: "key", EnvVars: []string{"JWT_SIGNING_KEY"}, Required: true},
					&cli.StringFlag{Name: "issuer", Value: "swarmpush", EnvVars: []string{"JWT_ISSUER"}},
					&cli.StringFlag{Name: "audience", Value: "swarmpush-api", EnvVars: []string{"JWT_AUDIENCE"}},
					&cli.DurationFlag{Name: "ttl", Value: auth.DefaultTokenTTL},
				},
				Action: func(c *cli.Context) error {
					svc, err := auth.NewTokenService(auth.TokenConfig{
						SigningKey: c.String("key"),
						Issuer:     c.String("issuer"),
						Audience:   c.String("audience"),
					})
					if err != nil {
						return err
					}

					token, expires, err := svc.Issue(c.String("operator"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					fmt.Fprintf(c.App.ErrWriter, "expires %s\n", expires.Format(time.RFC3339))
					return nil
				},
			},
		},
	}
}
