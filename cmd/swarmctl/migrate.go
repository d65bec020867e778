package main

import (
	"github.com/urfave/cli/v2"

	"github.com/swarmpush/swarmpush/internal/config"
	"github.com/swarmpush/swarmpush/internal/database"
)

func migrateCommand() *cli.Command {
	action := func(apply func(database.Config, *cli.Context) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return cli.Exit("migrations apply to DB_DRIVER=postgres only", 2)
			}
			return apply(cfg.Database.Postgres(), c)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the Postgres schema (configured from the environment)",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: action(func(db database.Config, c *cli.Context) error {
					return database.Migrate(db, logger(c))
				}),
			},
			{
				Name:  "down",
				Usage: "revert the last migration",
				Action: action(func(db database.Config, c *cli.Context) error {
					return database.Rollback(db, logger(c))
				}),
			},
		},
	}
}
