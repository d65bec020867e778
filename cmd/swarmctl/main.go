// Command swarmctl registers devices, watches the registry and sends
// broadcasts from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "swarmctl:", err)
		os.Exit(1)
	}
}

var (
	registryFlag = &cli.StringFlag{
		Name:    "registry",
		Usage:   "base URL of the swarmpush API",
		Value:   "http://localhost:8080",
		EnvVars: []string{"SWARMPUSH_URL"},
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "how long to wait for the first registry snapshot",
		Value: 10 * time.Second,
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "swarmctl",
		Usage:   "operate a swarmpush deployment",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			registerCommand(),
			devicesCommand(),
			sendCommand(),
			tokenCommand(),
			migrateCommand(),
		},
	}
}

// logger writes human-readable logs to stderr.
func logger(c *cli.Context) zerolog.Logger {
	level := zerolog.InfoLevel
	if c.Bool("verbose") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: c.App.ErrWriter, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
