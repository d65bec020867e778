package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/swarmpush/swarmpush/internal/registry"
)

func devicesCommand() *cli.Command {
	jsonFlag := &cli.BoolFlag{Name: "json", Usage: "print snapshots as JSON"}

	return &cli.Command{
		Name:  "devices",
		Usage: "inspect registered devices",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print the current registrations",
				Flags: []cli.Flag{registryFlag, timeoutFlag, jsonFlag},
				Action: func(c *cli.Context) error {
					snap, err := firstSnapshot(c.Context, newRegistryClient(c), c.Duration("timeout"))
					if err != nil {
						return err
					}
					return printSnapshot(c.App.Writer, snap, c.Bool("json"))
				},
			},
			{
				Name:  "watch",
				Usage: "print every registry change until interrupted",
				Flags: []cli.Flag{registryFlag, jsonFlag},
				Action: func(c *cli.Context) error {
					sub, err := newRegistryClient(c).Subscribe(c.Context)
					if err != nil {
						return err
					}
					defer sub.Close()

					for {
						select {
						case <-c.Context.Done():
							return nil
						case <-sub.Done():
							return sub.Err()
						case snap, ok := <-sub.Snapshots():
							if !ok {
								<-sub.Done()
								return sub.Err()
							}
							if !c.Bool("json") {
								fmt.Fprintf(c.App.Writer, "--- %s (%d devices)\n", time.Now().Format(time.TimeOnly), len(snap))
							}
							if err := printSnapshot(c.App.Writer, snap, c.Bool("json")); err != nil {
								return err
							}
						}
					}
				},
			},
		},
	}
}

func newRegistryClient(c *cli.Context) *registry.HTTPClient {
	return registry.NewHTTPClient(registry.HTTPClientConfig{
		BaseURL: c.String("registry"),
		Logger:  logger(c),
	})
}

// firstSnapshot subscribes, takes the initial snapshot and unsubscribes.
func firstSnapshot(ctx context.Context, store registry.Store, timeout time.Duration) (registry.Snapshot, error) {
	sub, err := store.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	defer sub.Close()
	return waitSnapshot(ctx, sub, timeout)
}

// waitSnapshot waits up to timeout for the next snapshot on sub.
func waitSnapshot(ctx context.Context, sub *registry.Subscription, timeout time.Duration) (registry.Snapshot, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case snap, ok := <-sub.Snapshots():
		if ok {
			return snap, nil
		}
		<-sub.Done()
		return nil, subscriptionEnded(sub)
	case <-sub.Done():
		return nil, subscriptionEnded(sub)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("no registry snapshot within %s", timeout)
	}
}

func subscriptionEnded(sub *registry.Subscription) error {
	if err := sub.Err(); err != nil {
		return err
	}
	return errors.New("registry subscription closed")
}

func printSnapshot(w io.Writer, snap registry.Snapshot, asJSON bool) error {
	if asJSON {
		if snap == nil {
			snap = registry.Snapshot{}
		}
		return json.NewEncoder(w).Encode(snap)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tHARDWARE\tPUSH TOKEN")
	for i := range snap {
		reg := &snap[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, reg.DisplayName(), reg.Hardware(), reg.PushToken)
	}
	return tw.Flush()
}
