package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/swarmpush/swarmpush/internal/dispatch"
	"github.com/swarmpush/swarmpush/internal/gateway/expo"
	"github.com/swarmpush/swarmpush/internal/registry"
	"github.com/swarmpush/swarmpush/internal/selection"
)

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "push one notification to selected devices through Expo",
		Flags: []cli.Flag{
			registryFlag,
			timeoutFlag,
			&cli.StringFlag{Name: "title", Usage: "notification title"},
			&cli.StringFlag{Name: "body", Usage: "notification body", Required: true},
			&cli.BoolFlag{Name: "all", Usage: "select every registered device"},
			&cli.StringSliceFlag{Name: "to", Usage: "toggle a device by push token, device id or list number"},
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "toggle devices by number before sending"},
			&cli.StringFlag{Name: "expo-url", Value: expo.DefaultURL, EnvVars: []string{"EXPO_PUSH_URL"}},
			&cli.StringFlag{Name: "expo-token", EnvVars: []string{"EXPO_ACCESS_TOKEN"}},
		},
		Action: func(c *cli.Context) error {
			log := logger(c)

			sub, err := newRegistryClient(c).Subscribe(c.Context)
			if err != nil {
				return err
			}
			defer sub.Close()

			snap, err := waitSnapshot(c.Context, sub, c.Duration("timeout"))
			if err != nil {
				return err
			}

			sel := selection.New()
			if c.Bool("all") {
				for _, reg := range snap {
					sel.Toggle(reg.PushToken)
				}
			}
			if unknown := toggleRecipients(sel, snap, c.StringSlice("to")); len(unknown) > 0 {
				return fmt.Errorf("unknown devices: %s", strings.Join(unknown, ", "))
			}
			if c.Bool("interactive") {
				latest := func() registry.Snapshot {
					select {
					case next, ok := <-sub.Snapshots():
						if ok {
							snap = next
						}
					default:
					}
					return snap
				}
				if err := chooseInteractively(c.App.Reader, c.App.Writer, sel, latest); err != nil {
					return err
				}
			}

			engine := dispatch.NewEngine(dispatch.EngineConfig{
				Gateway: expo.NewClient(expo.ClientConfig{
					URL:         c.String("expo-url"),
					AccessToken: c.String("expo-token"),
				}),
				Logger: log,
			})
			session := dispatch.NewSession(sel, engine)

			res, err := session.Send(c.Context, c.String("title"), c.String("body"))
			if err != nil {
				if errors.Is(err, dispatch.ErrEmptySelection) {
					return cli.Exit("no devices selected", 2)
				}
				return err
			}

			fmt.Fprintf(c.App.Writer, "sent to %d devices\n", len(res.Recipients))
			for _, to := range res.Failed() {
				fmt.Fprintf(c.App.Writer, "  rejected: %s\n", to)
			}
			return nil
		},
	}
}

// toggleRecipients toggles each ref, matched against the snapshot by push
// token, device id or 1-based list position. It returns refs that matched
// nothing.
func toggleRecipients(sel *selection.Store, snap registry.Snapshot, refs []string) []string {
	var unknown []string
	for _, ref := range refs {
		token, ok := resolve(snap, ref)
		if !ok {
			unknown = append(unknown, ref)
			continue
		}
		sel.Toggle(token)
	}
	return unknown
}

func resolve(snap registry.Snapshot, ref string) (string, bool) {
	for _, reg := range snap {
		if reg.PushToken == ref || (reg.DeviceID != nil && *reg.DeviceID == ref) {
			return reg.PushToken, true
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(snap) {
		return snap[n-1].PushToken, true
	}
	return "", false
}

// chooseInteractively reads list numbers, one toggle each, until an empty
// line or EOF. latest is consulted before every prompt; selections of
// devices that left the registry are dropped.
func chooseInteractively(r io.Reader, w io.Writer, sel *selection.Store, latest func() registry.Snapshot) error {
	scanner := bufio.NewScanner(r)
	for {
		snap := latest()
		if dropped := sel.Retain(pushTokens(snap)); dropped > 0 {
			fmt.Fprintf(w, "%d selected devices left the registry\n", dropped)
		}

		for i := range snap {
			mark := " "
			if sel.Contains(snap[i].PushToken) {
				mark = "x"
			}
			fmt.Fprintf(w, "[%s] %d  %s (%s)\n", mark, i+1, snap[i].DisplayName(), snap[i].Hardware())
		}
		fmt.Fprint(w, "toggle # (enter to send): ")

		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}
		for _, field := range strings.Fields(line) {
			if unknown := toggleRecipients(sel, snap, []string{field}); len(unknown) > 0 {
				fmt.Fprintf(w, "no device %q\n", field)
			}
		}
	}
}

func pushTokens(snap registry.Snapshot) []string {
	tokens := make([]string, len(snap))
	for i := range snap {
		tokens[i] = snap[i].PushToken
	}
	return tokens
}
