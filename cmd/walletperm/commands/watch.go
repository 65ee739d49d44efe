package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/walletperm/internal/client"
	"github.com/opencode-ai/walletperm/internal/event"
	"github.com/opencode-ai/walletperm/internal/permission"
)

var watchInteractive bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream permission events from the server",
	Long: `Stream permission events as they happen. With --interactive each new
request is put to you on the terminal and answered with the choice made.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchInteractive, "interactive", "i", false, "Answer requests from the terminal")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := newClient()

	events, err := c.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	stderr("%s\n", dimColor.Sprintf("Connected to %s", resolveURL()))

	w := &watcher{client: c, in: bufio.NewReader(os.Stdin), out: os.Stdout}
	for evt := range events {
		if err := w.handle(ctx, evt); err != nil {
			stderr("%s\n", denyColor.Sprintf("error: %v", err))
		}
	}
	return nil
}

// watcher renders events and, when interactive, answers requests.
type watcher struct {
	client *client.Client
	in     *bufio.Reader
	out    io.Writer
}

func (w *watcher) handle(ctx context.Context, evt client.Event) error {
	if outputFormat != "text" {
		_, err := writeStructured(w.out, evt)
		return err
	}

	switch event.EventType(evt.Type) {
	case event.PermissionRequested:
		var data event.PermissionRequestedData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return err
		}
		fmt.Fprintf(w.out, "%s %s\n", requestColor.Sprint("? "+data.RequestID), describeRequest(data.Request))
		if watchInteractive {
			return w.answer(ctx, data.RequestID, false)
		}

	case event.GroupedPermissionRequested:
		var data event.GroupedPermissionRequestedData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return err
		}
		fmt.Fprintf(w.out, "%s %s\n", requestColor.Sprint("? "+data.RequestID), describeGrouped(data.Request))
		if watchInteractive {
			return w.answer(ctx, data.RequestID, true)
		}

	case event.PermissionGranted:
		var data event.PermissionGrantedData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return err
		}
		fmt.Fprintf(w.out, "%s %s\n", grantColor.Sprint("✓ granted"), data.RequestID)

	case event.PermissionDenied:
		var data event.PermissionDeniedData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return err
		}
		fmt.Fprintf(w.out, "%s %s\n", denyColor.Sprint("✗ denied"), data.RequestID)

	case event.TokenRevoked:
		var data event.TokenRevokedData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return err
		}
		fmt.Fprintf(w.out, "%s %s %s\n", denyColor.Sprint("revoked"), data.Type, data.Outpoint)

	case event.ConfigUpdated:
		var data event.ConfigUpdatedData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return err
		}
		if data.RestartRequired {
			fmt.Fprintln(w.out, requestColor.Sprint("permission config changed, restart the server to apply it"))
		} else {
			fmt.Fprintln(w.out, dimColor.Sprint("permission config matches the running server"))
		}

	default:
		fmt.Fprintln(w.out, dimColor.Sprintf("[%s]", evt.Type))
	}
	return nil
}

// answer asks on the terminal until it gets y, n or o (once).
func (w *watcher) answer(ctx context.Context, requestID string, grouped bool) error {
	for {
		fmt.Fprint(w.out, "  allow? [y]es / [n]o / [o]nce: ")
		line, err := w.in.ReadString('\n')
		if err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			if grouped {
				granted, err := groupedToGrant(ctx, w.client, requestID)
				if err != nil {
					return err
				}
				return w.client.GrantGrouped(ctx, requestID, granted, 0)
			}
			return w.client.Grant(ctx, requestID, permission.GrantOptions{})
		case "o", "once":
			if grouped {
				fmt.Fprintln(w.out, dimColor.Sprint("  grouped requests cannot be granted once"))
				continue
			}
			return w.client.Grant(ctx, requestID, permission.GrantOptions{Ephemeral: true})
		case "n", "no":
			if grouped {
				return w.client.DenyGrouped(ctx, requestID)
			}
			return w.client.Deny(ctx, requestID)
		}
	}
}
