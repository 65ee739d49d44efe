package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/walletperm/internal/client"
	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/pkg/types"
)

var (
	grantExpiry    time.Duration
	grantEphemeral bool
	grantAmount    uint64
	grantFile      string
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List permission requests waiting for an answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		pending, err := newClient().Pending(cmd.Context())
		if err != nil {
			return err
		}
		if ok, err := writeStructured(os.Stdout, pending); ok {
			return err
		}
		printPending(os.Stdout, pending)
		return nil
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant <request-id>",
	Short: "Grant a pending permission request",
	Long: `Grant a pending request. Grouped requests are granted in full unless
--file names a JSON or YAML document with the subset to grant.`,
	Args: cobra.ExactArgs(1),
	RunE: runGrant,
}

var denyCmd = &cobra.Command{
	Use:   "deny <request-id>",
	Short: "Deny a pending permission request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		requestID := args[0]
		var err error
		if isGroupedRequestID(requestID) {
			err = c.DenyGrouped(cmd.Context(), requestID)
		} else {
			err = c.Deny(cmd.Context(), requestID)
		}
		if err != nil {
			return err
		}
		fmt.Println(denyColor.Sprint("denied"), requestID)
		return nil
	},
}

func init() {
	grantCmd.Flags().DurationVar(&grantExpiry, "expiry", 0, "Token lifetime from now (default: server's default grant TTL)")
	grantCmd.Flags().BoolVar(&grantEphemeral, "ephemeral", false, "Allow this once without issuing a token")
	grantCmd.Flags().Uint64Var(&grantAmount, "amount", 0, "Monthly limit in satoshis for spending authorizations")
	grantCmd.Flags().StringVarP(&grantFile, "file", "f", "", "Grouped permissions to grant (JSON or YAML)")
}

// isGroupedRequestID mirrors the server's request key prefix for grouped
// requests.
func isGroupedRequestID(id string) bool {
	return strings.HasPrefix(id, "grouped:")
}

func expiryFromNow(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return time.Now().Add(d).Unix()
}

func runGrant(cmd *cobra.Command, args []string) error {
	c := newClient()
	ctx := cmd.Context()
	requestID := args[0]

	if !isGroupedRequestID(requestID) {
		err := c.Grant(ctx, requestID, permission.GrantOptions{
			Expiry:    expiryFromNow(grantExpiry),
			Ephemeral: grantEphemeral,
			Amount:    grantAmount,
		})
		if err != nil {
			return err
		}
		fmt.Println(grantColor.Sprint("granted"), requestID)
		return nil
	}

	granted, err := groupedToGrant(ctx, c, requestID)
	if err != nil {
		return err
	}
	if err := c.GrantGrouped(ctx, requestID, granted, expiryFromNow(grantExpiry)); err != nil {
		return err
	}
	fmt.Println(grantColor.Sprint("granted"), requestID)
	return nil
}

// groupedToGrant reads the subset to grant from --file, or looks up the
// pending request and grants everything it asked for.
func groupedToGrant(ctx context.Context, c *client.Client, requestID string) (types.GroupedPermissions, error) {
	var granted types.GroupedPermissions
	if grantFile != "" {
		data, err := os.ReadFile(grantFile)
		if err != nil {
			return granted, err
		}
		// YAML is a superset of JSON.
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return granted, fmt.Errorf("parse %s: %w", grantFile, err)
		}
		return granted, convertJSON(generic, &granted)
	}

	pending, err := c.Pending(ctx)
	if err != nil {
		return granted, err
	}
	for _, p := range pending {
		if p.RequestID == requestID && p.Grouped != nil {
			return p.Grouped.Permissions, nil
		}
	}
	return granted, fmt.Errorf("no pending grouped request %s", requestID)
}

// convertJSON decodes a generic YAML tree into v through its JSON form, so
// types with custom JSON decoding such as ProtocolID are honored.
func convertJSON(generic any, v any) error {
	data, err := json.Marshal(generic)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
