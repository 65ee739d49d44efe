package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/walletperm/internal/server"
	"github.com/opencode-ai/walletperm/pkg/types"
)

var tokensOriginator string

var tokensCmd = &cobra.Command{
	Use:       "tokens <protocol|basket|certificate|spending>",
	Short:     "List permission tokens",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"protocol", "basket", "certificate", "spending"},
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parsePermissionType(args[0])
		if err != nil {
			return err
		}
		tokens, err := newClient().Tokens(cmd.Context(), t, tokensOriginator)
		if err != nil {
			return err
		}
		if ok, err := writeStructured(os.Stdout, tokens); ok {
			return err
		}
		printTokens(os.Stdout, tokens)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <protocol|basket|certificate|spending> <txid.index>",
	Short: "Revoke a permission token by spending it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parsePermissionType(args[0])
		if err != nil {
			return err
		}
		if err := newClient().Revoke(cmd.Context(), t, args[1]); err != nil {
			return err
		}
		fmt.Println(denyColor.Sprint("revoked"), args[1])
		return nil
	},
}

var spendingCmd = &cobra.Command{
	Use:   "spending <originator>",
	Short: "Show satoshis an originator spent this calendar month",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spent, err := newClient().Spending(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		resp := server.SpendingResponse{Originator: args[0], Spent: spent}
		if ok, err := writeStructured(os.Stdout, resp); ok {
			return err
		}
		fmt.Printf("%s %d satoshis this month\n", labelColor.Sprint(args[0]), spent)
		return nil
	},
}

func init() {
	tokensCmd.Flags().StringVar(&tokensOriginator, "originator", "", "Only list tokens for this originator")
}

func parsePermissionType(s string) (types.PermissionType, error) {
	switch t := types.PermissionType(s); t {
	case types.PermissionProtocol, types.PermissionBasket, types.PermissionCertificate, types.PermissionSpending:
		return t, nil
	}
	return "", fmt.Errorf("unknown permission type %q", s)
}
