// Package commands provides the CLI commands for walletperm.
package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/walletperm/internal/client"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	serverURL    string
	logLevel     string
	outputFormat string
	noColor      bool
)

// DefaultServerURL is used when neither --url nor WALLETPERM_URL is set.
const DefaultServerURL = "http://127.0.0.1:4096"

var rootCmd = &cobra.Command{
	Use:   "walletperm",
	Short: "walletperm - BRC-100 wallet permissions manager",
	Long: `walletperm guards a BRC-100 wallet with on-chain permission tokens.

Run 'walletperm serve' to start the permission server, then use
'walletperm watch --interactive' to answer permission requests as
applications make them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine.
		_ = godotenv.Load()

		if noColor {
			color.NoColor = true
		}
		switch outputFormat {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unknown output format %q (text|json|yaml)", outputFormat)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "Server URL (or WALLETPERM_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")

	rootCmd.SetVersionTemplate(fmt.Sprintf("walletperm %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(denyCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(spendingCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(debugCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// resolveURL picks the server URL from the flag, then the environment.
func resolveURL() string {
	if serverURL != "" {
		return serverURL
	}
	if env := os.Getenv("WALLETPERM_URL"); env != "" {
		return env
	}
	return DefaultServerURL
}

func newClient() *client.Client {
	return client.New(resolveURL())
}
