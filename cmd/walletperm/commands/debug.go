package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/walletperm/internal/config"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug utilities",
	Long:  `Debug utilities for troubleshooting walletperm configuration and setup.`,
}

var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the merged local configuration",
	RunE:  runDebugConfig,
}

var debugServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Show the running server's effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := newClient().Config(cmd.Context())
		if err != nil {
			return err
		}
		if outputFormat == "text" {
			outputFormat = "yaml"
		}
		_, err = writeStructured(os.Stdout, cfg)
		return err
	},
}

var debugPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show system paths",
	RunE:  runDebugPaths,
}

func init() {
	debugCmd.AddCommand(debugConfigCmd)
	debugCmd.AddCommand(debugServerCmd)
	debugCmd.AddCommand(debugPathsCmd)
}

func runDebugConfig(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	// Never print the root key.
	if appConfig.Wallet != nil && appConfig.Wallet.RootKey != "" {
		wc := *appConfig.Wallet
		wc.RootKey = "<redacted>"
		appConfig.Wallet = &wc
	}

	if outputFormat == "text" {
		outputFormat = "yaml"
	}
	_, err = writeStructured(os.Stdout, appConfig)
	return err
}

func runDebugPaths(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	paths := config.GetPaths()

	fmt.Println("walletperm System Paths:")
	fmt.Println()
	fmt.Printf("  Config:   %s\n", paths.Config)
	fmt.Printf("  Data:     %s\n", paths.Data)
	fmt.Printf("  Wallet:   %s\n", paths.WalletPath())
	fmt.Println()
	fmt.Println("  Config files, lowest precedence first:")
	for _, path := range config.ConfigFiles(workDir) {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("    %s %s\n", grantColor.Sprint("*"), path)
		} else {
			fmt.Printf("    %s\n", dimColor.Sprint("  "+path))
		}
	}

	return nil
}
