// Package main provides the entry point for the walletperm CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/walletperm/cmd/walletperm/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
