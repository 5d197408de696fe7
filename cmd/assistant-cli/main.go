// Package main provides the assistant operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/talentlink/assistant/cmd/assistant-cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
