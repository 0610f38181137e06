// Package main provides the Vibe Oracle CLI.
//
// Usage:
//
//	oracle [flags] <command> [args]
//
// Commands:
//
//	chat     - Interactive reading in the terminal
//	speak    - Synthesize speech for a text
//	voice    - Live voice session from a PCM file or stdin
//	serve    - Websocket bridge for browsers
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.vibeoracle/oracle/
//	Use 'oracle config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/vibeoracle/oracle/cmd/oracle/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
