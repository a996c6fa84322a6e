// Package main is the entry point for the ringbuf CLI.
//
// Usage:
//
//	ringbuf [flags] <command> [subcommand] [args]
//
// Commands:
//
//	frame     - Split a byte stream into frames at a delimiter
//	spool     - Persist frames in a badger spool (write, list, sessions, purge, export, import)
//	simulate  - Run a producer/consumer simulation over a chaptered ring
//	find      - Search input for a 1 to 4 byte keyword
//	config    - Manage buffer profiles
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/ringbuf/cmd/ringbuf/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
