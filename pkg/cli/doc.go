// Package cli provides common CLI utilities for ringbuf command-line tools.
//
// This package includes:
//   - Configuration management (named buffer profiles)
//   - Output formatting (YAML, JSON, table, raw, MessagePack)
//   - A ring-backed LogWriter that keeps the recent log tail
//
// Configuration is stored in ~/.ringbuf/<app>/config.yaml, or under
// $RINGBUF_CONFIG_DIR when set, with multiple profiles similar to kubectl
// contexts.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("ringbuf")
//
//	// Resolve the current profile, falling back to defaults
//	p, err := cfg.ResolveProfile("")
//
//	// Output result
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
