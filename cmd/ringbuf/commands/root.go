package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"

	"github.com/spf13/cobra"

	"github.com/haivivi/ringbuf/pkg/cli"
)

const appName = "ringbuf"

var (
	// Global flags
	cfgFile      string
	profileName  string
	formatOutput string
	outputFile   string
	verbose      bool

	// Global configuration (loaded at init time)
	globalConfig *cli.Config

	// configLoadErr stores the error from loading the config for deferred
	// reporting, so commands that do not need it still run.
	configLoadErr error
)

var rootCmd = &cobra.Command{
	Use:   "ringbuf",
	Short: "Fixed-capacity ring buffer toolkit",
	Long: `ringbuf - frame, spool and inspect byte streams with fixed-capacity ring buffers.

A chaptered ring buffer stores variable-length records ("chapters") in one
byte ring, with their lengths queued in a second ring. ringbuf uses it to
split serial-style streams at a delimiter and hand the frames on.

Configuration is stored in ~/.ringbuf/ringbuf/config.yaml (or under
$RINGBUF_CONFIG_DIR) as named profiles describing buffer sizes and framing.

Examples:
  # Frame a capture at CRLF and print the frames as a table
  ringbuf frame --delim 0d0a -f table capture.bin

  # Save a profile and make it current
  ringbuf config add-profile uart --delim 0d0a --data-cap 8192
  ringbuf config use-profile uart

  # Spool frames from a websocket or MQTT serial bridge
  ringbuf spool write ws://bridge.local/uart0
  ringbuf spool write --session uart0 mqtt://broker:1883/bridge/uart0/rx`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. On failure, the recent log lines that
// were not shown on stderr are printed to help diagnose the error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !verbose && logTail != nil && logTail.Len() > 0 {
		fmt.Fprintln(os.Stderr, "Recent log:")
		logTail.WriteTo(os.Stderr)
	}
	return err
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.ringbuf/ringbuf/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile to use (default is the current profile)")
	rootCmd.PersistentFlags().StringVarP(&formatOutput, "format", "f", "yaml", "output format: yaml, json, table, raw, msgpack")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	cfg, err := cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		globalConfig = nil
		configLoadErr = err
		slog.Debug("config unavailable", "error", err)
		return
	}
	globalConfig, configLoadErr = cfg, nil
}

// getConfig returns the global configuration.
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getProfile returns the profile selected by --profile, the current
// profile, or the defaults, in that order.
func getProfile() (*cli.Profile, error) {
	cfg, err := getConfig()
	if err != nil {
		if profileName != "" {
			return nil, err
		}
		return cli.DefaultProfile(), nil
	}
	return cfg.ResolveProfile(profileName)
}

// output writes result in the format selected by --format.
func output(result any) error {
	format := cli.OutputFormat(formatOutput)
	if !slices.Contains(cli.Formats, format) {
		return fmt.Errorf("unknown output format %q", formatOutput)
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
	})
}

// outputQuery applies a jq expression, if any, before writing result.
func outputQuery(result any, expr string) error {
	if expr == "" {
		return output(result)
	}
	filtered, err := cli.Query(expr, result)
	if err != nil {
		return err
	}
	return output(filtered)
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
