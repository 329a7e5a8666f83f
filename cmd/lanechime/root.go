// Package main provides the command-line client for lanechimed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/lanechime/internal/config"
	"github.com/jmylchreest/lanechime/internal/dbus"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		format     string
		bus        string
		busName    string
	}
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lanechime",
	Short: "Command-line client for the lanechimed audio cue daemon",
	Long: `lanechime talks to a running lanechimed over D-Bus.

Each command performs one bus transaction, a command write followed by a
one-byte reply read, and prints the decoded reply.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalOpts.format != "" {
			cfg.Output.Format = globalOpts.format
		}
		if globalOpts.bus != "" {
			cfg.Bus.Type = globalOpts.bus
		}
		if globalOpts.busName != "" {
			cfg.Bus.Name = globalOpts.busName
		}
		return cfg.Validate()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/lanechime/lanechime.toml)")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.format, "format", "f", "",
		"Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&globalOpts.bus, "bus", "",
		"Bus to use: session, system")
	rootCmd.PersistentFlags().StringVar(&globalOpts.busName, "bus-name", "",
		"Bus name of the daemon")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// withClient dials the daemon and runs fn with a per-call timeout context.
func withClient(fn func(ctx context.Context, c *dbus.Client) error) error {
	client, err := dbus.Dial(cfg.Bus.Type, cfg.Bus.Name)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Debug("failed to close bus connection", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Play.CallTimeout())
	defer cancel()
	return fn(ctx, client)
}
