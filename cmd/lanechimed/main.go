// Package main is the entry point for the lanechimed audio cue daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/lanechime/internal/config"
	"github.com/jmylchreest/lanechime/internal/daemon"
	"github.com/jmylchreest/lanechime/internal/dbus"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var opts struct {
	configPath string
	backend    string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:   "lanechimed",
	Short: "Lane guidance audio cue daemon",
	Long: `lanechimed plays lane guidance audio cues on an audio sink.

A controller selects cues through a one-byte command bus exported on D-Bus.
Cues play in fixed time windows of a repeating timeline, so several cues can
sound in the same cycle without overlapping.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&opts.configPath, "config", "",
		"Path to config file (default: ~/.config/lanechime/lanechimed.toml)")
	rootCmd.Flags().StringVar(&opts.backend, "backend", "",
		fmt.Sprintf("Audio backend, overrides the config file (%v)", config.AudioBackends()))
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	levelVar := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelVar,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}
	setLevel(levelVar, cfg)

	logger.Info("starting lanechimed",
		"version", version,
		"backend", cfg.Audio.Backend,
		"sample_rate", cfg.Audio.SampleRate,
		"bus", cfg.Bus.Type,
	)

	app, err := daemon.New(cfg, logger, daemon.WithLevelVar(levelVar))
	if err != nil {
		logger.Error("failed to create daemon", "error", err)
		return err
	}

	server := dbus.NewBusServer(app.Protocol(), logger.With("component", "dbus"))
	server.SetBus(cfg.Bus.Type, cfg.Bus.Name)
	server.SetStatusProvider(app.Status)
	if err := server.Start(); err != nil {
		logger.Error("failed to start D-Bus server", "error", err)
		return err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Warn("failed to stop D-Bus server", "error", err)
		}
	}()
	app.SetPublisher(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := daemon.NewConfigWatcher(opts.configPath, logger.With("component", "config"))
	if err != nil {
		logger.Warn("config hot reload disabled", "error", err)
	} else {
		watcher.SetReloadCallback(func(next *config.DaemonConfig) {
			if opts.backend != "" {
				next.Audio.Backend = opts.backend
			}
			app.ApplyConfig(next)
			setLevel(levelVar, next)
		})
		watcher.SetErrorCallback(app.Alerter().NotifyConfigError)
		if err := watcher.Start(ctx, cfg); err != nil {
			logger.Warn("config hot reload disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	app.Alerter().NotifyStartup(version, cfg.Audio.Backend)

	if err := app.Run(ctx); err != nil {
		logger.Error("daemon exited with error", "error", err)
		return err
	}
	return nil
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.DaemonConfig, error) {
	cfg, err := config.LoadDaemonConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.backend != "" {
		cfg.Audio.Backend = opts.backend
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --backend: %w", err)
		}
	}
	return cfg, nil
}

func setLevel(levelVar *slog.LevelVar, cfg *config.DaemonConfig) {
	if opts.verbose {
		levelVar.Set(slog.LevelDebug)
		return
	}
	level, err := config.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return
	}
	levelVar.Set(level)
}
