package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/lanechime/internal/dbus"
)

// ConnectionEvent is one printed ConnectionChanged signal.
type ConnectionEvent struct {
	Time      time.Time `json:"time" yaml:"time"`
	Connected bool      `json:"connected" yaml:"connected"`
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print audio sink connection changes until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dbus.Dial(cfg.Bus.Type, cfg.Bus.Name)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return client.WatchConnection(ctx, func(connected bool) {
			ev := ConnectionEvent{Time: time.Now(), Connected: connected}
			if err := writeConnectionEvent(os.Stdout, cfg.Output.Format, ev); err != nil {
				logger.Warn("failed to write event", "error", err)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func writeConnectionEvent(w io.Writer, format string, ev ConnectionEvent) error {
	switch format {
	case "json":
		// one object per line
		return json.NewEncoder(w).Encode(ev)
	case "yaml":
		if _, err := fmt.Fprintln(w, "---"); err != nil {
			return err
		}
		_, err := writeStructured(w, format, ev)
		return err
	}
	state := "disconnected"
	if ev.Connected {
		state = "connected"
	}
	_, err := fmt.Fprintf(w, "%s %s\n", ev.Time.Format(time.RFC3339), state)
	return err
}
