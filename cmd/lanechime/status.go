package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/lanechime/internal/dbus"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Show whether the audio sink is connected, the sink link state, and how
many bus commands, replies and dropped events the daemon has counted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			return writeStatus(os.Stdout, cfg.Output.Format, newStatusOutput(st), time.Now())
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
