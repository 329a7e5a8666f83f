package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/lanechime/internal/dbus"
	"github.com/jmylchreest/lanechime/internal/mixer"
	"github.com/jmylchreest/lanechime/internal/protocol"
)

var playOpts struct {
	volume         int
	edgeTop        bool
	edgeBottom     bool
	left           bool
	middle         bool
	right          bool
	lostConnection bool
	raw            string
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask whether the audio sink is connected",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return transact([]byte{byte(protocol.CommandQueryConnection)})
	},
}

var nullCmd = &cobra.Command{
	Use:   "null",
	Short: "Send the no-op command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return transact([]byte{byte(protocol.CommandNull)})
	},
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Select the cues to play",
	Long: `Select the cues to play and set the output volume.

Cues not named keep playing. Of the lane cues only one plays, with priority
middle, then left, then right. --raw sends a selector byte as given, for
example --raw 0x0c.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		volume := cfg.Play.Volume
		if cmd.Flags().Changed("volume") {
			volume = playOpts.volume
		}
		if volume < 0 || volume > 255 {
			return fmt.Errorf("volume %d does not fit in a byte", volume)
		}

		selector, err := playSelector()
		if err != nil {
			return err
		}
		return transact(protocol.PlaySound(byte(volume), selector))
	},
}

var silenceCmd = &cobra.Command{
	Use:   "silence",
	Short: "Stop every cue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return transact(protocol.PlaySound(byte(cfg.Play.Volume), 0x00))
	},
}

func init() {
	rootCmd.AddCommand(queryCmd, nullCmd, playCmd, silenceCmd)

	f := playCmd.Flags()
	f.IntVar(&playOpts.volume, "volume", 0, "Output volume 0-100 (default from config)")
	f.BoolVar(&playOpts.edgeTop, "edge-top", false, "Play the edge/pool cue for the top edge")
	f.BoolVar(&playOpts.edgeBottom, "edge-bottom", false, "Play the edge/pool cue for the bottom edge")
	f.BoolVar(&playOpts.left, "left", false, "Play the left lane cue")
	f.BoolVar(&playOpts.middle, "middle", false, "Play the middle lane cue")
	f.BoolVar(&playOpts.right, "right", false, "Play the right lane cue")
	f.BoolVar(&playOpts.lostConnection, "lost-connection", false, "Play the error cue")
	f.StringVar(&playOpts.raw, "raw", "", "Send a raw selector byte instead of named cues")
}

// playSelector builds the selector byte from the play flags.
func playSelector() (byte, error) {
	sel := mixer.Selection{
		EdgeTop:        playOpts.edgeTop,
		EdgeBottom:     playOpts.edgeBottom,
		LaneLeft:       playOpts.left,
		LaneMiddle:     playOpts.middle,
		LaneRight:      playOpts.right,
		LostConnection: playOpts.lostConnection,
	}
	named := sel.Encode()

	if playOpts.raw != "" {
		if named != 0 {
			return 0, fmt.Errorf("--raw cannot be combined with named cues")
		}
		v, err := strconv.ParseUint(playOpts.raw, 0, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid --raw value %q: %w", playOpts.raw, err)
		}
		return byte(v), nil
	}
	if named == 0 {
		return 0, fmt.Errorf("no cue selected, use 'lanechime silence' to stop all cues")
	}
	return named, nil
}

// transact sends data in one bus transaction and prints the reply.
func transact(data []byte) error {
	return withClient(func(ctx context.Context, c *dbus.Client) error {
		reply, err := c.Transfer(ctx, data)
		if err != nil {
			return err
		}
		logger.Debug("bus transaction", "sent", data, "reply", reply)
		if err := writeReply(os.Stdout, cfg.Output.Format, newReplyOutput(data, reply)); err != nil {
			return err
		}
		return replyError(reply)
	})
}
