package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/lanechime/internal/dbus"
	"github.com/jmylchreest/lanechime/internal/protocol"
)

// ReplyOutput is the printed result of one bus transaction.
type ReplyOutput struct {
	Command string `json:"command" yaml:"command"`
	Sent    string `json:"sent" yaml:"sent"`
	Reply   string `json:"reply" yaml:"reply"`
	Code    byte   `json:"code" yaml:"code"`
}

func newReplyOutput(data []byte, reply byte) ReplyOutput {
	out := ReplyOutput{
		Reply: protocol.Reply(reply).String(),
		Code:  reply,
	}
	if len(data) > 0 {
		out.Command = protocol.Command(data[0]).String()
	}
	hex := make([]string, len(data))
	for i, b := range data {
		hex[i] = fmt.Sprintf("%02x", b)
	}
	out.Sent = strings.Join(hex, " ")
	return out
}

// StatusOutput is the printed daemon status.
type StatusOutput struct {
	Connected bool          `json:"connected" yaml:"connected"`
	State     string        `json:"state" yaml:"state"`
	Commands  uint64        `json:"commands" yaml:"commands"`
	Replies   uint64        `json:"replies" yaml:"replies"`
	Dropped   uint64        `json:"dropped" yaml:"dropped"`
	Uptime    time.Duration `json:"uptime_ns" yaml:"uptime"`
}

func newStatusOutput(st dbus.Status) StatusOutput {
	return StatusOutput{
		Connected: st.Connected,
		State:     dbus.ConnectionStateName(st.State),
		Commands:  st.Commands,
		Replies:   st.Replies,
		Dropped:   st.Dropped,
		Uptime:    st.Uptime,
	}
}

// writeStructured writes v as json or yaml. It reports false for text.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}

func writeReply(w io.Writer, format string, out ReplyOutput) error {
	if ok, err := writeStructured(w, format, out); ok {
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", out.Command, out.Reply)
	return err
}

func writeStatus(w io.Writer, format string, out StatusOutput, now time.Time) error {
	if ok, err := writeStructured(w, format, out); ok {
		return err
	}
	connected := "no"
	if out.Connected {
		connected = "yes"
	}
	_, err := fmt.Fprintf(w,
		"Connected: %s (%s)\nCommands:  %s\nReplies:   %s\nDropped:   %s\nStarted:   %s\n",
		connected, out.State,
		humanize.Comma(int64(out.Commands)),
		humanize.Comma(int64(out.Replies)),
		humanize.Comma(int64(out.Dropped)),
		humanize.RelTime(now.Add(-out.Uptime), now, "ago", "from now"),
	)
	return err
}

// replyError turns a failure reply into an error so the exit code reflects it.
func replyError(reply byte) error {
	switch protocol.Reply(reply) {
	case protocol.ReplyFail, protocol.ReplyErrorInvalidParam, protocol.ReplyErrorDisconnected:
		return fmt.Errorf("daemon replied %s", protocol.Reply(reply))
	default:
		return nil
	}
}
