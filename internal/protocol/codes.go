// Package protocol implements the single in-flight command/response state
// machine spoken over the command bus.
//
// A transaction is a write of one command byte plus its parameters, followed by
// a read of exactly one reply byte:
//
//	controller                              lanechimed
//	    |   QueryConnection                     |
//	    | ------------------------------------> |
//	    |   Connected | Disconnected            |
//	    | <------------------------------------ |
//	    |                                       |
//	    |   PlaySound <volume> <selector>       |
//	    | ------------------------------------> |
//	    |   Success | ErrorInvalidParam |       |
//	    |   ErrorDisconnected                   |
//	    | <------------------------------------ |
//
// Controllers poll QueryConnection until Connected, then send PlaySound about
// every 500ms, and restart polling after an ErrorDisconnected reply.
package protocol

import "fmt"

// Command is the first byte of a bus write.
type Command byte

const (
	CommandNull            Command = 0x00
	CommandQueryConnection Command = 0x01
	CommandPlaySound       Command = 0x02
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CommandNull:
		return "null"
	case CommandQueryConnection:
		return "query-connection"
	case CommandPlaySound:
		return "play-sound"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(c))
	}
}

// Reply is the single byte returned on a bus read.
type Reply byte

const (
	ReplySuccess           Reply = 0x00
	ReplyFail              Reply = 0x01
	ReplyConnected         Reply = 0x02
	ReplyDisconnected      Reply = 0x03
	ReplyErrorInvalidParam Reply = 0x04
	ReplyErrorDisconnected Reply = 0x05
)

// String returns the reply name.
func (r Reply) String() string {
	switch r {
	case ReplySuccess:
		return "success"
	case ReplyFail:
		return "fail"
	case ReplyConnected:
		return "connected"
	case ReplyDisconnected:
		return "disconnected"
	case ReplyErrorInvalidParam:
		return "error-invalid-param"
	case ReplyErrorDisconnected:
		return "error-disconnected"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(r))
	}
}

// State is the lifecycle position of the in-flight message.
type State int

const (
	StateIdle State = iota
	StateCommandReceived
	StateReplyPending
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCommandReceived:
		return "command-received"
	case StateReplyPending:
		return "reply-pending"
	default:
		return "unknown"
	}
}

// MaxVolume is the largest accepted PlaySound volume.
const MaxVolume = 100

// missingByte is what a read past the end of a bus write yields.
const missingByte = 0xFF

// ValidVolume reports whether v is a PlaySound volume in [0, MaxVolume].
func ValidVolume(v byte) bool {
	return v <= MaxVolume
}

// ValidSelector is the PlaySound selector check. Every byte is accepted;
// unknown bits are ignored when the selection is applied.
func ValidSelector(byte) bool {
	return true
}

// PlaySound builds the bus write for a PlaySound command.
func PlaySound(volume, selector byte) []byte {
	return []byte{byte(CommandPlaySound), volume, selector}
}
