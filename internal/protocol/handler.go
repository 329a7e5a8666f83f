package protocol

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/lanechime/internal/event"
)

// Poster accepts decoded events without blocking.
type Poster interface {
	Post(ev event.Event) bool
}

// Stats counts handler activity since creation.
type Stats struct {
	CommandsReceived uint64
	RepliesSent      uint64
	EventsPosted     uint64
	EventsDropped    uint64
	BytesDiscarded   uint64
}

// Handler is the bus-side state machine. OnReceive and OnRequest run in the
// bus context: they never block and never touch the slot table. Accepted
// PlaySound commands are handed to the Poster.
type Handler struct {
	mu     sync.Mutex
	logger *slog.Logger
	poster Poster

	connected atomic.Bool

	command Command
	reply   Reply
	state   State

	stats Stats
}

// NewHandler creates a handler in the idle state, disconnected.
func NewHandler(poster Poster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:  logger,
		poster:  poster,
		command: CommandNull,
		reply:   ReplyFail,
		state:   StateIdle,
	}
}

// SetConnected records the transport connection flag.
func (h *Handler) SetConnected(connected bool) {
	if h.connected.Swap(connected) != connected {
		h.logger.Debug("protocol connection flag changed", "connected", connected)
	}
}

// Connected returns the last recorded connection flag.
func (h *Handler) Connected() bool {
	return h.connected.Load()
}

// OnReceive decodes one bus write and composes the reply for the next read.
// An empty write is ignored. Bytes following the command and its parameters
// are discarded.
func (h *Handler) OnReceive(data []byte) {
	if len(data) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.CommandsReceived++
	h.command = Command(data[0])
	h.state = StateCommandReceived
	consumed := 1

	switch h.command {
	case CommandNull:
		h.reply = ReplySuccess

	case CommandQueryConnection:
		if h.connected.Load() {
			h.reply = ReplyConnected
		} else {
			h.reply = ReplyDisconnected
		}
		h.logger.Debug("query connection", "reply", h.reply.String())

	case CommandPlaySound:
		volume, selector := byteAt(data, 1), byteAt(data, 2)
		consumed = min(len(data), 3)
		h.reply = h.playSound(volume, selector, len(data) >= 3)
		h.logger.Debug("play sound",
			"volume", volume,
			"selector", selector,
			"reply", h.reply.String(),
		)

	default:
		h.reply = ReplyFail
		h.logger.Debug("unknown command", "command", h.command.String())
	}

	if extra := len(data) - consumed; extra > 0 {
		h.stats.BytesDiscarded += uint64(extra)
		h.logger.Debug("discarded trailing bus bytes", "count", extra, "command", h.command.String())
	}
	h.state = StateReplyPending
}

// playSound validates a PlaySound request and posts it. complete is false
// when the write was cut short of the selector byte. Called with mu held.
func (h *Handler) playSound(volume, selector byte, complete bool) Reply {
	if !h.connected.Load() {
		return ReplyErrorDisconnected
	}
	if !complete || !ValidVolume(volume) || !ValidSelector(selector) {
		return ReplyErrorInvalidParam
	}
	if h.poster == nil {
		return ReplySuccess
	}

	ev, err := event.New(event.KindPlaySound, byte(CommandPlaySound), volume, selector)
	if err != nil {
		h.stats.EventsDropped++
		h.logger.Error("failed to create event", "error", err)
		return ReplySuccess
	}
	if h.poster.Post(ev) {
		h.stats.EventsPosted++
	} else {
		h.stats.EventsDropped++
		h.logger.Warn("event queue full, dropping play sound", "id", ev.ID)
	}
	return ReplySuccess
}

// OnRequest returns the pending reply byte and resets to the idle state with a
// Null command and a Fail reply, so a read without a preceding write never
// replays an earlier answer.
func (h *Handler) OnRequest() byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	reply := h.reply
	h.stats.RepliesSent++
	h.command = CommandNull
	h.reply = ReplyFail
	h.state = StateIdle
	return byte(reply)
}

// State returns the current lifecycle state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Pending returns the command and reply of the in-flight message.
func (h *Handler) Pending() (Command, Reply) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.command, h.reply
}

// Stats returns a copy of the activity counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func byteAt(data []byte, i int) byte {
	if i < len(data) {
		return data[i]
	}
	return missingByte
}
