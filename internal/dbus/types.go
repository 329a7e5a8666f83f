package dbus

import "time"

const (
	// DBusInterface is the command bus interface name.
	DBusInterface = "io.github.jmylchreest.LaneChime"
	// DBusPath is the command bus object path.
	DBusPath = "/io/github/jmylchreest/LaneChime"
	// DBusBusName is the default bus name to claim.
	DBusBusName = "io.github.jmylchreest.LaneChime"
)

// Bus types.
const (
	BusSession = "session"
	BusSystem  = "system"
)

// BusHandler receives bus writes and answers bus reads.
type BusHandler interface {
	OnReceive(data []byte)
	OnRequest() byte
}

// Status is the daemon state reported by the Status method.
type Status struct {
	Connected bool          `json:"connected" yaml:"connected"`
	State     uint32        `json:"state" yaml:"state"`
	Commands  uint64        `json:"commands" yaml:"commands"`
	Replies   uint64        `json:"replies" yaml:"replies"`
	Dropped   uint64        `json:"dropped" yaml:"dropped"`
	Uptime    time.Duration `json:"uptime" yaml:"uptime"`
}

// StatusProvider returns the current daemon status.
type StatusProvider func() Status

// ConnectionStateName names the State field of Status.
func ConnectionStateName(state uint32) string {
	switch state {
	case 0:
		return "disconnected"
	case 1:
		return "connecting"
	case 2:
		return "connected"
	case 3:
		return "disconnecting"
	default:
		return "unknown"
	}
}
