package dbus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// BusServer implements the io.github.jmylchreest.LaneChime D-Bus interface.
//
// Calls from different clients are serialized so that a Write and the Read
// that follows it form one transaction from the handler's point of view.
type BusServer struct {
	conn   *dbus.Conn
	logger *slog.Logger

	busType string
	busName string

	handler BusHandler
	status  StatusProvider

	// txMu serializes bus transactions.
	txMu sync.Mutex

	mu      sync.RWMutex
	running bool
}

// NewBusServer creates a BusServer that forwards transactions to handler.
func NewBusServer(handler BusHandler, logger *slog.Logger) *BusServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusServer{
		logger:  logger,
		busType: BusSession,
		busName: DBusBusName,
		handler: handler,
	}
}

// SetBus selects the bus type and the name to claim.
func (s *BusServer) SetBus(busType, busName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busType = busType
	if busName != "" {
		s.busName = busName
	}
}

// SetStatusProvider sets the function answering Status calls.
func (s *BusServer) SetStatusProvider(provider StatusProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = provider
}

// Start connects to the bus and exports the command bus object.
func (s *BusServer) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	busType, busName := s.busType, s.busName
	s.mu.Unlock()

	conn, err := connect(busType)
	if err != nil {
		return err
	}

	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: DBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    DBusInterface,
				Methods: busMethods(),
				Signals: busSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), DBusPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", busName)
	}

	s.mu.Lock()
	s.conn = conn
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus command bus started", "bus", busType, "name", busName, "path", DBusPath)
	return nil
}

// Stop releases the bus name and unexports the object.
func (s *BusServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(s.busName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		_ = s.conn.Export(nil, DBusPath, DBusInterface)
		// Don't close the connection as it's shared
	}

	s.logger.Info("D-Bus command bus stopped")
	return nil
}

// Write delivers a command and its parameters.
// D-Bus method: Write(ay)
func (s *BusServer) Write(data []byte) *dbus.Error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.logger.Debug("Write called", "bytes", len(data))
	s.handler.OnReceive(data)
	return nil
}

// Read returns the reply to the last command.
// D-Bus method: Read() -> y
func (s *BusServer) Read() (byte, *dbus.Error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	reply := s.handler.OnRequest()
	s.logger.Debug("Read called", "reply", reply)
	return reply, nil
}

// Transfer performs a Write followed by a Read as one transaction.
// D-Bus method: Transfer(ay) -> y
func (s *BusServer) Transfer(data []byte) (byte, *dbus.Error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.handler.OnReceive(data)
	reply := s.handler.OnRequest()
	s.logger.Debug("Transfer called", "bytes", len(data), "reply", reply)
	return reply, nil
}

// Status returns the daemon status.
// D-Bus method: Status() -> (b connected, u state, t commands, t replies, t dropped, x uptime_ms)
func (s *BusServer) Status() (bool, uint32, uint64, uint64, uint64, int64, *dbus.Error) {
	s.mu.RLock()
	provider := s.status
	s.mu.RUnlock()

	if provider == nil {
		return false, 0, 0, 0, 0, 0, dbus.MakeFailedError(fmt.Errorf("status not available"))
	}
	st := provider()
	return st.Connected, st.State, st.Commands, st.Replies, st.Dropped, st.Uptime.Milliseconds(), nil
}

// EmitConnectionChanged emits the ConnectionChanged signal.
func (s *BusServer) EmitConnectionChanged(connected bool) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	if err := conn.Emit(DBusPath, DBusInterface+".ConnectionChanged", connected); err != nil {
		return fmt.Errorf("failed to emit ConnectionChanged signal: %w", err)
	}

	s.logger.Debug("emitted ConnectionChanged signal", "connected", connected)
	return nil
}

// Connection returns the underlying D-Bus connection.
func (s *BusServer) Connection() *dbus.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// connect returns the shared connection for a bus type.
func connect(busType string) (*dbus.Conn, error) {
	switch busType {
	case BusSession, "":
		conn, err := dbus.SessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		return conn, nil
	case BusSystem:
		conn, err := dbus.SystemBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to system bus: %w", err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown bus type %q", busType)
	}
}

// uptimeFromMillis converts the Status uptime field.
func uptimeFromMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// busMethods returns the D-Bus method introspection data.
func busMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Write",
			Args: []introspect.Arg{
				{Name: "data", Type: "ay", Direction: "in"},
			},
		},
		{
			Name: "Read",
			Args: []introspect.Arg{
				{Name: "reply", Type: "y", Direction: "out"},
			},
		},
		{
			Name: "Transfer",
			Args: []introspect.Arg{
				{Name: "data", Type: "ay", Direction: "in"},
				{Name: "reply", Type: "y", Direction: "out"},
			},
		},
		{
			Name: "Status",
			Args: []introspect.Arg{
				{Name: "connected", Type: "b", Direction: "out"},
				{Name: "state", Type: "u", Direction: "out"},
				{Name: "commands", Type: "t", Direction: "out"},
				{Name: "replies", Type: "t", Direction: "out"},
				{Name: "dropped", Type: "t", Direction: "out"},
				{Name: "uptime_ms", Type: "x", Direction: "out"},
			},
		},
	}
}

// busSignals returns the D-Bus signal introspection data.
func busSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "ConnectionChanged",
			Args: []introspect.Arg{
				{Name: "connected", Type: "b"},
			},
		},
	}
}
