package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Client calls a running lanechimed over D-Bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial opens a private connection to the given bus and binds to the daemon
// owning busName.
func Dial(busType, busName string) (*Client, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	switch busType {
	case BusSession, "":
		conn, err = dbus.ConnectSessionBus()
	case BusSystem:
		conn, err = dbus.ConnectSystemBus()
	default:
		return nil, fmt.Errorf("unknown bus type %q", busType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s bus: %w", busType, err)
	}
	if busName == "" {
		busName = DBusBusName
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(busName, DBusPath),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Write sends a command and its parameters.
func (c *Client) Write(ctx context.Context, data []byte) error {
	if err := c.obj.CallWithContext(ctx, DBusInterface+".Write", 0, data).Err; err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Read fetches the reply to the last command.
func (c *Client) Read(ctx context.Context) (byte, error) {
	var reply byte
	if err := c.obj.CallWithContext(ctx, DBusInterface+".Read", 0).Store(&reply); err != nil {
		return 0, fmt.Errorf("read failed: %w", err)
	}
	return reply, nil
}

// Transfer sends a command and returns its reply in one call.
func (c *Client) Transfer(ctx context.Context, data []byte) (byte, error) {
	var reply byte
	if err := c.obj.CallWithContext(ctx, DBusInterface+".Transfer", 0, data).Store(&reply); err != nil {
		return 0, fmt.Errorf("transfer failed: %w", err)
	}
	return reply, nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var (
		st       Status
		uptimeMs int64
	)
	err := c.obj.CallWithContext(ctx, DBusInterface+".Status", 0).
		Store(&st.Connected, &st.State, &st.Commands, &st.Replies, &st.Dropped, &uptimeMs)
	if err != nil {
		return Status{}, fmt.Errorf("status failed: %w", err)
	}
	st.Uptime = uptimeFromMillis(uptimeMs)
	return st, nil
}

// WatchConnection calls fn for every ConnectionChanged signal until ctx is
// done.
func (c *Client) WatchConnection(ctx context.Context, fn func(connected bool)) error {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(DBusPath),
		dbus.WithMatchInterface(DBusInterface),
		dbus.WithMatchMember("ConnectionChanged"),
	}
	if err := c.conn.AddMatchSignalContext(ctx, opts...); err != nil {
		return fmt.Errorf("failed to add match rule: %w", err)
	}
	defer func() { _ = c.conn.RemoveMatchSignal(opts...) }()

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	defer c.conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return nil
			}
			if connected, ok := parseConnectionChanged(sig); ok {
				fn(connected)
			}
		}
	}
}

// parseConnectionChanged extracts the flag of a ConnectionChanged signal.
func parseConnectionChanged(sig *dbus.Signal) (bool, bool) {
	if sig == nil || sig.Path != DBusPath || sig.Name != DBusInterface+".ConnectionChanged" {
		return false, false
	}
	if len(sig.Body) < 1 {
		return false, false
	}
	connected, ok := sig.Body[0].(bool)
	return connected, ok
}
