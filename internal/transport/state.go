package transport

import "sync"

// ConnectionState is the link state of the audio sink.
type ConnectionState int

const (
	ConnectionDisconnected ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnecting
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// AudioState is the streaming state of the audio sink.
type AudioState int

const (
	AudioStopped AudioState = iota
	AudioStarted
	AudioRemoteSuspend
)

// String returns the state name.
func (s AudioState) String() string {
	switch s {
	case AudioStopped:
		return "stopped"
	case AudioStarted:
		return "started"
	case AudioRemoteSuspend:
		return "remote-suspend"
	default:
		return "unknown"
	}
}

// Observer receives transport state changes.
type Observer interface {
	OnConnectionStateChanged(state ConnectionState)
	OnAudioStateChanged(state AudioState)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Connection func(ConnectionState)
	Audio      func(AudioState)
}

// OnConnectionStateChanged implements Observer.
func (f ObserverFuncs) OnConnectionStateChanged(state ConnectionState) {
	if f.Connection != nil {
		f.Connection(state)
	}
}

// OnAudioStateChanged implements Observer.
func (f ObserverFuncs) OnAudioStateChanged(state AudioState) {
	if f.Audio != nil {
		f.Audio(state)
	}
}

// Notifier tracks transport state and fans changes out to observers.
//
// Observers are called synchronously, in registration order, before the
// state-changing call returns. Setting the current state again is a no-op.
type Notifier struct {
	mu        sync.Mutex
	observers []Observer
	conn      ConnectionState
	audio     AudioState

	// notifyMu orders deliveries from concurrent state changes.
	notifyMu sync.Mutex
}

// Subscribe registers an observer.
func (n *Notifier) Subscribe(o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, o)
}

// ConnectionState returns the current connection state.
func (n *Notifier) ConnectionState() ConnectionState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conn
}

// AudioState returns the current audio state.
func (n *Notifier) AudioState() AudioState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.audio
}

func (n *Notifier) setConnection(state ConnectionState) {
	n.notifyMu.Lock()
	defer n.notifyMu.Unlock()

	n.mu.Lock()
	if n.conn == state {
		n.mu.Unlock()
		return
	}
	n.conn = state
	observers := append([]Observer(nil), n.observers...)
	n.mu.Unlock()

	for _, o := range observers {
		o.OnConnectionStateChanged(state)
	}
}

func (n *Notifier) setAudio(state AudioState) {
	n.notifyMu.Lock()
	defer n.notifyMu.Unlock()

	n.mu.Lock()
	if n.audio == state {
		n.mu.Unlock()
		return
	}
	n.audio = state
	observers := append([]Observer(nil), n.observers...)
	n.mu.Unlock()

	for _, o := range observers {
		o.OnAudioStateChanged(state)
	}
}
