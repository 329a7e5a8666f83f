package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/lanechime/internal/config"
	"github.com/jmylchreest/lanechime/internal/dbus"
	"github.com/jmylchreest/lanechime/internal/event"
	"github.com/jmylchreest/lanechime/internal/mixer"
	"github.com/jmylchreest/lanechime/internal/protocol"
	"github.com/jmylchreest/lanechime/internal/sound"
	"github.com/jmylchreest/lanechime/internal/transport"
)

// SelectionLockTimeout bounds the wait for the slot table when the dispatcher
// applies a selection.
const SelectionLockTimeout = 50 * time.Millisecond

// ConnectionPublisher is told about sink connection changes.
type ConnectionPublisher interface {
	EmitConnectionChanged(connected bool) error
}

// TransportFactory builds the audio transport for the App.
type TransportFactory func(opts transport.Options, src transport.FrameSource, logger *slog.Logger) (transport.Transport, error)

// Option configures an App.
type Option func(*App)

// WithTransportFactory replaces transport.New.
func WithTransportFactory(f TransportFactory) Option {
	return func(a *App) { a.newTransport = f }
}

// WithLevelVar lets config reloads change the log level.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = lv }
}

// WithBank replaces the synthesized sound bank.
func WithBank(b *sound.Bank) Option {
	return func(a *App) { a.bank = b }
}

// WithAlerter replaces the default log-only Alerter.
func WithAlerter(al *Alerter) Option {
	return func(a *App) { a.alerter = al }
}

// App owns every daemon component: sound bank, mixer, event queue, protocol
// handler, audio transport and dispatcher.
type App struct {
	logger *slog.Logger

	cfgMu sync.RWMutex
	cfg   *config.DaemonConfig

	levelVar     *slog.LevelVar
	newTransport TransportFactory

	bank       *sound.Bank
	mixer      *mixer.Mixer
	queue      *event.Queue
	protocol   *protocol.Handler
	transport  transport.Transport
	dispatcher *Dispatcher
	alerter    *Alerter

	pubMu     sync.RWMutex
	publisher ConnectionPublisher

	// connected mirrors the sink state for the drain side.
	connected atomic.Bool
	startedAt time.Time
}

// New builds an App from a validated config.
func New(cfg *config.DaemonConfig, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{
		logger:       logger,
		cfg:          cfg,
		newTransport: transport.New,
		startedAt:    time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.alerter == nil {
		a.alerter = NewAlerter(logger)
	}

	if a.bank == nil {
		bank, err := sound.NewBank(cfg.Audio.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to build sound bank: %w", err)
		}
		a.bank = bank
	}

	m, err := mixer.New(cfg.Timeline(), cfg.MixerLayout(), a.bank, logger.With("component", "mixer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create mixer: %w", err)
	}
	a.mixer = m

	a.queue = event.NewQueue(cfg.Queue.Size)
	a.protocol = protocol.NewHandler(a.queue, logger.With("component", "protocol"))

	t, err := a.newTransport(transportOptions(cfg), m, logger.With("component", "transport"))
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	a.transport = t
	t.Subscribe(a)

	a.dispatcher = NewDispatcher(a.queue, logger.With("component", "dispatcher"))
	a.dispatcher.Handle(event.KindPlaySound, a.handlePlaySound)

	return a, nil
}

// transportOptions returns the transport settings of the audio section.
func transportOptions(cfg *config.DaemonConfig) transport.Options {
	return transport.Options{
		Backend:    cfg.Audio.Backend,
		SampleRate: cfg.Audio.SampleRate,
		BufferSize: cfg.Audio.BufferSize.Duration(),
		Volume:     cfg.Audio.DefaultVolume,
		RecordPath: cfg.RecordFile(),
	}
}

// SetPublisher sets where connection changes are published, typically the
// D-Bus server.
func (a *App) SetPublisher(p ConnectionPublisher) {
	a.pubMu.Lock()
	defer a.pubMu.Unlock()
	a.publisher = p
}

// Run starts the transport and drains events until ctx is done, then stops
// the transport.
func (a *App) Run(ctx context.Context) error {
	if err := a.transport.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s transport: %w", a.transport.Name(), err)
	}
	a.logger.Info("transport started", "backend", a.transport.Name(), "volume", a.transport.Volume())

	drainErr := a.dispatcher.Run(ctx)

	var errs []error
	if drainErr != nil {
		errs = append(errs, fmt.Errorf("dispatcher: %w", drainErr))
	}
	if err := a.transport.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop transport: %w", err))
	}
	a.logger.Info("daemon stopped", "uptime", time.Since(a.startedAt).Round(time.Millisecond))
	return errors.Join(errs...)
}

// handlePlaySound applies a PlaySound event: volume first, then the
// selection. Events drained after the sink dropped are ignored.
func (a *App) handlePlaySound(ctx context.Context, ev event.Event) error {
	if !a.connected.Load() {
		a.alerter.NotifyStaleEvent(ev.ID)
		return nil
	}

	a.transport.SetVolume(int(ev.Param1))

	lockCtx, cancel := context.WithTimeout(ctx, SelectionLockTimeout)
	defer cancel()
	if err := a.mixer.ApplySelection(lockCtx, ev.Param2); err != nil {
		a.alerter.NotifyApplyError(err)
		return err
	}

	a.logger.Debug("play sound applied",
		"id", ev.ID,
		"volume", ev.Param1,
		"selection", mixer.DecodeSelection(ev.Param2).String(),
		"age", ev.Age(),
	)
	return nil
}

// OnConnectionStateChanged implements transport.Observer.
func (a *App) OnConnectionStateChanged(state transport.ConnectionState) {
	a.logger.Info("sink connection state changed", "state", state.String())

	switch state {
	case transport.ConnectionConnected:
		a.setConnected(true)
	case transport.ConnectionDisconnected:
		a.setConnected(false)
	}
}

// OnAudioStateChanged implements transport.Observer.
func (a *App) OnAudioStateChanged(state transport.AudioState) {
	a.logger.Info("sink audio state changed", "state", state.String())
}

func (a *App) setConnected(connected bool) {
	was := a.connected.Swap(connected)
	a.protocol.SetConnected(connected)
	if was == connected {
		return
	}
	if !connected {
		a.alerter.NotifyConnectionLost(a.transport.Name())
	}

	a.pubMu.RLock()
	p := a.publisher
	a.pubMu.RUnlock()
	if p != nil {
		if err := p.EmitConnectionChanged(connected); err != nil {
			a.logger.Debug("failed to publish connection change", "error", err)
		}
	}
}

// ApplyConfig applies a reloaded config. Log level and default volume apply
// immediately; other changes take effect after a restart.
func (a *App) ApplyConfig(next *config.DaemonConfig) {
	a.cfgMu.Lock()
	prev := a.cfg
	a.cfg = next
	a.cfgMu.Unlock()

	if a.levelVar != nil {
		if level, err := config.ParseLogLevel(next.Log.Level); err == nil {
			a.levelVar.Set(level)
		}
	}
	if next.Audio.DefaultVolume != prev.Audio.DefaultVolume {
		a.transport.SetVolume(next.Audio.DefaultVolume)
		a.logger.Info("default volume changed", "volume", next.Audio.DefaultVolume)
	}
	if prev.RequiresRestart(next) {
		a.alerter.NotifyRestartRequired()
	}
	a.alerter.NotifyConfigReloaded()
}

// Config returns the active configuration.
func (a *App) Config() *config.DaemonConfig {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// Status reports the daemon state for the bus Status method.
func (a *App) Status() dbus.Status {
	stats := a.protocol.Stats()
	return dbus.Status{
		Connected: a.connected.Load(),
		State:     uint32(a.transport.ConnectionState()),
		Commands:  stats.CommandsReceived,
		Replies:   stats.RepliesSent,
		Dropped:   stats.EventsDropped,
		Uptime:    time.Since(a.startedAt),
	}
}

// Connected reports whether the sink is connected.
func (a *App) Connected() bool { return a.connected.Load() }

// Protocol returns the bus command handler.
func (a *App) Protocol() *protocol.Handler { return a.protocol }

// Mixer returns the mixer.
func (a *App) Mixer() *mixer.Mixer { return a.mixer }

// Queue returns the event queue.
func (a *App) Queue() *event.Queue { return a.queue }

// Transport returns the audio transport.
func (a *App) Transport() transport.Transport { return a.transport }

// Dispatcher returns the event dispatcher.
func (a *App) Dispatcher() *Dispatcher { return a.dispatcher }

// Alerter returns the internal alerter.
func (a *App) Alerter() *Alerter { return a.alerter }
