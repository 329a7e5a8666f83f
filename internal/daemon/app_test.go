package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/lanechime/internal/config"
	"github.com/jmylchreest/lanechime/internal/dbus"
	"github.com/jmylchreest/lanechime/internal/event"
	"github.com/jmylchreest/lanechime/internal/mixer"
	"github.com/jmylchreest/lanechime/internal/protocol"
	"github.com/jmylchreest/lanechime/internal/sound"
	"github.com/jmylchreest/lanechime/internal/transport"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []bool
}

func (p *recordingPublisher) EmitConnectionChanged(connected bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, connected)
	return nil
}

func (p *recordingPublisher) Events() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.events...)
}

func headlessConfig() *config.DaemonConfig {
	cfg := config.DefaultDaemonConfig()
	cfg.Audio.Backend = config.BackendHeadless
	return cfg
}

// newTestApp builds an App on a headless transport the test can drive.
func newTestApp(t *testing.T, cfg *config.DaemonConfig, opts ...Option) (*App, *transport.HeadlessTransport) {
	t.Helper()
	if cfg == nil {
		cfg = headlessConfig()
	}

	var headless *transport.HeadlessTransport
	factory := func(o transport.Options, src transport.FrameSource, logger *slog.Logger) (transport.Transport, error) {
		headless = transport.NewHeadlessTransport(src, o.SampleRate, o.BufferSize, logger)
		headless.SetVolume(o.Volume)
		return headless, nil
	}

	app, err := New(cfg, slog.Default(), append([]Option{WithTransportFactory(factory)}, opts...)...)
	require.NoError(t, err)
	require.NotNil(t, headless)
	return app, headless
}

func transact(h *protocol.Handler, data ...byte) protocol.Reply {
	h.OnReceive(data)
	return protocol.Reply(h.OnRequest())
}

func TestApp_EndToEnd(t *testing.T) {
	app, headless := newTestApp(t, nil)
	p := app.Protocol()

	assert.Equal(t, protocol.ReplyDisconnected, transact(p, byte(protocol.CommandQueryConnection)))
	assert.Equal(t, 80, app.Transport().Volume())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, app.Connected, time.Second, 5*time.Millisecond)
	assert.Equal(t, protocol.ReplyConnected, transact(p, byte(protocol.CommandQueryConnection)))

	assert.Equal(t, protocol.ReplySuccess, transact(p, protocol.PlaySound(50, mixer.BitLaneLeft)...))

	bank := app.bank
	require.Eventually(t, func() bool {
		src, err := app.Mixer().Assigned(context.Background(), mixer.CategoryLaneLeft)
		return err == nil && src == bank.LaneLeft
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 50, app.Transport().Volume())

	for _, c := range []mixer.Category{mixer.CategoryLaneMiddle, mixer.CategoryLaneRight} {
		src, err := app.Mixer().Assigned(context.Background(), c)
		require.NoError(t, err)
		assert.Same(t, bank.LaneLeft, src, "lanes share one slot")
	}

	assert.Equal(t, protocol.ReplySuccess, transact(p, protocol.PlaySound(60, 0x00)...))
	require.Eventually(t, func() bool {
		src, err := app.Mixer().Assigned(context.Background(), mixer.CategoryLaneLeft)
		return err == nil && src == nil
	}, time.Second, 5*time.Millisecond)

	headless.SetConnected(false)
	assert.False(t, app.Connected())
	assert.Equal(t, protocol.ReplyDisconnected, transact(p, byte(protocol.CommandQueryConnection)))
	assert.Equal(t, protocol.ReplyErrorDisconnected, transact(p, protocol.PlaySound(50, mixer.BitEdgeTop)...))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, transport.ConnectionDisconnected, app.Transport().ConnectionState())
}

func TestApp_StaleEventIgnored(t *testing.T) {
	app, _ := newTestApp(t, nil)
	require.False(t, app.Connected())

	ev, err := event.New(event.KindPlaySound, byte(protocol.CommandPlaySound), 10, mixer.BitLostConnection)
	require.NoError(t, err)
	app.Dispatcher().Dispatch(context.Background(), ev)

	assert.Equal(t, 80, app.Transport().Volume())
	src, err := app.Mixer().Assigned(context.Background(), mixer.CategoryError)
	require.NoError(t, err)
	assert.Nil(t, src)
	assert.Equal(t, uint64(1), app.Dispatcher().Stats().Processed)
}

func TestApp_AppliesWhileConnected(t *testing.T) {
	app, _ := newTestApp(t, nil)
	app.OnConnectionStateChanged(transport.ConnectionConnected)

	ev, err := event.New(event.KindPlaySound, byte(protocol.CommandPlaySound), 25, mixer.BitEdgeBottom|mixer.BitLostConnection)
	require.NoError(t, err)
	app.Dispatcher().Dispatch(context.Background(), ev)

	assert.Equal(t, 25, app.Transport().Volume())
	edge, err := app.Mixer().Assigned(context.Background(), mixer.CategoryEdgePool)
	require.NoError(t, err)
	assert.Same(t, app.bank.EdgePool, edge)
	errSrc, err := app.Mixer().Assigned(context.Background(), mixer.CategoryError)
	require.NoError(t, err)
	assert.Same(t, app.bank.Error, errSrc)
}

func TestApp_ConnectionStates(t *testing.T) {
	app, _ := newTestApp(t, nil)
	pub := &recordingPublisher{}
	app.SetPublisher(pub)

	app.OnConnectionStateChanged(transport.ConnectionConnecting)
	assert.False(t, app.Connected())
	assert.False(t, app.Protocol().Connected())

	app.OnConnectionStateChanged(transport.ConnectionConnected)
	assert.True(t, app.Connected())
	assert.True(t, app.Protocol().Connected())

	app.OnConnectionStateChanged(transport.ConnectionDisconnecting)
	assert.True(t, app.Connected(), "disconnecting keeps the flag")

	app.OnConnectionStateChanged(transport.ConnectionConnected)
	app.OnConnectionStateChanged(transport.ConnectionDisconnected)
	assert.False(t, app.Connected())
	assert.False(t, app.Protocol().Connected())

	assert.Equal(t, []bool{true, false}, pub.Events())

	app.OnAudioStateChanged(transport.AudioRemoteSuspend)
	assert.False(t, app.Connected())
}

func TestApp_ApplyConfig(t *testing.T) {
	var mu sync.Mutex
	var keys []string
	alerter := NewAlerter(nil)
	alerter.SetMinInterval(0)
	alerter.SetHandler(func(a Alert) {
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, a.Key)
	})

	lv := new(slog.LevelVar)
	app, _ := newTestApp(t, nil, WithLevelVar(lv), WithAlerter(alerter))

	next := headlessConfig()
	next.Log.Level = "debug"
	next.Audio.DefaultVolume = 30
	app.ApplyConfig(next)

	assert.Equal(t, slog.LevelDebug, lv.Level())
	assert.Equal(t, 30, app.Transport().Volume())
	assert.Same(t, next, app.Config())

	restart := headlessConfig()
	restart.Log.Level = "debug"
	restart.Audio.DefaultVolume = 30
	restart.Queue.Size = 16
	app.ApplyConfig(restart)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"config-reload", "config-restart", "config-reload"}, keys)
}

func TestApp_Status(t *testing.T) {
	app, _ := newTestApp(t, nil)
	app.OnConnectionStateChanged(transport.ConnectionConnected)

	transact(app.Protocol(), byte(protocol.CommandQueryConnection))
	transact(app.Protocol(), protocol.PlaySound(40, mixer.BitLaneRight)...)

	st := app.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, uint32(transport.ConnectionConnected), st.State)
	assert.Equal(t, uint64(2), st.Commands)
	assert.Equal(t, uint64(2), st.Replies)
	assert.Equal(t, uint64(0), st.Dropped)
	assert.GreaterOrEqual(t, st.Uptime, time.Duration(0))
}

func TestNew_Errors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := headlessConfig()
		cfg.Queue.Size = 0
		_, err := New(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("transport factory fails", func(t *testing.T) {
		boom := errors.New("no device")
		_, err := New(headlessConfig(), nil, WithTransportFactory(
			func(transport.Options, transport.FrameSource, *slog.Logger) (transport.Transport, error) {
				return nil, boom
			}))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("custom bank", func(t *testing.T) {
		bank, err := sound.NewBank(config.DefaultDaemonConfig().Audio.SampleRate)
		require.NoError(t, err)
		app, _ := newTestApp(t, nil, WithBank(bank))
		assert.Same(t, bank, app.bank)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		app, err := New(nil, nil, WithTransportFactory(
			func(o transport.Options, src transport.FrameSource, logger *slog.Logger) (transport.Transport, error) {
				return transport.NewHeadlessTransport(src, o.SampleRate, o.BufferSize, logger), nil
			}))
		require.NoError(t, err)
		assert.Equal(t, event.DefaultQueueSize, app.Queue().Cap())
	})
}

func TestTransportOptions(t *testing.T) {
	cfg := config.DefaultDaemonConfig()
	cfg.Audio.Backend = config.BackendHeadless
	cfg.Audio.SampleRate = 8000
	cfg.Audio.BufferSize = config.Duration(20 * time.Millisecond)
	cfg.Audio.DefaultVolume = 60
	cfg.Audio.RecordPath = "/tmp/capture.wav"

	opts := transportOptions(cfg)
	assert.Equal(t, transport.BackendHeadless, opts.Backend)
	assert.Equal(t, 8000, opts.SampleRate)
	assert.Equal(t, 20*time.Millisecond, opts.BufferSize)
	assert.Equal(t, 60, opts.Volume)
	assert.Equal(t, "/tmp/capture.wav", opts.RecordPath)
}

func TestConfigBackendsMatchTransport(t *testing.T) {
	assert.Equal(t, transport.Backends(), config.AudioBackends())
}

func TestStatusStateNamesMatchTransport(t *testing.T) {
	for _, s := range []transport.ConnectionState{
		transport.ConnectionDisconnected,
		transport.ConnectionConnecting,
		transport.ConnectionConnected,
		transport.ConnectionDisconnecting,
	} {
		assert.Equal(t, s.String(), dbus.ConnectionStateName(uint32(s)))
	}
}
