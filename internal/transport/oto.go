package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoTransport plays the stream on the default audio device through oto.
//
// oto allows one context per process; it is created on the first Start and
// suspended, not closed, by Stop.
type OtoTransport struct {
	Notifier

	mu         sync.Mutex
	logger     *slog.Logger
	reader     *FrameReader
	sampleRate int
	bufferSize time.Duration

	ctx    *oto.Context
	ready  <-chan struct{}
	player *oto.Player
	volume int
}

var newOtoContext = oto.NewContext

// NewOtoTransport creates an oto transport. No device is opened until Start.
func NewOtoTransport(src FrameSource, sampleRate int, bufferSize time.Duration, logger *slog.Logger) *OtoTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &OtoTransport{
		logger:     logger,
		reader:     NewFrameReader(src),
		sampleRate: sampleRate,
		bufferSize: bufferSize,
		volume:     100,
	}
}

// Name implements Transport.
func (t *OtoTransport) Name() string { return BackendOto }

// Reader implements Transport.
func (t *OtoTransport) Reader() *FrameReader { return t.reader }

// Start opens the device and starts playback.
func (t *OtoTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.player != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	t.setConnection(ConnectionConnecting)

	if err := t.open(ctx); err != nil {
		t.setConnection(ConnectionDisconnected)
		return err
	}

	t.mu.Lock()
	t.player = t.ctx.NewPlayer(t.reader)
	t.player.SetVolume(float64(t.volume) / 100)
	t.player.Play()
	t.mu.Unlock()

	t.logger.Info("audio device opened", "sample_rate", t.sampleRate, "buffer", t.bufferSize)
	t.setConnection(ConnectionConnected)
	t.setAudio(AudioStarted)
	return nil
}

// open creates or resumes the oto context.
func (t *OtoTransport) open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ctx != nil {
		if err := awaitReady(ctx, t.ready); err != nil {
			return err
		}
		if err := t.ctx.Resume(); err != nil {
			return fmt.Errorf("failed to resume audio context: %w", err)
		}
		return nil
	}

	octx, ready, err := newOtoContext(&oto.NewContextOptions{
		SampleRate:   t.sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   t.bufferSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create audio context: %w", err)
	}
	// Only one context may exist per process; keep it even if ctx ends first so
	// the next Start waits on it again.
	t.ctx = octx
	t.ready = ready

	return awaitReady(ctx, ready)
}

func awaitReady(ctx context.Context, ready <-chan struct{}) error {
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audio context not ready: %w", ctx.Err())
	}
}

// Stop closes the player and suspends the device.
func (t *OtoTransport) Stop() error {
	t.mu.Lock()
	player := t.player
	t.player = nil
	t.mu.Unlock()

	if player == nil {
		return nil
	}

	t.setConnection(ConnectionDisconnecting)
	t.setAudio(AudioStopped)

	var errs []error
	if err := player.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close player: %w", err))
	}
	t.mu.Lock()
	if t.ctx != nil {
		if err := t.ctx.Suspend(); err != nil {
			errs = append(errs, fmt.Errorf("failed to suspend audio context: %w", err))
		}
	}
	t.mu.Unlock()

	t.setConnection(ConnectionDisconnected)
	t.logger.Debug("audio device closed", "frames", t.reader.Frames())

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Suspend pauses playback without closing the device.
func (t *OtoTransport) Suspend() {
	t.mu.Lock()
	player := t.player
	t.mu.Unlock()
	if player == nil {
		return
	}
	player.Pause()
	t.setAudio(AudioRemoteSuspend)
}

// Resume restarts playback after Suspend.
func (t *OtoTransport) Resume() {
	t.mu.Lock()
	player := t.player
	t.mu.Unlock()
	if player == nil {
		return
	}
	player.Play()
	t.setAudio(AudioStarted)
}

// SetVolume implements Transport.
func (t *OtoTransport) SetVolume(volume int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = clampVolume(volume)
	if t.player != nil {
		t.player.SetVolume(float64(t.volume) / 100)
	}
}

// Volume implements Transport.
func (t *OtoTransport) Volume() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}
