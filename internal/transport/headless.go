package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// HeadlessTransport paces frame pulls in real time without an audio device.
// It is used on machines without a sound card and in tests, where Pull drives
// the stream by hand. Pulled frames are optionally written to a WAV file.
type HeadlessTransport struct {
	Notifier

	mu         sync.Mutex
	logger     *slog.Logger
	reader     *FrameReader
	sampleRate int
	period     time.Duration
	volume     int

	recordPath string
	recorder   *WAVRecorder

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHeadlessTransport creates a headless transport that pulls one period of
// frames every period.
func NewHeadlessTransport(src FrameSource, sampleRate int, period time.Duration, logger *slog.Logger) *HeadlessTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeadlessTransport{
		logger:     logger,
		reader:     NewFrameReader(src),
		sampleRate: sampleRate,
		period:     period,
		volume:     100,
	}
}

// RecordTo makes the next Start write every pulled frame to a WAV file.
func (t *HeadlessTransport) RecordTo(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordPath = path
}

// Name implements Transport.
func (t *HeadlessTransport) Name() string { return BackendHeadless }

// Reader implements Transport.
func (t *HeadlessTransport) Reader() *FrameReader { return t.reader }

// Start begins the pull loop. A cancelled ctx stops the loop but not the
// transport; call Stop to release the recorder.
func (t *HeadlessTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	t.setConnection(ConnectionConnecting)

	t.mu.Lock()
	if t.recordPath != "" {
		rec, err := NewWAVRecorder(t.recordPath, t.sampleRate)
		if err != nil {
			t.mu.Unlock()
			t.setConnection(ConnectionDisconnected)
			return err
		}
		t.recorder = rec
	}
	t.running = true
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	t.mu.Unlock()

	go t.pullLoop(ctx)

	t.logger.Debug("headless transport started", "period", t.period, "record", t.recordPath)
	t.setConnection(ConnectionConnected)
	t.setAudio(AudioStarted)
	return nil
}

// Stop ends the pull loop and closes the recorder.
func (t *HeadlessTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	close(t.stopCh)
	doneCh := t.doneCh
	t.mu.Unlock()

	t.setConnection(ConnectionDisconnecting)
	t.setAudio(AudioStopped)

	<-doneCh

	t.mu.Lock()
	rec := t.recorder
	t.recorder = nil
	t.mu.Unlock()

	var err error
	if rec != nil {
		err = rec.Close()
	}

	t.setConnection(ConnectionDisconnected)
	t.logger.Debug("headless transport stopped", "frames", t.reader.Frames())
	return err
}

func (t *HeadlessTransport) pullLoop(ctx context.Context) {
	defer close(t.doneCh)

	if t.period <= 0 {
		return
	}
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	frames := int(int64(t.sampleRate) * int64(t.period) / int64(time.Second))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			if t.AudioState() != AudioStarted {
				continue
			}
			if _, err := t.Pull(frames); err != nil {
				t.logger.Error("headless pull failed", "error", err)
			}
		}
	}
}

// Pull reads frames from the source, records them if recording, and returns
// the PCM bytes.
func (t *HeadlessTransport) Pull(frames int) ([]byte, error) {
	if frames <= 0 {
		return nil, nil
	}
	buf := make([]byte, frames*bytesPerFrame)
	n, err := t.reader.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	buf = buf[:n]

	t.mu.Lock()
	rec := t.recorder
	t.mu.Unlock()
	if rec != nil {
		if err := rec.Write(buf); err != nil {
			return buf, err
		}
	}
	return buf, nil
}

// SetConnected simulates the remote sink connecting or dropping.
func (t *HeadlessTransport) SetConnected(connected bool) {
	if connected {
		t.setConnection(ConnectionConnected)
		return
	}
	t.setConnection(ConnectionDisconnected)
}

// Suspend pauses the pull loop as a remote suspend would.
func (t *HeadlessTransport) Suspend() {
	t.setAudio(AudioRemoteSuspend)
}

// Resume restarts the pull loop after Suspend.
func (t *HeadlessTransport) Resume() {
	t.setAudio(AudioStarted)
}

// SetVolume implements Transport.
func (t *HeadlessTransport) SetVolume(volume int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = clampVolume(volume)
}

// Volume implements Transport.
func (t *HeadlessTransport) Volume() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}
