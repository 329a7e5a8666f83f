package transport

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// SpeakerTransport plays the stream through the beep speaker with a volume
// effect in front of it.
type SpeakerTransport struct {
	Notifier

	mu         sync.Mutex
	logger     *slog.Logger
	reader     *FrameReader
	sampleRate beep.SampleRate
	bufferSize time.Duration

	volume  int
	effect  *effects.Volume
	running bool
}

// NewSpeakerTransport creates a beep speaker transport.
func NewSpeakerTransport(src FrameSource, sampleRate int, bufferSize time.Duration, logger *slog.Logger) *SpeakerTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeakerTransport{
		logger:     logger,
		reader:     NewFrameReader(src),
		sampleRate: beep.SampleRate(sampleRate),
		bufferSize: bufferSize,
		volume:     100,
	}
}

// Name implements Transport.
func (t *SpeakerTransport) Name() string { return BackendBeep }

// Reader implements Transport.
func (t *SpeakerTransport) Reader() *FrameReader { return t.reader }

// Start initializes the speaker and starts streaming.
func (t *SpeakerTransport) Start(_ context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	t.setConnection(ConnectionConnecting)

	if err := speaker.Init(t.sampleRate, t.sampleRate.N(t.bufferSize)); err != nil {
		t.setConnection(ConnectionDisconnected)
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	t.mu.Lock()
	t.effect = &effects.Volume{
		Streamer: newPCMStreamer(t.reader),
		Base:     2,
	}
	applyVolume(t.effect, t.volume)
	t.running = true
	effect := t.effect
	t.mu.Unlock()

	speaker.Play(effect)

	t.logger.Info("speaker initialized", "sample_rate", t.sampleRate, "buffer", t.bufferSize)
	t.setConnection(ConnectionConnected)
	t.setAudio(AudioStarted)
	return nil
}

// Stop clears and closes the speaker.
func (t *SpeakerTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	t.effect = nil
	t.mu.Unlock()

	t.setConnection(ConnectionDisconnecting)
	t.setAudio(AudioStopped)

	speaker.Clear()
	speaker.Close()

	t.setConnection(ConnectionDisconnected)
	t.logger.Debug("speaker closed", "frames", t.reader.Frames())
	return nil
}

// SetVolume implements Transport.
func (t *SpeakerTransport) SetVolume(volume int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = clampVolume(volume)
	if t.effect == nil {
		return
	}
	speaker.Lock()
	applyVolume(t.effect, t.volume)
	speaker.Unlock()
}

// Volume implements Transport.
func (t *SpeakerTransport) Volume() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

// applyVolume maps a 0-100 volume onto a base-2 effects.Volume.
func applyVolume(v *effects.Volume, volume int) {
	v.Silent = volume <= 0
	if v.Silent {
		v.Volume = 0
		return
	}
	v.Volume = math.Log2(float64(volume) / 100)
}

// pcmStreamer converts the FrameReader's int16 PCM into beep samples.
type pcmStreamer struct {
	reader *FrameReader
	buf    []byte
}

func newPCMStreamer(r *FrameReader) *pcmStreamer {
	return &pcmStreamer{reader: r}
}

// Stream implements beep.Streamer. The stream never ends.
func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	size := len(samples) * bytesPerFrame
	if cap(s.buf) < size {
		s.buf = make([]byte, size)
	}
	buf := s.buf[:size]

	n, err := s.reader.Read(buf)
	if err != nil {
		return 0, true
	}
	for i := 0; i < n/bytesPerFrame; i++ {
		f := decodeFrame(buf[i*bytesPerFrame:])
		samples[i][0] = float64(f[0]) / 32768
		samples[i][1] = float64(f[1]) / 32768
	}
	return n / bytesPerFrame, true
}

// Err implements beep.Streamer.
func (s *pcmStreamer) Err() error {
	return nil
}

func decodeFrame(b []byte) [2]int16 {
	return [2]int16{
		int16(uint16(b[0]) | uint16(b[1])<<8),
		int16(uint16(b[2]) | uint16(b[3])<<8),
	}
}
