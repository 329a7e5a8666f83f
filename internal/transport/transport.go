package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backend names.
const (
	BackendOto      = "oto"
	BackendBeep     = "beep"
	BackendHeadless = "headless"
)

// Backends lists every supported backend name.
func Backends() []string {
	return []string{BackendOto, BackendBeep, BackendHeadless}
}

// Transport is an audio sink fed by a FrameReader.
type Transport interface {
	// Start opens the sink and begins pulling frames.
	Start(ctx context.Context) error
	// Stop stops pulling and closes the sink.
	Stop() error
	// SetVolume sets the output volume, clamped to [0, 100].
	SetVolume(volume int)
	Volume() int
	Name() string

	Subscribe(o Observer)
	ConnectionState() ConnectionState
	AudioState() AudioState

	// Reader returns the reader the transport pulls through.
	Reader() *FrameReader
}

// Options configures a transport.
type Options struct {
	Backend    string
	SampleRate int
	// BufferSize is the device buffer, and the pull period of the headless
	// backend.
	BufferSize time.Duration
	Volume     int
	// RecordPath, when set, makes the headless backend write a WAV file.
	RecordPath string
}

// New creates the transport named by opts.Backend.
func New(opts Options, src FrameSource, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		return nil, fmt.Errorf("frame source is required")
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", opts.SampleRate)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100 * time.Millisecond
	}

	logger = logger.With("transport", opts.Backend)
	var t Transport
	switch opts.Backend {
	case BackendOto:
		t = NewOtoTransport(src, opts.SampleRate, opts.BufferSize, logger)
	case BackendBeep:
		t = NewSpeakerTransport(src, opts.SampleRate, opts.BufferSize, logger)
	case BackendHeadless:
		h := NewHeadlessTransport(src, opts.SampleRate, opts.BufferSize, logger)
		if opts.RecordPath != "" {
			h.RecordTo(opts.RecordPath)
		}
		t = h
	default:
		return nil, fmt.Errorf("unknown audio backend %q", opts.Backend)
	}
	t.SetVolume(opts.Volume)
	return t, nil
}

func clampVolume(v int) int {
	return max(0, min(v, 100))
}
