package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVRecorder writes stereo 16-bit PCM to a WAV file.
type WAVRecorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	frames  int
}

// NewWAVRecorder creates the file at path, and its parent directory.
func NewWAVRecorder(path string, sampleRate int) (*WAVRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	return &WAVRecorder{
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, 16, 2, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 2},
			SourceBitDepth: 16,
		},
	}, nil
}

// Write appends interleaved little-endian int16 frames.
func (r *WAVRecorder) Write(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return fmt.Errorf("recorder closed")
	}

	samples := len(pcm) / 2
	if cap(r.buf.Data) < samples {
		r.buf.Data = make([]int, samples)
	}
	r.buf.Data = r.buf.Data[:samples]
	for i := 0; i < samples; i++ {
		r.buf.Data[i] = int(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
	}

	if err := r.encoder.Write(r.buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	r.frames += samples / 2
	return nil
}

// Frames returns the number of frames written.
func (r *WAVRecorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalizes the WAV header and closes the file.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return nil
	}
	encErr := r.encoder.Close()
	fileErr := r.file.Close()
	r.encoder = nil

	if encErr != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close WAV file: %w", fileErr)
	}
	return nil
}
