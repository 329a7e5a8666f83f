package transport

import (
	"io"
	"sync"
	"sync/atomic"
)

// FrameSource produces stereo 16-bit little-endian frames from a circular
// timeline.
type FrameSource interface {
	PullFrames(start, count int, out []byte) int
	TotalFrames() int
}

// FrameReader adapts a FrameSource to io.Reader, keeping the timeline
// position between reads. Reads are always whole frames; a batch the source
// aborted early is padded with silence so the sink never underruns.
type FrameReader struct {
	mu  sync.Mutex
	src FrameSource
	pos int

	frames atomic.Uint64
	short  atomic.Uint64
}

// NewFrameReader creates a reader starting at frame 0.
func NewFrameReader(src FrameSource) *FrameReader {
	return &FrameReader{src: src}
}

// Read fills p with as many whole frames as fit.
func (r *FrameReader) Read(p []byte) (int, error) {
	count := len(p) / bytesPerFrame
	if count == 0 {
		return 0, io.ErrShortBuffer
	}
	size := count * bytesPerFrame

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.src.PullFrames(r.pos, count, p[:size])
	if n < size {
		clear(p[n:size])
		r.short.Add(1)
	}
	if total := r.src.TotalFrames(); total > 0 {
		r.pos = (r.pos + count) % total
	}
	r.frames.Add(uint64(count))
	return size, nil
}

// Position returns the timeline frame the next read starts at.
func (r *FrameReader) Position() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// Frames returns the number of frames delivered.
func (r *FrameReader) Frames() uint64 {
	return r.frames.Load()
}

// ShortReads returns the number of reads the source aborted early.
func (r *FrameReader) ShortReads() uint64 {
	return r.short.Load()
}

const bytesPerFrame = 4
