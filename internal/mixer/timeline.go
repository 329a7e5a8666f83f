// Package mixer implements the slotted sound buffer that feeds the audio
// transport.
//
// The output is a circular timeline of TotalFrames stereo frames divided into
// TotalSlots equal time windows. Each window resolves, through a window map, to
// a key in the SlotTable; whatever source is assigned to that key is played for
// the window's duration, and silence is played otherwise.
//
//	+------+------+------+------+------+
//	| win0 | win1 | win2 | win3 | win4 |
//	| 0.1s | 0.1s | 0.1s | 0.1s | 0.1s |
//	+------+------+------+------+------+
//	|<------------- 0.5s ------------->|
package mixer

import (
	"fmt"
	"time"
)

// Default timeline parameters.
const (
	DefaultSampleRate     = 44100
	DefaultSlotDuration   = 100 * time.Millisecond
	DefaultBufferDuration = 500 * time.Millisecond

	// BytesPerFrame is two channels of signed 16-bit PCM.
	BytesPerFrame = 4
)

// Timeline describes the circular output buffer.
type Timeline struct {
	SampleRate     int
	SlotDuration   time.Duration
	BufferDuration time.Duration
}

// DefaultTimeline returns the 44.1kHz, 5 x 100ms timeline.
func DefaultTimeline() Timeline {
	return Timeline{
		SampleRate:     DefaultSampleRate,
		SlotDuration:   DefaultSlotDuration,
		BufferDuration: DefaultBufferDuration,
	}
}

// Validate checks that the timeline divides into whole windows.
func (t Timeline) Validate() error {
	if t.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", t.SampleRate)
	}
	if t.SlotDuration <= 0 {
		return fmt.Errorf("slot duration must be positive, got %s", t.SlotDuration)
	}
	if t.BufferDuration < t.SlotDuration {
		return fmt.Errorf("buffer duration %s shorter than slot duration %s", t.BufferDuration, t.SlotDuration)
	}
	if t.BufferDuration%t.SlotDuration != 0 {
		return fmt.Errorf("buffer duration %s is not a multiple of slot duration %s", t.BufferDuration, t.SlotDuration)
	}
	if t.FramesPerSlot() <= 0 {
		return fmt.Errorf("slot duration %s holds no frames at %d Hz", t.SlotDuration, t.SampleRate)
	}
	if t.FramesPerSlot()*t.TotalSlots() != t.TotalFrames() {
		return fmt.Errorf("slot duration %s is not a whole number of frames at %d Hz", t.SlotDuration, t.SampleRate)
	}
	return nil
}

// FramesPerSlot is the number of frames in one time window.
func (t Timeline) FramesPerSlot() int {
	return int(int64(t.SampleRate) * int64(t.SlotDuration) / int64(time.Second))
}

// TotalSlots is the number of time windows in the buffer.
func (t Timeline) TotalSlots() int {
	return int(t.BufferDuration / t.SlotDuration)
}

// TotalFrames is the period of the timeline in frames.
func (t Timeline) TotalFrames() int {
	return int(int64(t.SampleRate) * int64(t.BufferDuration) / int64(time.Second))
}

// Window returns the time window a frame falls in.
func (t Timeline) Window(frame int) int {
	return (frame / t.FramesPerSlot()) % t.TotalSlots()
}
