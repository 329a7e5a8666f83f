package mixer

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/lanechime/internal/sound"
)

// testTimeline has 10 frames per window and 5 windows (50 frames).
func testTimeline() Timeline {
	return Timeline{
		SampleRate:     1000,
		SlotDuration:   10 * time.Millisecond,
		BufferDuration: 50 * time.Millisecond,
	}
}

// ramp returns a looping source whose sample i is base+i.
func ramp(name string, base int8, n int) *sound.Source {
	data := make([]int8, n)
	for i := range data {
		data[i] = base + int8(i)
	}
	return sound.NewSource(name, data, true)
}

func testBank() *sound.Bank {
	return &sound.Bank{
		EdgePool:   ramp(sound.NameEdgePool, 10, 7),
		LaneLeft:   ramp(sound.NameLaneLeft, 20, 7),
		LaneMiddle: ramp(sound.NameLaneMiddle, 30, 7),
		LaneRight:  ramp(sound.NameLaneRight, 40, 7),
		Error:      ramp(sound.NameError, 50, 7),
	}
}

func newTestMixer(t *testing.T) *Mixer {
	t.Helper()
	m, err := New(testTimeline(), DefaultLayout(), testBank(), nil)
	require.NoError(t, err)
	return m
}

// frameAt decodes frame i of a PullFrames output buffer.
func frameAt(buf []byte, i int) sound.Frame {
	off := i * BytesPerFrame
	return sound.Frame{
		Left:  int16(binary.LittleEndian.Uint16(buf[off:])),
		Right: int16(binary.LittleEndian.Uint16(buf[off+2:])),
	}
}

// expectedFrame is what a source contributes at position pos within a window.
func expectedFrame(src *sound.Source, pos int) sound.Frame {
	if src == nil {
		return sound.Silence
	}
	f, _ := src.Frame(pos)
	return f
}
