package sound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_Frame(t *testing.T) {
	src := NewSource("test", []int8{1, -2, 127, -128}, false)

	tests := []struct {
		name   string
		index  int
		expect Frame
		ok     bool
	}{
		{"first", 0, Frame{256, 256}, true},
		{"negative sample", 1, Frame{-512, -512}, true},
		{"max", 2, Frame{32512, 32512}, true},
		{"min", 3, Frame{-32768, -32768}, true},
		{"past end", 4, Silence, false},
		{"negative index", -1, Silence, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, ok := src.Frame(tt.index)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expect, frame)
		})
	}
}

func TestSource_FrameLoops(t *testing.T) {
	src := NewSource("loop", []int8{10, 20, 30}, true)

	for i := 0; i < 10; i++ {
		frame, ok := src.Frame(i)
		assert.True(t, ok)
		expected := upmix([]int8{10, 20, 30}[i%3])
		assert.Equal(t, Frame{expected, expected}, frame, "index %d", i)
	}
}

func TestSource_EmptyNeverSucceeds(t *testing.T) {
	src := NewSource("empty", nil, true)
	frame, ok := src.Frame(0)
	assert.False(t, ok)
	assert.Equal(t, Silence, frame)
	assert.Equal(t, 0, src.Len())
}

func TestSource_Accessors(t *testing.T) {
	src := NewSource("beep", []int8{1, 2}, true)
	assert.Equal(t, "beep", src.Name())
	assert.Equal(t, 2, src.Len())
	assert.True(t, src.Loop())
}
