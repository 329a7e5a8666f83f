package mixer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/lanechime/internal/sound"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(testTimeline(), DefaultLayout(), nil, nil)
	assert.Error(t, err)

	_, err = New(Timeline{}, DefaultLayout(), testBank(), nil)
	assert.Error(t, err)

	_, err = New(testTimeline(), Layout{}, testBank(), nil)
	assert.Error(t, err)

	m, err := New(DefaultTimeline(), DefaultLayout(), testBank(), nil)
	require.NoError(t, err)
	assert.Equal(t, 22050, m.TotalFrames())
	assert.Equal(t, 5, m.Slots().Len())
}

func TestPullFrames_SilenceWhenUnassigned(t *testing.T) {
	m := newTestMixer(t)
	buf := make([]byte, 50*BytesPerFrame)
	for i := range buf {
		buf[i] = 0xAA
	}

	n := m.PullFrames(0, 50, buf)
	assert.Equal(t, 50*BytesPerFrame, n)
	for i := 0; i < 50; i++ {
		assert.Equal(t, sound.Silence, frameAt(buf, i), "frame %d", i)
	}
}

func TestPullFrames_PlaysAssignedWindow(t *testing.T) {
	ctx := context.Background()
	m := newTestMixer(t)
	src := m.bank.LaneLeft
	require.NoError(t, m.Slots().Set(ctx, 2, src))

	buf := make([]byte, 50*BytesPerFrame)
	n := m.PullFrames(0, 50, buf)
	require.Equal(t, 50*BytesPerFrame, n)

	for i := 0; i < 50; i++ {
		want := sound.Silence
		if i >= 20 && i < 30 {
			want = expectedFrame(src, i-20)
		}
		assert.Equal(t, want, frameAt(buf, i), "frame %d", i)
	}
}

func TestPullFrames_SourceIndexedByWindowPosition(t *testing.T) {
	ctx := context.Background()
	m := newTestMixer(t)
	src := m.bank.Error
	require.NoError(t, m.Slots().Set(ctx, 3, src))

	// Start halfway through window 3.
	buf := make([]byte, 3*BytesPerFrame)
	n := m.PullFrames(35, 3, buf)
	require.Equal(t, 3*BytesPerFrame, n)

	for i := 0; i < 3; i++ {
		assert.Equal(t, expectedFrame(src, 5+i), frameAt(buf, i))
	}
}

func TestPullFrames_Wraparound(t *testing.T) {
	ctx := context.Background()
	m := newTestMixer(t)
	first := m.bank.EdgePool
	last := m.bank.Error
	require.NoError(t, m.Slots().Set(ctx, 0, first))
	require.NoError(t, m.Slots().Set(ctx, 4, last))

	buf := make([]byte, 2*BytesPerFrame)
	n := m.PullFrames(m.TotalFrames()-1, 2, buf)
	require.Equal(t, 2*BytesPerFrame, n)

	assert.Equal(t, expectedFrame(last, 9), frameAt(buf, 0))
	assert.Equal(t, expectedFrame(first, 0), frameAt(buf, 1))
}

func TestPullFrames_MoreThanOnePeriod(t *testing.T) {
	ctx := context.Background()
	m := newTestMixer(t)
	require.NoError(t, m.Slots().Set(ctx, 1, m.bank.EdgePool))

	buf := make([]byte, 120*BytesPerFrame)
	n := m.PullFrames(0, 120, buf)
	require.Equal(t, 120*BytesPerFrame, n)

	for i := 0; i < 120; i++ {
		assert.Equal(t, frameAt(buf, i%50), frameAt(buf, i), "frame %d", i)
	}
}

func TestPullFrames_Rejects(t *testing.T) {
	m := newTestMixer(t)
	buf := make([]byte, 10*BytesPerFrame)

	tests := []struct {
		name  string
		start int
		count int
	}{
		{"zero count", 0, 0},
		{"negative count", 0, -5},
		{"start at period", 50, 1},
		{"start past period", 1000, 1},
		{"negative start", -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range buf {
				buf[i] = 0x55
			}
			assert.Equal(t, 0, m.PullFrames(tt.start, tt.count, buf))
			for i := range buf {
				assert.Equal(t, byte(0x55), buf[i])
			}
		})
	}
}

func TestPullFrames_ClampsToBuffer(t *testing.T) {
	m := newTestMixer(t)
	buf := make([]byte, 3*BytesPerFrame+2)
	assert.Equal(t, 3*BytesPerFrame, m.PullFrames(0, 10, buf))
	assert.Equal(t, 0, m.PullFrames(0, 10, make([]byte, 3)))
}

func TestPullFrames_AbortsOnExhaustedSource(t *testing.T) {
	ctx := context.Background()
	m := newTestMixer(t)
	short := sound.NewSource("short", []int8{1, 2, 3}, false)
	require.NoError(t, m.Slots().Set(ctx, 1, short))

	// Window 0 plays silence (10 frames), window 1 fails after 3 frames.
	buf := make([]byte, 30*BytesPerFrame)
	n := m.PullFrames(0, 30, buf)
	assert.Equal(t, 13*BytesPerFrame, n)
	assert.Equal(t, expectedFrame(short, 2), frameAt(buf, 12))
}

func TestPullFrames_WindowMapAliases(t *testing.T) {
	ctx := context.Background()
	layout := DefaultLayout()
	layout.Windows = []int{2, 0, 2, 0, 2}
	m, err := New(testTimeline(), layout, testBank(), nil)
	require.NoError(t, err)

	src := m.bank.LaneRight
	require.NoError(t, m.Slots().Set(ctx, 2, src))

	buf := make([]byte, 50*BytesPerFrame)
	require.Equal(t, 50*BytesPerFrame, m.PullFrames(0, 50, buf))

	for i := 0; i < 50; i++ {
		want := sound.Silence
		if (i/10)%2 == 0 {
			want = expectedFrame(src, i%10)
		}
		assert.Equal(t, want, frameAt(buf, i), "frame %d", i)
	}
}

func TestPullFrames_ReadsTableOncePerWindow(t *testing.T) {
	ctx := context.Background()
	m := newTestMixer(t)
	require.NoError(t, m.Slots().Set(ctx, 0, m.bank.LaneLeft))

	// Swapping the assignment between pulls is visible on the next window read.
	buf := make([]byte, 10*BytesPerFrame)
	m.PullFrames(0, 10, buf)
	assert.Equal(t, expectedFrame(m.bank.LaneLeft, 0), frameAt(buf, 0))

	require.NoError(t, m.Slots().Set(ctx, 0, m.bank.LaneRight))
	m.PullFrames(0, 10, buf)
	assert.Equal(t, expectedFrame(m.bank.LaneRight, 0), frameAt(buf, 0))
}
