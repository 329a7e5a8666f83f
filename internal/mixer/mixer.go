package mixer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/lanechime/internal/sound"
)

// ErrSampleExhausted is returned when a non-looping source runs out inside a
// window. Index math keeps this unreachable for the canned looping sources.
var ErrSampleExhausted = errors.New("sample index past end of non-looping source")

// Mixer renders the slotted timeline into stereo PCM.
type Mixer struct {
	logger   *slog.Logger
	timeline Timeline
	layout   Layout
	slots    *SlotTable
	bank     *sound.Bank

	framesPerSlot int
	totalFrames   int
}

// New creates a mixer over a fresh SlotTable sized to the timeline.
func New(timeline Timeline, layout Layout, bank *sound.Bank, logger *slog.Logger) (*Mixer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bank == nil {
		return nil, errors.New("sound bank is required")
	}
	if err := timeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timeline: %w", err)
	}
	if err := layout.Validate(timeline.TotalSlots()); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	return &Mixer{
		logger:        logger,
		timeline:      timeline,
		layout:        layout,
		slots:         NewSlotTable(timeline.TotalSlots()),
		bank:          bank,
		framesPerSlot: timeline.FramesPerSlot(),
		totalFrames:   timeline.TotalFrames(),
	}, nil
}

// Slots returns the underlying slot table.
func (m *Mixer) Slots() *SlotTable {
	return m.slots
}

// Timeline returns the mixer's timeline.
func (m *Mixer) Timeline() Timeline {
	return m.timeline
}

// Layout returns the category and window mapping.
func (m *Mixer) Layout() Layout {
	return m.layout
}

// TotalFrames is the timeline period in frames.
func (m *Mixer) TotalFrames() int {
	return m.totalFrames
}

// PullFrames writes up to count frames starting at frame position start and
// returns the number of bytes written (frames x BytesPerFrame).
//
// The timeline is circular with period TotalFrames. Nothing is written when
// count <= 0 or start is outside [0, TotalFrames). count is clamped to what
// fits in out. Each window takes the slot table lock once, for its lookup only.
func (m *Mixer) PullFrames(start, count int, out []byte) int {
	if count <= 0 || start < 0 || start >= m.totalFrames {
		return 0
	}
	if limit := len(out) / BytesPerFrame; count > limit {
		count = limit
	}

	frame := start
	written := 0
	for written < count {
		window := m.timeline.Window(frame)
		pos := frame % m.framesPerSlot

		n, err := m.readWindow(window, pos, count-written, out[written*BytesPerFrame:])
		written += n
		if err != nil {
			m.logger.Error("aborting frame batch",
				"window", window,
				"position", pos,
				"frames", written,
				"error", err,
			)
			break
		}
		frame = (frame + n) % m.totalFrames
	}
	return written * BytesPerFrame
}

// readWindow copies frames of one window, from pos up to the window end or
// length frames, whichever comes first.
func (m *Mixer) readWindow(window, pos, length int, out []byte) (int, error) {
	src, err := m.slots.Get(context.Background(), m.layout.SlotForWindow(window))
	if err != nil {
		return 0, err
	}

	n := min(length, m.framesPerSlot-pos)
	for i := 0; i < n; i++ {
		frame := sound.Silence
		if src != nil {
			var ok bool
			frame, ok = src.Frame(pos + i)
			if !ok {
				return i, fmt.Errorf("%w: %s at %d", ErrSampleExhausted, src.Name(), pos+i)
			}
		}
		putFrame(out[i*BytesPerFrame:], frame)
	}
	return n, nil
}

func putFrame(b []byte, f sound.Frame) {
	binary.LittleEndian.PutUint16(b[0:], uint16(f.Left))
	binary.LittleEndian.PutUint16(b[2:], uint16(f.Right))
}

// ApplySelection updates the slot table from a selector byte.
//
// A zero byte clears every slot. Otherwise the edge flags select the edge
// source, one lane source is chosen by priority middle > left > right, and the
// lost-connection flag selects the error source. Slots not named by the byte
// keep their assignment. The first lock failure aborts the update.
func (m *Mixer) ApplySelection(ctx context.Context, signal byte) error {
	sel := DecodeSelection(signal)
	if sel.Silence {
		m.logger.Debug("selection cleared all slots")
		return m.slots.ClearAll(ctx)
	}

	if sel.Edge() {
		if err := m.assign(ctx, CategoryEdgePool); err != nil {
			return err
		}
	}
	if lane, ok := sel.Lane(); ok {
		if err := m.assign(ctx, lane); err != nil {
			return err
		}
	}
	if sel.LostConnection {
		if err := m.assign(ctx, CategoryError); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mixer) assign(ctx context.Context, c Category) error {
	key := m.layout.SlotFor(c)
	src := m.sourceFor(c)
	if err := m.slots.Set(ctx, key, src); err != nil {
		return fmt.Errorf("failed to assign %s to slot %d: %w", c, key, err)
	}
	m.logger.Debug("slot assigned", "category", c.String(), "slot", key, "sound", src.Name())
	return nil
}

// Assigned returns the source currently held by the category's slot. Aliased
// categories report the same source.
func (m *Mixer) Assigned(ctx context.Context, c Category) (*sound.Source, error) {
	return m.slots.Get(ctx, m.layout.SlotFor(c))
}

// sourceFor returns the canned source of a category.
func (m *Mixer) sourceFor(c Category) *sound.Source {
	switch c {
	case CategoryEdgePool:
		return m.bank.EdgePool
	case CategoryLaneLeft:
		return m.bank.LaneLeft
	case CategoryLaneMiddle:
		return m.bank.LaneMiddle
	case CategoryLaneRight:
		return m.bank.LaneRight
	case CategoryError:
		return m.bank.Error
	default:
		return nil
	}
}
