package mixer

import "strings"

// Selector bits of the PlaySound sound byte.
const (
	BitEdgeTop        byte = 1 << 0
	BitEdgeBottom     byte = 1 << 1
	BitLaneLeft       byte = 1 << 2
	BitLaneMiddle     byte = 1 << 3
	BitLaneRight      byte = 1 << 4
	BitLostConnection byte = 1 << 5
)

// Selection is the decoded form of a selector byte.
type Selection struct {
	EdgeTop        bool
	EdgeBottom     bool
	LaneLeft       bool
	LaneMiddle     bool
	LaneRight      bool
	LostConnection bool

	// Silence is set for the all-zero byte.
	Silence bool
}

// DecodeSelection masks each flag out of a selector byte.
// Bits 6 and 7 are ignored.
func DecodeSelection(b byte) Selection {
	return Selection{
		EdgeTop:        b&BitEdgeTop != 0,
		EdgeBottom:     b&BitEdgeBottom != 0,
		LaneLeft:       b&BitLaneLeft != 0,
		LaneMiddle:     b&BitLaneMiddle != 0,
		LaneRight:      b&BitLaneRight != 0,
		LostConnection: b&BitLostConnection != 0,
		Silence:        b == 0,
	}
}

// Encode packs the selection back into a selector byte.
func (s Selection) Encode() byte {
	var b byte
	if s.EdgeTop {
		b |= BitEdgeTop
	}
	if s.EdgeBottom {
		b |= BitEdgeBottom
	}
	if s.LaneLeft {
		b |= BitLaneLeft
	}
	if s.LaneMiddle {
		b |= BitLaneMiddle
	}
	if s.LaneRight {
		b |= BitLaneRight
	}
	if s.LostConnection {
		b |= BitLostConnection
	}
	return b
}

// Edge reports whether either edge flag is set.
func (s Selection) Edge() bool {
	return s.EdgeTop || s.EdgeBottom
}

// Lane returns the single lane to play, with priority middle > left > right.
func (s Selection) Lane() (Category, bool) {
	switch {
	case s.LaneMiddle:
		return CategoryLaneMiddle, true
	case s.LaneLeft:
		return CategoryLaneLeft, true
	case s.LaneRight:
		return CategoryLaneRight, true
	default:
		return 0, false
	}
}

// String lists the set flags.
func (s Selection) String() string {
	if s.Silence {
		return "silence"
	}
	var parts []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{s.EdgeTop, "edge-top"},
		{s.EdgeBottom, "edge-bottom"},
		{s.LaneLeft, "lane-left"},
		{s.LaneMiddle, "lane-middle"},
		{s.LaneRight, "lane-right"},
		{s.LostConnection, "lost-connection"},
	} {
		if f.set {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
