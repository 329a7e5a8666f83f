package mixer

import "fmt"

// Category is a semantic sound slot.
type Category int

const (
	CategoryEdgePool Category = iota
	CategoryLaneLeft
	CategoryLaneMiddle
	CategoryLaneRight
	CategoryError
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryEdgePool:
		return "edge-pool"
	case CategoryLaneLeft:
		return "lane-left"
	case CategoryLaneMiddle:
		return "lane-middle"
	case CategoryLaneRight:
		return "lane-right"
	case CategoryError:
		return "error"
	default:
		return "unknown"
	}
}

// Categories lists every category in key order.
func Categories() []Category {
	return []Category{CategoryEdgePool, CategoryLaneLeft, CategoryLaneMiddle, CategoryLaneRight, CategoryError}
}

// Layout maps categories and time windows onto SlotTable keys.
//
// The mapping is many-to-one: the three lane categories share one physical
// slot so that only one lane sound plays at a time, and several windows may
// resolve to the same slot.
type Layout struct {
	// Slots maps each category to a slot key.
	Slots map[Category]int
	// Windows maps window index to slot key. Nil means identity.
	Windows []int
}

// DefaultLayout returns edge/pool on slot 1, all lanes on slot 2 and error on
// slot 3, with windows mapped one-to-one onto slots.
func DefaultLayout() Layout {
	return Layout{
		Slots: map[Category]int{
			CategoryEdgePool:   1,
			CategoryLaneLeft:   2,
			CategoryLaneMiddle: 2,
			CategoryLaneRight:  2,
			CategoryError:      3,
		},
	}
}

// Validate checks every key against the number of slots.
func (l Layout) Validate(totalSlots int) error {
	for _, c := range Categories() {
		key, ok := l.Slots[c]
		if !ok {
			return fmt.Errorf("no slot for category %s", c)
		}
		if key < 0 || key >= totalSlots {
			return fmt.Errorf("slot %d for category %s out of range [0,%d)", key, c, totalSlots)
		}
	}
	if l.Windows != nil && len(l.Windows) != totalSlots {
		return fmt.Errorf("window map has %d entries, want %d", len(l.Windows), totalSlots)
	}
	for w, key := range l.Windows {
		if key < 0 || key >= totalSlots {
			return fmt.Errorf("window %d maps to slot %d, out of range [0,%d)", w, key, totalSlots)
		}
	}
	return nil
}

// SlotFor returns the slot key of a category.
func (l Layout) SlotFor(c Category) int {
	return l.Slots[c]
}

// SlotForWindow returns the slot key a time window plays.
func (l Layout) SlotForWindow(window int) int {
	if l.Windows == nil {
		return window
	}
	return l.Windows[window]
}
