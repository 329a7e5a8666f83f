package mixer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/lanechime/internal/sound"
)

// Slot table errors.
var (
	ErrSlotOutOfRange = errors.New("slot key out of range")
	ErrLockTimeout    = errors.New("slot table lock not acquired")
)

// SlotTable is a fixed array of sound slots guarded by a single lock.
//
// Every operation takes the lock for the duration of one O(1) read or write.
// A context without a deadline waits indefinitely; a context with a deadline
// gives a bounded wait that fails with ErrLockTimeout.
type SlotTable struct {
	// lock holds one token; receiving it acquires the table.
	lock  chan struct{}
	slots []*sound.Source
}

// NewSlotTable creates a table with n empty slots.
func NewSlotTable(n int) *SlotTable {
	t := &SlotTable{
		lock:  make(chan struct{}, 1),
		slots: make([]*sound.Source, n),
	}
	t.lock <- struct{}{}
	return t
}

// Len returns the number of slots.
func (t *SlotTable) Len() int {
	return len(t.slots)
}

func (t *SlotTable) acquire(ctx context.Context) error {
	// Prefer the token when it is free even if ctx is already done.
	select {
	case <-t.lock:
		return nil
	default:
	}
	select {
	case <-t.lock:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
	}
}

func (t *SlotTable) release() {
	t.lock <- struct{}{}
}

func (t *SlotTable) check(key int) error {
	if key < 0 || key >= len(t.slots) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrSlotOutOfRange, key, len(t.slots))
	}
	return nil
}

// Get returns the source assigned to key, or nil.
func (t *SlotTable) Get(ctx context.Context, key int) (*sound.Source, error) {
	if err := t.check(key); err != nil {
		return nil, err
	}
	if err := t.acquire(ctx); err != nil {
		return nil, err
	}
	defer t.release()
	return t.slots[key], nil
}

// Set replaces the assignment of key. A nil source clears the slot.
func (t *SlotTable) Set(ctx context.Context, key int, src *sound.Source) error {
	if err := t.check(key); err != nil {
		return err
	}
	if err := t.acquire(ctx); err != nil {
		return err
	}
	defer t.release()
	t.slots[key] = src
	return nil
}

// ClearAll unassigns every slot.
func (t *SlotTable) ClearAll(ctx context.Context) error {
	if err := t.acquire(ctx); err != nil {
		return err
	}
	defer t.release()
	for i := range t.slots {
		t.slots[i] = nil
	}
	return nil
}

// Snapshot returns a copy of all assignments.
func (t *SlotTable) Snapshot(ctx context.Context) ([]*sound.Source, error) {
	if err := t.acquire(ctx); err != nil {
		return nil, err
	}
	defer t.release()
	out := make([]*sound.Source, len(t.slots))
	copy(out, t.slots)
	return out, nil
}
