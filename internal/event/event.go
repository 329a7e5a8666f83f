// Package event carries decoded bus commands from the bus context to the
// event-drain context.
package event

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies what the drain side should do with an event.
type Kind int

const (
	KindUnknown Kind = iota
	KindPlaySound
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPlaySound:
		return "play-sound"
	default:
		return "unknown"
	}
}

// Event is one queued command with its parameters.
type Event struct {
	// ID is a ULID used to correlate bus and drain log lines.
	ID       string
	Kind     Kind
	Command  byte
	Param1   byte
	Param2   byte
	PostedAt time.Time
}

// New creates an event with a generated ID.
func New(kind Kind, command, param1, param2 byte) (Event, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return Event{}, fmt.Errorf("failed to generate ULID: %w", err)
	}
	return Event{
		ID:       id.String(),
		Kind:     kind,
		Command:  command,
		Param1:   param1,
		Param2:   param2,
		PostedAt: time.Now(),
	}, nil
}

// Age returns how long the event has been queued.
func (e Event) Age() time.Duration {
	return time.Since(e.PostedAt)
}

// Queue is a bounded FIFO with a non-blocking push and a blocking pop.
type Queue struct {
	ch      chan Event
	posted  atomic.Uint64
	dropped atomic.Uint64
}

// DefaultQueueSize is the queue capacity used when none is configured.
const DefaultQueueSize = 128

// NewQueue creates a queue holding up to size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Event, size)}
}

// Post enqueues ev without blocking. It reports false and counts a drop when
// the queue is full.
func (q *Queue) Post(ev Event) bool {
	select {
	case q.ch <- ev:
		q.posted.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Next blocks until an event is available or ctx is done.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Posted returns the number of accepted events.
func (q *Queue) Posted() uint64 {
	return q.posted.Load()
}

// Dropped returns the number of events rejected because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
