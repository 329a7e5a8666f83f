package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/lanechime/internal/event"
)

func mustEvent(t *testing.T, kind event.Kind, p1, p2 byte) event.Event {
	t.Helper()
	ev, err := event.New(kind, 0x02, p1, p2)
	require.NoError(t, err)
	return ev
}

func TestDispatcher_Dispatch(t *testing.T) {
	d := NewDispatcher(event.NewQueue(4), nil)

	var got []byte
	d.Handle(event.KindPlaySound, func(_ context.Context, ev event.Event) error {
		got = append(got, ev.Param2)
		return nil
	})

	d.Dispatch(context.Background(), mustEvent(t, event.KindPlaySound, 1, 0x04))
	d.Dispatch(context.Background(), mustEvent(t, event.KindUnknown, 1, 0x08))

	assert.Equal(t, []byte{0x04}, got)
	assert.Equal(t, DispatcherStats{Processed: 1, Ignored: 1}, d.Stats())
}

func TestDispatcher_HandlerError(t *testing.T) {
	d := NewDispatcher(event.NewQueue(4), nil)
	d.Handle(event.KindPlaySound, func(context.Context, event.Event) error {
		return errors.New("lock not acquired")
	})

	d.Dispatch(context.Background(), mustEvent(t, event.KindPlaySound, 1, 1))
	assert.Equal(t, DispatcherStats{Failed: 1}, d.Stats())
}

func TestDispatcher_HandleReplaces(t *testing.T) {
	d := NewDispatcher(event.NewQueue(4), nil)
	calls := ""
	d.Handle(event.KindPlaySound, func(context.Context, event.Event) error { calls += "a"; return nil })
	d.Handle(event.KindPlaySound, func(context.Context, event.Event) error { calls += "b"; return nil })

	d.Dispatch(context.Background(), mustEvent(t, event.KindPlaySound, 0, 0))
	assert.Equal(t, "b", calls)
}

func TestDispatcher_RunDrainsInOrder(t *testing.T) {
	q := event.NewQueue(8)
	d := NewDispatcher(q, nil)

	var mu sync.Mutex
	var got []byte
	d.Handle(event.KindPlaySound, func(_ context.Context, ev event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Param1)
		return nil
	})

	for i := byte(1); i <= 5; i++ {
		require.True(t, q.Post(mustEvent(t, event.KindPlaySound, i, 0)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)
	assert.Equal(t, 0, q.Len())
}
