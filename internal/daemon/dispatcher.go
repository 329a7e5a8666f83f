package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/lanechime/internal/event"
)

// HandlerFunc processes one drained event.
type HandlerFunc func(ctx context.Context, ev event.Event) error

// Dispatcher drains the event queue and runs the handler registered for each
// event kind. Events without a handler are logged and ignored. Handler errors
// are logged; the event is not retried.
type Dispatcher struct {
	logger *slog.Logger
	queue  *event.Queue

	mu       sync.RWMutex
	handlers map[event.Kind]HandlerFunc

	processed atomic.Uint64
	failed    atomic.Uint64
	ignored   atomic.Uint64
}

// NewDispatcher creates a dispatcher reading from queue.
func NewDispatcher(queue *event.Queue, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		queue:    queue,
		handlers: make(map[event.Kind]HandlerFunc),
	}
}

// Handle registers fn for kind, replacing any earlier handler.
func (d *Dispatcher) Handle(kind event.Kind, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = fn
}

// Run drains the queue until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Debug("dispatcher started")
	defer d.logger.Debug("dispatcher stopped")

	for {
		ev, err := d.queue.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		d.Dispatch(ctx, ev)
	}
}

// Dispatch runs the handler for a single event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) {
	d.mu.RLock()
	fn, ok := d.handlers[ev.Kind]
	d.mu.RUnlock()

	if !ok {
		d.ignored.Add(1)
		d.logger.Debug("unsupported event",
			"id", ev.ID,
			"kind", ev.Kind.String(),
			"command", ev.Command,
			"param1", ev.Param1,
			"param2", ev.Param2,
		)
		return
	}

	if err := fn(ctx, ev); err != nil {
		d.failed.Add(1)
		d.logger.Warn("event handler failed", "id", ev.ID, "kind", ev.Kind.String(), "error", err)
		return
	}
	d.processed.Add(1)
}

// DispatcherStats counts dispatcher outcomes.
type DispatcherStats struct {
	Processed uint64
	Failed    uint64
	Ignored   uint64
}

// Stats returns the dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
		Ignored:   d.ignored.Load(),
	}
}
