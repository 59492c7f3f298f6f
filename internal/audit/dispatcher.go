package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls how sign-up, link, OTP and login events are queued.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit count and discard an event instead of waiting for
	// queue space, so a slow sink never delays an authentication attempt.
	DropIfFull bool
}

// Dispatcher hands engine events to a Sink from a single goroutine, in the order
// they were emitted. A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	dropIfFull bool

	stop     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
	drained  sync.WaitGroup
	dropped  atomic.Uint64
}

// NewDispatcher starts the forwarding goroutine. It returns nil when cfg is
// disabled, which turns every Emit into a no-op.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, size),
		dropIfFull: cfg.DropIfFull,
		stop:       make(chan struct{}),
	}
	d.drained.Add(1)
	go d.forward()
	return d
}

func (d *Dispatcher) forward() {
	defer d.drained.Done()
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush forwards whatever was queued before Close.
func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues event, stamping Timestamp and ID when unset. Events emitted after
// Close are discarded.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopped.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = NewEventID(event.Timestamp)
	}

	if d.dropIfFull {
		d.offer(event)
		return
	}
	d.enqueue(ctx, event)
}

func (d *Dispatcher) offer(event Event) {
	select {
	case d.queue <- event:
	case <-d.stop:
	default:
		d.dropped.Add(1)
	}
}

// enqueue waits for space until ctx ends or the dispatcher closes.
func (d *Dispatcher) enqueue(ctx context.Context, event Event) {
	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events and waits for the queue to reach the sink.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.drained.Wait()
	})
}

// Dropped reports events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
