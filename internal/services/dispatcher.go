package services

import (
	"context"
	"sync"

	"ticket-ledger/logger"
	"ticket-ledger/models"
)

// Sink consumes committed domain events in sequence order.
type Sink interface {
	Name() string
	Publish(ctx context.Context, env models.Envelope) error
}

// Dispatcher fans committed envelopes out to sinks on a single worker, so
// every sink observes the log order. A failing sink is logged and skipped.
//
// Enqueueing never blocks: envelopes wait in an unbounded backlog and a
// warning is logged each time it grows past the high-water mark. Envelopes
// arriving after Close are dropped.
type Dispatcher struct {
	sinks     []Sink
	highWater int

	mu      sync.Mutex
	pending []models.Envelope
	closed  bool
	warned  bool
	dropped uint64

	wake    chan struct{}
	done    chan struct{}
	started bool
	once    sync.Once
}

func NewDispatcher(highWater int, sinks ...Sink) *Dispatcher {
	if highWater <= 0 {
		highWater = 1
	}
	return &Dispatcher{
		sinks:     sinks,
		highWater: highWater,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.started = true
	go d.run(ctx)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		batch, ok := d.next()
		if !ok {
			return
		}
		for _, env := range batch {
			for _, s := range d.sinks {
				if err := s.Publish(ctx, env); err != nil {
					logger.Errorf(ctx, "sink %s failed on seq %d (%s): %v", s.Name(), env.Seq, env.Topic, err)
				}
			}
		}
	}
}

// next takes the whole backlog, waiting for more until Close.
func (d *Dispatcher) next() ([]models.Envelope, bool) {
	for {
		d.mu.Lock()
		if len(d.pending) > 0 {
			batch := d.pending
			d.pending = nil
			d.warned = false
			d.mu.Unlock()
			return batch, true
		}
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return nil, false
		}
		<-d.wake
	}
}

func (d *Dispatcher) enqueue(envs []models.Envelope) {
	if len(envs) == 0 {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.dropped += uint64(len(envs))
		d.mu.Unlock()
		logger.Warnf(context.Background(), "dispatcher closed, dropped seq %d..%d", envs[0].Seq, envs[len(envs)-1].Seq)
		return
	}
	d.pending = append(d.pending, envs...)
	backlog := len(d.pending)
	warn := backlog > d.highWater && !d.warned
	if warn {
		d.warned = true
	}
	d.mu.Unlock()

	if warn {
		logger.Warnf(context.Background(), "dispatcher backlog at %d envelopes (high water %d)", backlog, d.highWater)
	}
	d.signal()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Backlog reports envelopes accepted but not yet handed to the sinks.
func (d *Dispatcher) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Dropped counts envelopes refused after Close.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close stops accepting envelopes and waits until the backlog drains.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		d.signal()
		if d.started {
			<-d.done
		}
	})
}
