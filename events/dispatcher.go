// Package events delivers the notifications from the probe to the subscribers.
package events

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/ks888/fetctl/log"
	"github.com/ks888/fetctl/probe"
)

// MaxPending is the number of the events queued per subscriber. The oldest event is dropped when the subscriber lags behind more.
const MaxPending = 1024

// Event is the probe notification numbered in the arrival order.
type Event struct {
	Seq uint64
	probe.Event
}

func (e Event) String() string {
	return fmt.Sprintf("#%d %s", e.Seq, e.Event)
}

// Handler handles the event. The returned error is logged.
type Handler func(ev Event) error

// Dispatcher queues the notifications and delivers them to the subscribers.
// Push may be called from any goroutine and never blocks. Dispatch or Run moves the queued events to
// the subscribers. Each subscriber has its own queue and goroutine, so the slow subscriber delays only itself.
type Dispatcher struct {
	seq       atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	log       log.Entry

	mu          sync.Mutex
	queue       []Event
	subscribers map[int]*subscriber
	lastID      int
	// wake has 1 slot so that Push doesn't block while the consumer is busy.
	wake chan struct{}

	// dispatchMu makes Dispatch single-consumer.
	dispatchMu sync.Mutex
}

// NewDispatcher returns new Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		log:         log.WithLayer("events"),
		subscribers: make(map[int]*subscriber),
		wake:        make(chan struct{}, 1),
	}
}

// Push queues the event.
func (d *Dispatcher) Push(event probe.Event) {
	d.mu.Lock()
	d.queue = append(d.queue, Event{Seq: d.seq.Inc(), Event: event})
	d.mu.Unlock()

	notify(d.wake)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Subscribe registers the handler. The handler receives the events dispatched after this call,
// in the arrival order, on the goroutine dedicated to it. Call the returned function to unsubscribe.
func (d *Dispatcher) Subscribe(handler Handler) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastID++
	id := d.lastID
	s := newSubscriber(handler, d)
	d.subscribers[id] = s
	go s.loop()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if s, ok := d.subscribers[id]; ok {
			delete(d.subscribers, id)
			s.stop()
		}
	}
}

// Close unsubscribes all the handlers. The events not handled yet are discarded.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, s := range d.subscribers {
		delete(d.subscribers, id)
		s.stop()
	}
}

// Pending returns the number of the events not dispatched yet.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Delivered returns the number of the events dispatched so far.
func (d *Dispatcher) Delivered() uint64 {
	return d.delivered.Load()
}

// Dropped returns the number of the events some subscriber missed because it lagged behind.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Dispatch passes the queued events to the subscribers in the arrival order and returns the number of them.
// It doesn't wait for the handlers.
func (d *Dispatcher) Dispatch() int {
	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	d.mu.Lock()
	queue := d.queue
	d.queue = nil
	d.mu.Unlock()

	subscribers := d.snapshot()
	for _, ev := range queue {
		for _, s := range subscribers {
			s.enqueue(ev)
		}
		d.delivered.Inc()
	}
	return len(queue)
}

// Flush waits until the subscribers handle the events dispatched so far, or the context is done.
func (d *Dispatcher) Flush(ctx context.Context) error {
	for _, s := range d.snapshot() {
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// snapshot returns the subscribers in the subscription order.
func (d *Dispatcher) snapshot() []*subscriber {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]int, 0, len(d.subscribers))
	for id := range d.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	subscribers := make([]*subscriber, 0, len(ids))
	for _, id := range ids {
		subscribers = append(subscribers, d.subscribers[id])
	}
	return subscribers
}

func (d *Dispatcher) invoke(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("handler panicked at %v: %v", ev, r)
		}
	}()

	if err := handler(ev); err != nil {
		d.log.Errorf("handler failed at %v: %v", ev, err)
	}
}

// Run dispatches the events until the context is done. The events queued at that time are dispatched before it returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		d.Dispatch()
		select {
		case <-ctx.Done():
			d.Dispatch()
			return ctx.Err()
		case <-d.wake:
		}
	}
}

type subscriber struct {
	handler    Handler
	dispatcher *Dispatcher

	mu      sync.Mutex
	queue   []Event
	queued  uint64
	handled uint64
	// changed is closed and replaced whenever handled increases.
	changed chan struct{}

	wake chan struct{}
	quit chan struct{}
}

func newSubscriber(handler Handler, d *Dispatcher) *subscriber {
	return &subscriber{
		handler:    handler,
		dispatcher: d,
		changed:    make(chan struct{}),
		wake:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
	}
}

func (s *subscriber) enqueue(ev Event) {
	s.mu.Lock()
	if len(s.queue) >= MaxPending {
		dropped := s.queue[0]
		s.queue = s.queue[1:]
		s.markHandled()
		s.dispatcher.dropped.Inc()
		s.dispatcher.log.Warnf("subscriber lags behind, dropped %v", dropped)
	}
	s.queue = append(s.queue, ev)
	s.queued++
	s.mu.Unlock()

	notify(s.wake)
}

// markHandled is called with mu held.
func (s *subscriber) markHandled() {
	s.handled++
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *subscriber) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true
}

func (s *subscriber) loop() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}

		for {
			select {
			case <-s.quit:
				return
			default:
			}

			ev, ok := s.next()
			if !ok {
				break
			}
			s.dispatcher.invoke(s.handler, ev)

			s.mu.Lock()
			s.markHandled()
			s.mu.Unlock()
		}
	}
}

func (s *subscriber) stop() {
	close(s.quit)
}

func (s *subscriber) wait(ctx context.Context) error {
	s.mu.Lock()
	target := s.queued
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if s.handled >= target {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-s.quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
