package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ks888/fetctl/probe"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) seqs() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var seqs []uint64
	for _, ev := range c.events {
		seqs = append(seqs, ev.Seq)
	}
	return seqs
}

func flush(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Flush(ctx); err != nil {
		t.Fatalf("failed to flush: %v", err)
	}
}

func TestDispatcher_Order(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()
	c := &collector{}
	d.Subscribe(c.handle)

	d.Push(probe.Event{Type: probe.EventDeviceInLPM5})
	d.Push(probe.Event{Type: probe.EventDeviceWakeupLPM5})
	d.Push(probe.Event{Type: probe.EventWarning, Data: probe.WarReset})
	if d.Pending() != 3 {
		t.Fatalf("wrong pending: %d", d.Pending())
	}

	if n := d.Dispatch(); n != 3 {
		t.Errorf("wrong number of dispatched events: %d", n)
	}
	flush(t, d)

	if diff := cmp.Diff([]uint64{1, 2, 3}, c.seqs()); diff != "" {
		t.Errorf("wrong seqs (-want +got):\n%s", diff)
	}
	c.mu.Lock()
	var types []probe.EventType
	for _, ev := range c.events {
		types = append(types, ev.Type)
	}
	c.mu.Unlock()
	expected := []probe.EventType{probe.EventDeviceInLPM5, probe.EventDeviceWakeupLPM5, probe.EventWarning}
	if diff := cmp.Diff(expected, types); diff != "" {
		t.Errorf("wrong types (-want +got):\n%s", diff)
	}
	if d.Pending() != 0 || d.Delivered() != 3 {
		t.Errorf("wrong counts: %d, %d", d.Pending(), d.Delivered())
	}
}

func TestDispatcher_NoHandlerBeforeDispatch(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()
	c := &collector{}
	d.Subscribe(c.handle)

	d.Push(probe.Event{Type: probe.EventCPUStopped})
	flush(t, d)
	if len(c.seqs()) != 0 {
		t.Errorf("handler is called before dispatch")
	}

	d.Dispatch()
	flush(t, d)
	if len(c.seqs()) != 1 {
		t.Errorf("handler is not called")
	}
}

func TestDispatcher_HandlerFailure(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()
	d.Subscribe(func(ev Event) error {
		if ev.Seq == 1 {
			panic("boom")
		}
		return errors.New("failed")
	})
	c := &collector{}
	d.Subscribe(c.handle)

	d.Push(probe.Event{Type: probe.EventCPUStopped})
	d.Push(probe.Event{Type: probe.EventCPUStopped})
	d.Dispatch()
	flush(t, d)

	if diff := cmp.Diff([]uint64{1, 2}, c.seqs()); diff != "" {
		t.Errorf("wrong events (-want +got):\n%s", diff)
	}
}

func TestDispatcher_BlockedHandler(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	block := make(chan struct{})
	defer close(block)
	d.Subscribe(func(ev Event) error {
		<-block
		return nil
	})
	received := make(chan Event, 2)
	d.Subscribe(func(ev Event) error {
		received <- ev
		return nil
	})

	d.Push(probe.Event{Type: probe.EventCPUStopped})
	d.Push(probe.Event{Type: probe.EventSingleStep})
	d.Dispatch()

	for _, expected := range []uint64{1, 2} {
		select {
		case ev := <-received:
			if ev.Seq != expected {
				t.Errorf("wrong event: %v", ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("blocked handler delays the other handler")
		}
	}
}

func TestDispatcher_LaggingHandler(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	block := make(chan struct{})
	d.Subscribe(func(ev Event) error {
		<-block
		return nil
	})
	for i := 0; i < MaxPending+10; i++ {
		d.Push(probe.Event{Type: probe.EventStorage})
		d.Dispatch()
	}
	close(block)
	flush(t, d)

	// the first event may be taken by the handler before the queue overflows
	if dropped := d.Dropped(); dropped < 9 || dropped > 10 {
		t.Errorf("wrong number of dropped events: %d", dropped)
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()
	c := &collector{}
	cancel := d.Subscribe(c.handle)

	d.Push(probe.Event{Type: probe.EventCPUStopped})
	d.Dispatch()
	flush(t, d)
	cancel()
	d.Push(probe.Event{Type: probe.EventCPUStopped})
	d.Dispatch()

	if len(c.seqs()) != 1 {
		t.Errorf("wrong count: %d", len(c.seqs()))
	}
}

func TestDispatcher_ConcurrentPush(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Push(probe.Event{Type: probe.EventStorage})
			}
		}()
	}
	wg.Wait()

	c := &collector{}
	d.Subscribe(c.handle)
	if n := d.Dispatch(); n != 800 {
		t.Errorf("wrong number of events: %d", n)
	}
	flush(t, d)

	seqs := c.seqs()
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("events are not delivered in the arrival order: %d at %d", seq, i)
		}
	}
	if len(seqs) != 800 {
		t.Errorf("wrong number of handled events: %d", len(seqs))
	}
}

func TestDispatcher_Run(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()
	received := make(chan Event, 1)
	d.Subscribe(func(ev Event) error {
		received <- ev
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- d.Run(ctx) }()

	d.Push(probe.Event{Type: probe.EventSingleStep})
	select {
	case ev := <-received:
		if ev.Type != probe.EventSingleStep {
			t.Errorf("wrong event: %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("event is not delivered")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("wrong error: %v", err)
	}
}
