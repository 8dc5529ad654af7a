// Package service exposes the probe session over net/rpc.
package service

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ks888/fetctl/eem"
	"github.com/ks888/fetctl/events"
	"github.com/ks888/fetctl/log"
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/session"
)

const serviceVersion = 1 // increment when the backward compatibility of service methods is broken.

// maxBufferedEvents is the number of the events kept until the client fetches them. Older ones are dropped.
const maxBufferedEvents = 256

// flushTimeout bounds the wait for the buffered events in Events.
const flushTimeout = time.Second

// Probe is the wrapper of the session in fetctl/session package.
//
// The simple name 'Probe' is chosen because it becomes a part of the service methods
// the rpc client uses.
type Probe struct {
	transport  probe.Transport
	registry   *session.Registry
	dispatcher *events.Dispatcher
	log        log.Entry

	mu      sync.Mutex
	session *session.Session
	module  *eem.Module

	eventsMu sync.Mutex
	events   []EventRecord
	dropped  int
}

// NewProbe returns the service which opens the probe through the transport.
// The events are buffered only while the dispatcher of the service runs.
func NewProbe(transport probe.Transport) *Probe {
	dispatcher := events.NewDispatcher()
	p := &Probe{
		transport:  transport,
		registry:   session.NewRegistry(dispatcher),
		dispatcher: dispatcher,
		log:        log.WithLayer("service"),
	}
	dispatcher.Subscribe(p.bufferEvent)
	return p
}

// OpenArgs is the input argument of the service method 'Probe.Open'
type OpenArgs struct {
	Path     string
	VCC      int
	Device   string
	Password []byte
}

// OpenReply is the reply of the service method 'Probe.Open'
type OpenReply struct {
	Firmware string
	Device   string
	ID       uint16
}

// StateArgs is the input argument of the service method 'Probe.State'
type StateArgs struct {
	RequestStop bool
}

// StateReply is the reply of the service method 'Probe.State'
type StateReply struct {
	State  probe.RunState
	Cycles uint64
}

// RunArgs is the input argument of the service method 'Probe.Run'
type RunArgs struct {
	Mode    probe.RunMode
	Release bool
}

// MemoryArgs is the input argument of the service method 'Probe.ReadMemory'
type MemoryArgs struct {
	Addr   uint32
	Length int
}

// EventRecord is the event in the form the rpc client can decode.
type EventRecord struct {
	Seq    uint64
	Type   probe.EventType
	Detail string
}

// EventsReply is the reply of the service method 'Probe.Events'
type EventsReply struct {
	Events []EventRecord
	// Dropped is the number of the events dropped since the last call because the client didn't fetch them in time.
	Dropped int
}

// Version returns the service version. The backward compatibility may be broken if the version is not same as the expected one.
func (p *Probe) Version(args struct{}, reply *int) error {
	*reply = serviceVersion
	return nil
}

// Open opens the probe, sets the supply voltage and opens the device. It fails if the probe is already open.
func (p *Probe) Open(args OpenArgs, reply *OpenReply) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		return errors.New("already open")
	}

	s, err := p.registry.Open(args.Path, p.transport)
	if err != nil {
		return err
	}
	if err := p.setUp(s, args, reply); err != nil {
		_ = p.registry.Release(args.Path)
		return err
	}
	p.session = s
	p.module = eem.New(s)
	p.log.Printf("opened %s", args.Path)
	return nil
}

func (p *Probe) setUp(s *session.Session, args OpenArgs, reply *OpenReply) error {
	version, err := s.Initialize()
	if err != nil {
		return err
	}
	if err := s.SetSupplyVoltage(args.VCC); err != nil {
		return err
	}

	options := session.NewDefaultDeviceOptions()
	if args.Device != "" {
		options.Device = args.Device
	}
	options.Password = args.Password
	if err := s.OpenDevice(options); err != nil {
		return err
	}

	desc, err := s.Device()
	if err != nil {
		return err
	}
	if reply != nil {
		*reply = OpenReply{Firmware: version.String(), Device: desc.Name, ID: desc.ID}
	}
	return nil
}

// Close closes the probe. It does nothing if the probe is not open.
func (p *Probe) Close(args struct{}, reply *struct{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closeSession()
}

func (p *Probe) closeSession() error {
	if p.session == nil {
		return nil
	}
	path := p.session.Path()
	p.session, p.module = nil, nil
	return p.registry.Release(path)
}

func (p *Probe) current() (*session.Session, *eem.Module, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil, nil, errors.New("not open")
	}
	return p.session, p.module, nil
}

// State polls the run state of the device.
func (p *Probe) State(args StateArgs, reply *StateReply) error {
	s, _, err := p.current()
	if err != nil {
		return err
	}
	state, cycles, err := s.State(args.RequestStop)
	if err != nil {
		return err
	}
	*reply = StateReply{State: state, Cycles: cycles}
	return nil
}

// Run starts the device.
func (p *Probe) Run(args RunArgs, reply *struct{}) error {
	s, _, err := p.current()
	if err != nil {
		return err
	}
	return s.Run(args.Mode, args.Release)
}

// ReadMemory reads the memory of the halted device.
func (p *Probe) ReadMemory(args MemoryArgs, reply *[]byte) error {
	s, _, err := p.current()
	if err != nil {
		return err
	}
	data, err := s.ReadMemory(args.Addr, args.Length)
	if err != nil {
		return err
	}
	*reply = data
	return nil
}

// SetBreakpoint sets the breakpoint and returns its handle.
func (p *Probe) SetBreakpoint(args probe.Breakpoint, reply *probe.Handle) error {
	_, module, err := p.current()
	if err != nil {
		return err
	}
	h, err := module.Breakpoints.Set(args)
	if err != nil {
		return err
	}
	*reply = h
	return nil
}

// ClearBreakpoint clears the breakpoint or the combination.
func (p *Probe) ClearBreakpoint(args probe.Handle, reply *struct{}) error {
	_, module, err := p.current()
	if err != nil {
		return err
	}
	return module.Breakpoints.Clear(args)
}

// Events returns the events dispatched since the last call.
func (p *Probe) Events(args struct{}, reply *EventsReply) error {
	// the events pushed by the preceding calls are not dispatched yet if the dispatcher goroutine is busy.
	p.dispatcher.Dispatch()
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.dispatcher.Flush(ctx); err != nil {
		p.log.Warnf("events may be incomplete: %v", err)
	}

	p.eventsMu.Lock()
	defer p.eventsMu.Unlock()

	*reply = EventsReply{Events: p.events, Dropped: p.dropped}
	p.events, p.dropped = nil, 0
	return nil
}

func (p *Probe) bufferEvent(ev events.Event) error {
	p.eventsMu.Lock()
	defer p.eventsMu.Unlock()

	record := EventRecord{Seq: ev.Seq, Type: ev.Type}
	if ev.Data != nil {
		record.Detail = ev.Event.String()
	}
	if len(p.events) >= maxBufferedEvents {
		p.events = p.events[1:]
		p.dropped++
	}
	p.events = append(p.events, record)
	return nil
}

// Serve serves the probe service.
func Serve(address string, transport probe.Transport) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	defer listener.Close()

	return ServeListener(context.Background(), listener, transport)
}

// ServeListener serves the probe service until the context is done or the listener fails.
// The open probe is closed when it returns.
func ServeListener(ctx context.Context, listener net.Listener, transport probe.Transport) error {
	wrapper := NewProbe(transport)
	server := rpc.NewServer()
	if err := server.Register(wrapper); err != nil {
		return err
	}

	defer wrapper.dispatcher.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_ = wrapper.dispatcher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		stop := context.AfterFunc(ctx, func() { listener.Close() })
		defer stop()
		defer func() {
			wrapper.mu.Lock()
			defer wrapper.mu.Unlock()
			if err := wrapper.closeSession(); err != nil {
				wrapper.log.Warnf("failed to close: %v", err)
			}
		}()

		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			// Handle only one client at once
			server.ServeConn(conn)
			conn.Close()
		}
	})
	return g.Wait()
}
