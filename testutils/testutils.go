// Package testutils provides the simulated probe and the session opened on it.
package testutils

import (
	"sync"
	"testing"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/probe/sim"
	"github.com/ks888/fetctl/session"
)

// Path is the probe path the helpers open.
const Path = sim.PortName

// DefaultVCC is the supply voltage the helpers set, in mV.
const DefaultVCC = 3300

// Recorder keeps the events the session observed.
type Recorder struct {
	mu     sync.Mutex
	events []probe.Event
}

// Push records the event.
func (r *Recorder) Push(event probe.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns the recorded events.
func (r *Recorder) Events() []probe.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]probe.Event(nil), r.events...)
}

// OfType returns the data of the recorded events of the type.
func (r *Recorder) OfType(typ probe.EventType) []interface{} {
	var data []interface{}
	for _, ev := range r.Events() {
		if ev.Type == typ {
			data = append(data, ev.Data)
		}
	}
	return data
}

// Warnings returns the warning codes the breakpoint manager or the probe reported.
func (r *Recorder) Warnings() []probe.WarningCode {
	var codes []probe.WarningCode
	for _, data := range r.OfType(probe.EventWarning) {
		if code, ok := data.(probe.WarningCode); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// Fixture is the session opened on the simulated target.
type Fixture struct {
	Session   *session.Session
	Target    *sim.Target
	Transport *sim.Transport
	Recorder  *Recorder
}

// OpenSession initializes the simulated probe and opens the device. The session is closed when the test ends.
func OpenSession(t testing.TB, config sim.Config) Fixture {
	t.Helper()

	recorder := &Recorder{}
	transport := sim.NewTransport(config)
	registry := session.NewRegistry(recorder)
	s, err := registry.Open(Path, transport)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	t.Cleanup(func() { _ = registry.CloseAll() })

	if _, err := s.Initialize(); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	if err := s.SetSupplyVoltage(DefaultVCC); err != nil {
		t.Fatalf("failed to set vcc: %v", err)
	}
	if err := s.OpenDevice(session.NewDefaultDeviceOptions()); err != nil {
		t.Fatalf("failed to open device: %v", err)
	}
	return Fixture{Session: s, Target: transport.Target(Path), Transport: transport, Recorder: recorder}
}
