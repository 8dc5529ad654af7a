package session

import (
	"sync"
	"testing"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/probe/sim"
	"github.com/ks888/fetctl/status"
)

const testPath = "sim0"

type eventRecorder struct {
	mu     sync.Mutex
	events []probe.Event
}

func (r *eventRecorder) Push(event probe.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []probe.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []probe.EventType
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}

func openSession(t *testing.T, config sim.Config) (*Session, *sim.Target, *eventRecorder) {
	t.Helper()
	recorder := &eventRecorder{}
	transport := sim.NewTransport(config)
	s, err := NewRegistry(recorder).Open(testPath, transport)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if _, err := s.Initialize(); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	if err := s.SetSupplyVoltage(3300); err != nil {
		t.Fatalf("failed to set vcc: %v", err)
	}
	if err := s.OpenDevice(NewDefaultDeviceOptions()); err != nil {
		t.Fatalf("failed to open device: %v", err)
	}
	return s, transport.Target(testPath), recorder
}

func TestInitialize(t *testing.T) {
	s, err := NewRegistry(nil).Open(testPath, sim.NewTransport(sim.NewDefaultConfig()))
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}

	version, err := s.Initialize()
	if err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	if version.Major != 3 || version.Minor != 15 || version.Patch != 1 || version.Flavor != 1 {
		t.Errorf("wrong version: %v", version)
	}
}

func TestInitialize_VersionConflict(t *testing.T) {
	config := sim.NewDefaultConfig()
	config.FirmwareVersion = -3
	s, _ := NewRegistry(nil).Open(testPath, sim.NewTransport(config))

	version, err := s.Initialize()
	if !status.Is(err, status.InitializeErr) {
		t.Errorf("wrong error: %v", err)
	}
	if !version.Conflict || !version.MajorUpdate {
		t.Errorf("wrong version: %#v", version)
	}
}

func TestInitialize_Capabilities(t *testing.T) {
	config := sim.NewDefaultConfig()
	config.Capabilities = config.Capabilities.Without(probe.OpSetSequencer)
	s, _, _ := openSession(t, config)

	if s.IsSupported(probe.OpSetSequencer) {
		t.Errorf("should not be supported")
	}
	if !s.IsSupported(probe.OpSetBreakpoint) {
		t.Errorf("should be supported")
	}
	if err := s.Call(probe.OpSetSequencer, probe.Encode(probe.Sequencer{})); !status.Is(err, status.InterfaceSupportErr) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestOpenDevice(t *testing.T) {
	s, _, _ := openSession(t, sim.NewDefaultConfig())

	desc, err := s.Device()
	if err != nil {
		t.Fatalf("failed to get device: %v", err)
	}
	if desc.Name != "MSP430F5529" || desc.RAM.Start != 0x2400 {
		t.Errorf("wrong descriptor: %#v", desc)
	}

	id, err := s.JtagID()
	if err != nil || id != 0x91 {
		t.Errorf("wrong jtag id: %#x, %v", id, err)
	}
}

func TestOpenDevice_WrongPassword(t *testing.T) {
	config := sim.NewDefaultConfig()
	config.Password = []byte{1, 2, 3, 4}
	s, _ := NewRegistry(nil).Open(testPath, sim.NewTransport(config))
	_, _ = s.Initialize()
	_ = s.SetSupplyVoltage(3000)

	options := NewDefaultDeviceOptions()
	options.Password = []byte{1, 2, 3, 5}
	if err := s.OpenDevice(options); !status.Is(err, status.WrongPassword) {
		t.Errorf("wrong error: %v", err)
	}

	options.Password = config.Password
	if err := s.OpenDevice(options); err != nil {
		t.Errorf("failed to open: %v", err)
	}
}

func TestNoDevice(t *testing.T) {
	s, _ := NewRegistry(nil).Open(testPath, sim.NewTransport(sim.NewDefaultConfig()))
	_, _ = s.Initialize()

	if _, _, err := s.State(false); !status.Is(err, status.NoDeviceErr) {
		t.Errorf("wrong error: %v", err)
	}
	if err := s.Run(probe.FreeRun, false); !status.Is(err, status.NoDeviceErr) {
		t.Errorf("wrong error: %v", err)
	}
	if _, err := s.ReadMemory(0x2400, 2); !status.Is(err, status.NoDeviceErr) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestSupplyVoltage(t *testing.T) {
	s, _, _ := openSession(t, sim.NewDefaultConfig())

	if mv, err := s.SupplyVoltage(); err != nil || mv != 3300 {
		t.Errorf("wrong voltage: %d, %v", mv, err)
	}
	if err := s.SetSupplyVoltage(5000); !status.Is(err, status.VccErr) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestWarning(t *testing.T) {
	s, target, recorder := openSession(t, sim.NewDefaultConfig())
	target.AdviseNext(probe.OpGetJtagID, 5)

	if _, err := s.JtagID(); err != nil {
		t.Fatalf("advisory status should not fail: %v", err)
	}
	types := recorder.types()
	if len(types) != 1 || types[0] != probe.EventWarning {
		t.Fatalf("wrong events: %v", types)
	}
	if w, ok := recorder.events[0].Data.(*status.Warning); !ok || w.Raw != 5 {
		t.Errorf("wrong warning: %v", recorder.events[0].Data)
	}
}

func TestConnectionLost(t *testing.T) {
	s, target, recorder := openSession(t, sim.NewDefaultConfig())
	gen := s.Generation()

	target.Disconnect()
	if !s.Stale() {
		t.Fatalf("session should be stale")
	}
	if s.Generation() == gen {
		t.Errorf("generation is not changed")
	}
	if types := recorder.types(); len(types) != 1 || types[0] != probe.EventFETConnectionLost {
		t.Errorf("wrong events: %v", types)
	}

	if _, err := s.Device(); !status.Is(err, status.NoDeviceErr) {
		t.Errorf("wrong error: %v", err)
	}
	if _, _, err := s.State(false); !status.Is(err, status.NoDeviceErr) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestCommErrorMarksStale(t *testing.T) {
	s, target, _ := openSession(t, sim.NewDefaultConfig())
	target.FailNext(probe.OpGetJtagID, status.USBFETNotFoundErr)

	if _, err := s.JtagID(); !status.IsConnectivity(err) {
		t.Fatalf("wrong error: %v", err)
	}
	if !s.Stale() {
		t.Fatalf("session should be stale")
	}

	// the link itself is alive, so reopening recovers the session.
	if err := s.OpenDevice(NewDefaultDeviceOptions()); err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	if s.Stale() {
		t.Errorf("session should not be stale")
	}
}

func TestNonConnectivityErrorKeepsSession(t *testing.T) {
	s, target, _ := openSession(t, sim.NewDefaultConfig())
	target.FailNext(probe.OpGetJtagID, status.ParameterErr)

	if _, err := s.JtagID(); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
	if s.Stale() {
		t.Errorf("session should not be stale")
	}
}

func TestReset(t *testing.T) {
	s, _, _ := openSession(t, sim.NewDefaultConfig())
	if err := s.WriteRegister(probe.PC, 0x5000); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if err := s.Reset(probe.PUCReset|probe.RSTReset, false, false); err != nil {
		t.Fatalf("failed to reset: %v", err)
	}
	if pc, _ := s.ReadRegister(probe.PC); pc != 0x4400 {
		t.Errorf("wrong pc after reset: %#x", pc)
	}

	if err := s.Reset(probe.ForceReset, false, false); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestClose(t *testing.T) {
	s, target, _ := openSession(t, sim.NewDefaultConfig())
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if _, _, err := target.Call(probe.OpGetJtagID, nil); err != sim.ErrClosed {
		t.Errorf("link is not closed: %v", err)
	}
	if _, err := s.JtagID(); !status.Is(err, status.NoDeviceErr) {
		t.Errorf("wrong error: %v", err)
	}
}
