// Package session is the single logical conversation with the probe and its attached device.
package session

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/ks888/fetctl/log"
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
	"github.com/ks888/fetctl/utils"
)

// Notifier receives the events the session observed. Push must not block.
type Notifier interface {
	Push(event probe.Event)
}

// DeviceOptions is the options to open the device.
type DeviceOptions struct {
	// Device is the name of the device, such as "MSP430F5529". "DEVICE_UNKNOWN" accepts any device.
	Device string
	// Password is the JTAG password. Empty if the device is not protected.
	Password   []byte
	DeviceCode int32
	SetID      int32
}

// NewDefaultDeviceOptions returns the options which accept any device.
func NewDefaultDeviceOptions() DeviceOptions {
	return DeviceOptions{Device: "DEVICE_UNKNOWN"}
}

// Session is the open link to the probe. All the calls are serialized.
type Session struct {
	path     string
	link     probe.Link
	notifier Notifier
	log      log.Entry

	mu     sync.Mutex
	caps   probe.Capabilities
	device *probe.DeviceDescriptor
	closed bool

	stale      atomic.Bool
	generation atomic.Uint64
	lastState  atomic.Int32
}

func newSession(path string, link probe.Link, notifier Notifier) *Session {
	s := &Session{
		path:     path,
		link:     link,
		notifier: notifier,
		log:      log.WithLayer("session"),
		caps:     probe.AllCapabilities,
	}
	link.SetNotifyHandler(s.handleEvent)
	return s
}

// Path returns the path of the probe.
func (s *Session) Path() string {
	return s.path
}

// Initialize initializes the probe and returns its firmware version. It also resolves the set of
// the supported operations. The error is returned if the firmware and the host don't match.
func (s *Session) Initialize() (utils.FirmwareVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw int32
	if err := s.call(probe.OpInitialize, nil, &raw); err != nil {
		return utils.FirmwareVersion{}, err
	}
	version := utils.ParseFirmwareVersion(raw)
	if version.Conflict {
		return version, status.Newf("Initialize", status.InitializeErr, "firmware version conflict: %d", raw)
	}

	var caps uint64
	if err := s.call(probe.OpCapabilities, nil, &caps); err != nil {
		s.log.Debugf("failed to query capabilities, assume all the operations are supported: %v", err)
		caps = uint64(probe.AllCapabilities)
	}
	s.caps = probe.Capabilities(caps)
	s.log.Debugf("initialized %s: firmware %s", s.path, version)
	return version, nil
}

// IsSupported returns true if the probe supports the operation.
func (s *Session) IsSupported(op probe.Opcode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps.Has(op)
}

// SetSupplyVoltage sets the supply voltage of the device in mV. 0 turns the supply off.
func (s *Session) SetSupplyVoltage(mv int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call(probe.OpVCC, probe.Encode(int32(mv)))
}

// SupplyVoltage returns the current supply voltage in mV.
func (s *Session) SupplyVoltage() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mv int32
	if err := s.call(probe.OpGetCurVCC, nil, &mv); err != nil {
		return 0, err
	}
	return int(mv), nil
}

// OpenDevice opens the device and takes its snapshot. The previous snapshot and all the handles are discarded.
func (s *Session) OpenDevice(options DeviceOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	args, err := probe.OpenDeviceArgs{
		Device:     options.Device,
		Password:   options.Password,
		DeviceCode: options.DeviceCode,
		SetID:      options.SetID,
	}.MarshalBinary()
	if err != nil {
		return status.Newf("OpenDevice", status.ParameterErr, "%v", err)
	}
	if err := s.call(probe.OpOpenDevice, args); err != nil {
		return err
	}

	var record probe.DeviceRecord
	if err := s.call(probe.OpGetFoundDevice, nil, &record); err != nil {
		return err
	}
	desc, err := probe.NewDeviceDescriptor(record)
	if err != nil {
		return status.Newf("GetFoundDevice", status.InternalErr, "%v", err)
	}

	if s.caps.Has(probe.OpEEMInit) {
		if err := s.call(probe.OpEEMInit, nil); err != nil {
			return err
		}
	}

	s.device = &desc
	s.stale.Store(false)
	s.generation.Inc()
	s.lastState.Store(int32(probe.Stopped))
	s.log.Printf("opened %s (id %#04x) on %s", desc.Name, desc.ID, s.path)
	return nil
}

// Device returns the snapshot of the open device.
func (s *Session) Device() (probe.DeviceDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireDevice("GetFoundDevice"); err != nil {
		return probe.DeviceDescriptor{}, err
	}
	return *s.device, nil
}

// JtagID returns the JTAG ID of the device.
func (s *Session) JtagID() (uint8, error) {
	var id int32
	if err := s.Call(probe.OpGetJtagID, nil, &id); err != nil {
		return 0, err
	}
	return uint8(id), nil
}

// Reset resets the device. The device starts running after the reset if execute is true.
func (s *Session) Reset(method probe.ResetMethod, execute, releaseJTAG bool) error {
	if !method.Valid() {
		return status.Newf("Reset", status.ParameterErr, "invalid reset method: %#x", int32(method))
	}
	args := probe.ResetArgs{Method: method, Execute: probe.Bool(execute), Release: probe.Bool(releaseJTAG)}
	if err := s.Call(probe.OpReset, probe.Encode(args)); err != nil {
		return err
	}

	if execute {
		s.noteState(probe.Running)
	} else {
		s.noteState(probe.Stopped)
	}
	return nil
}

// Close turns the supply voltage off and closes the link.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if !s.stale.Load() {
		if err := s.call(probe.OpClose, probe.Encode(int32(1))); err != nil {
			s.log.Debugf("failed to close the probe: %v", err)
		}
	}
	s.closed = true
	s.device = nil
	s.generation.Inc()
	s.link.SetNotifyHandler(nil)
	return s.link.Close()
}

// Closed returns true if the session is closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stale returns true if the connection was lost and the assumed state of the device is invalid.
func (s *Session) Stale() bool {
	return s.stale.Load()
}

// Generation returns the number which changes whenever the device is opened or the session becomes stale.
// The handles obtained in the other generation are invalid.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

// Call executes the operation on the open device and decodes the reply into out.
func (s *Session) Call(op probe.Opcode, args []byte, out ...interface{}) error {
	return s.callWithDevice(op, func(probe.DeviceDescriptor) ([]byte, error) { return args, nil }, out...)
}

// callWithDevice is same as Call, but prepares the arguments with the device snapshot under the lock.
func (s *Session) callWithDevice(op probe.Opcode, prepare func(probe.DeviceDescriptor) ([]byte, error), out ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireDevice(op.String()); err != nil {
		return err
	}
	args, err := prepare(*s.device)
	if err != nil {
		return err
	}
	return s.call(op, args, out...)
}

// Notify logs the warning event and passes the event to the notifier.
func (s *Session) Notify(event probe.Event) {
	if event.Type == probe.EventWarning {
		s.log.Warnf("%v", event.Data)
	}
	if s.notifier != nil {
		s.notifier.Push(event)
	}
}

func (s *Session) requireDevice(op string) error {
	if s.closed {
		return status.Newf(op, status.NoDeviceErr, "session is closed")
	}
	if s.stale.Load() {
		s.device = nil
		return status.Newf(op, status.NoDeviceErr, "connection lost, reopen the device")
	}
	if s.device == nil {
		return status.New(op, status.NoDeviceErr)
	}
	return nil
}

func (s *Session) call(op probe.Opcode, args []byte, out ...interface{}) error {
	if s.closed {
		return status.Newf(op.String(), status.NoDeviceErr, "session is closed")
	}
	if !s.caps.Has(op) {
		return status.New(op.String(), status.InterfaceSupportErr)
	}

	raw, reply, err := s.link.Call(op, args)
	if err != nil {
		s.markStale(fmt.Sprintf("%s: %v", op, err))
		return status.Newf(op.String(), status.CommErr, "%v", err)
	}

	warning, err := status.Decode(op.String(), raw, s.errno)
	if err != nil {
		if status.IsConnectivity(err) {
			s.markStale(err.Error())
		}
		return err
	}
	if warning != nil {
		s.Notify(probe.Event{Type: probe.EventWarning, Data: warning})
	}

	if err := probe.Decode(reply, out...); err != nil {
		return status.Newf(op.String(), status.InternalErr, "malformed reply: %v", err)
	}
	return nil
}

func (s *Session) errno() (int32, error) {
	raw, reply, err := s.link.Call(probe.OpErrorNumber, nil)
	if err != nil {
		return 0, err
	}
	if raw != status.StatusOK {
		return 0, fmt.Errorf("unexpected status: %d", raw)
	}

	var num int32
	if err := probe.Decode(reply, &num); err != nil {
		return 0, err
	}
	return num, nil
}

// handleEvent is called by the link, possibly on the goroutine other than the caller's.
func (s *Session) handleEvent(event probe.Event) {
	if probe.IsConnectionLostEvent(event.Type) {
		s.markStale(event.Type.String())
	}
	switch event.Type {
	case probe.EventDeviceInLPM5:
		s.lastState.Store(int32(probe.LPMx5))
	case probe.EventDeviceWakeupLPM5:
		s.lastState.Store(int32(probe.LPMx5Wakeup))
	}
	s.Notify(event)
}

func (s *Session) markStale(reason string) {
	if s.stale.CompareAndSwap(false, true) {
		s.generation.Inc()
		s.log.Warnf("session %s became stale: %s", s.path, reason)
	}
}
