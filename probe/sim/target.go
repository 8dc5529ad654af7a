// Package sim is the in-process simulation of the probe and its attached device.
// The running device executes the instructions only when the state is polled or Advance is called,
// so the tests are deterministic.
package sim

import (
	"errors"
	"strings"
	"sync"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

var (
	// ErrClosed is returned when the link is already closed.
	ErrClosed = errors.New("link is closed")
	// ErrDisconnected is returned after the probe is disconnected.
	ErrDisconnected = errors.New("probe is disconnected")
)

// Target is the simulated probe. It implements probe.Link.
type Target struct {
	config Config

	mu      sync.Mutex
	notify  func(probe.Event)
	pending []probe.Event

	closed, disconnected bool
	initialized, open    bool
	vcc                  int32
	lastErr              status.Code
	failures             map[probe.Opcode]status.Code
	advisories           map[probe.Opcode]int32

	regs     [probe.NumRegisters]int32
	memory   map[uint32]byte
	state    probe.RunState
	runMode  probe.RunMode
	released bool
	cycles   uint64
	secured  bool

	eem *emulation
}

// NewTarget returns the simulated probe.
func NewTarget(config Config) *Target {
	return &Target{
		config:     config,
		failures:   make(map[probe.Opcode]status.Code),
		advisories: make(map[probe.Opcode]int32),
		memory:     make(map[uint32]byte),
		eem:        newEmulation(),
	}
}

// Call executes the operation.
func (t *Target) Call(op probe.Opcode, args []byte) (raw int32, reply []byte, err error) {
	t.do(func() { raw, reply, err = t.call(op, args) })
	return
}

// SetNotifyHandler sets the function called on the notification. The handler is called after the
// target releases its lock, on the goroutine which caused the notification.
func (t *Target) SetNotifyHandler(handler func(probe.Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify = handler
}

// Close closes the link.
func (t *Target) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.closed = true
	return nil
}

func (t *Target) do(f func()) {
	t.mu.Lock()
	f()
	events := t.pending
	t.pending = nil
	handler := t.notify
	t.mu.Unlock()

	if handler == nil {
		return
	}
	for _, event := range events {
		handler(event)
	}
}

func (t *Target) emit(typ probe.EventType, data interface{}) {
	t.pending = append(t.pending, probe.Event{Type: typ, Data: data})
}

type opHandler func(t *Target, args []byte) ([]byte, status.Code)

var opHandlers map[probe.Opcode]opHandler

func init() {
	opHandlers = map[probe.Opcode]opHandler{
		probe.OpInitialize:             (*Target).initialize,
		probe.OpClose:                  (*Target).closeProbe,
		probe.OpCapabilities:           (*Target).capabilities,
		probe.OpErrorNumber:            (*Target).errorNumber,
		probe.OpVCC:                    (*Target).setVCC,
		probe.OpGetCurVCC:              (*Target).getVCC,
		probe.OpOpenDevice:             (*Target).openDevice,
		probe.OpGetFoundDevice:         (*Target).getFoundDevice,
		probe.OpGetJtagID:              (*Target).getJtagID,
		probe.OpReset:                  (*Target).reset,
		probe.OpMemory:                 (*Target).memoryAccess,
		probe.OpRegister:               (*Target).registerAccess,
		probe.OpRegisters:              (*Target).registersAccess,
		probe.OpRun:                    (*Target).run,
		probe.OpState:                  (*Target).getState,
		probe.OpEEMInit:                (*Target).eemInit,
		probe.OpSetBreakpoint:          (*Target).setBreakpoint,
		probe.OpGetBreakpoint:          (*Target).getBreakpoint,
		probe.OpSetCombineBreakpoint:   (*Target).setCombineBreakpoint,
		probe.OpGetCombineBreakpoint:   (*Target).getCombineBreakpoint,
		probe.OpSetTrace:               (*Target).setTrace,
		probe.OpGetTrace:               (*Target).getTrace,
		probe.OpReadTraceBuffer:        (*Target).readTraceBuffer,
		probe.OpReadTraceData:          (*Target).readTraceData,
		probe.OpRefreshTraceBuffer:     (*Target).refreshTraceBuffer,
		probe.OpSetSequencer:           (*Target).setSequencer,
		probe.OpGetSequencer:           (*Target).getSequencer,
		probe.OpReadSequencerState:     (*Target).readSequencerState,
		probe.OpSetCycleCounterMode:    (*Target).setCounterMode,
		probe.OpConfigureCycleCounter:  (*Target).configureCounter,
		probe.OpReadCycleCounterValue:  (*Target).readCounter,
		probe.OpWriteCycleCounterValue: (*Target).writeCounter,
		probe.OpResetCycleCounter:      (*Target).resetCounter,
		probe.OpSetVariableWatch:       (*Target).setVariableWatch,
		probe.OpSetVariable:            (*Target).setVariable,
		probe.OpGetVariableWatch:       (*Target).getVariableWatch,
		probe.OpSetClockControl:        (*Target).setClockControl,
		probe.OpGetClockControl:        (*Target).getClockControl,
		probe.OpGetExtVoltage:          (*Target).getExtVoltage,
		probe.OpErase:                  (*Target).erase,
		probe.OpSecure:                 (*Target).secure,
	}
}

func (t *Target) call(op probe.Opcode, args []byte) (int32, []byte, error) {
	if t.closed {
		return 0, nil, ErrClosed
	}
	if t.disconnected {
		return 0, nil, ErrDisconnected
	}

	if code, ok := t.failures[op]; ok {
		delete(t.failures, op)
		return t.fail(code)
	}

	handler, ok := opHandlers[op]
	if !ok || (!t.config.Capabilities.Has(op) && op != probe.OpCapabilities && op != probe.OpErrorNumber) {
		return t.fail(status.InterfaceSupportErr)
	}

	reply, code := handler(t, args)
	if code != status.NoErr {
		return t.fail(code)
	}

	if raw, ok := t.advisories[op]; ok {
		delete(t.advisories, op)
		return raw, reply, nil
	}
	return status.StatusOK, reply, nil
}

func (t *Target) fail(code status.Code) (int32, []byte, error) {
	t.lastErr = code
	return status.StatusError, nil, nil
}

func (t *Target) initialize(args []byte) ([]byte, status.Code) {
	t.initialized = true
	return probe.Encode(t.config.FirmwareVersion), status.NoErr
}

func (t *Target) closeProbe(args []byte) ([]byte, status.Code) {
	var vccOff int32
	if err := probe.Decode(args, &vccOff); err != nil {
		return nil, status.ParameterErr
	}
	if !t.initialized {
		return nil, status.CloseErr
	}
	if vccOff != 0 {
		t.vcc = 0
	}
	t.initialized, t.open = false, false
	return nil, status.NoErr
}

func (t *Target) capabilities(args []byte) ([]byte, status.Code) {
	return probe.Encode(uint64(t.config.Capabilities)), status.NoErr
}

func (t *Target) errorNumber(args []byte) ([]byte, status.Code) {
	return probe.Encode(int32(t.lastErr)), status.NoErr
}

func (t *Target) setVCC(args []byte) ([]byte, status.Code) {
	var mv int32
	if err := probe.Decode(args, &mv); err != nil {
		return nil, status.ParameterErr
	}
	if !t.initialized {
		return nil, status.InitializeErr
	}
	if mv != 0 && (mv < 1800 || mv > 3600) {
		return nil, status.VccErr
	}
	t.vcc = mv
	return nil, status.NoErr
}

func (t *Target) getVCC(args []byte) ([]byte, status.Code) {
	if !t.initialized {
		return nil, status.InitializeErr
	}
	return probe.Encode(t.vcc), status.NoErr
}

func (t *Target) openDevice(args []byte) ([]byte, status.Code) {
	var openArgs probe.OpenDeviceArgs
	if err := openArgs.UnmarshalBinary(args); err != nil {
		return nil, status.ParameterErr
	}
	if !t.initialized {
		return nil, status.InitializeErr
	}
	if t.vcc == 0 {
		return nil, status.VccErr
	}

	name := strings.TrimRight(string(t.config.Device.String[:]), "\x00")
	if openArgs.Device != "" && openArgs.Device != "DEVICE_UNKNOWN" && !strings.EqualFold(openArgs.Device, name) {
		return nil, status.FoundOtherDevice
	}
	if openArgs.DeviceCode != 0 && uint16(openArgs.DeviceCode) != t.config.Device.ID {
		return nil, status.DeviceUnknownErr
	}
	if t.config.Password != nil && string(openArgs.Password) != string(t.config.Password) {
		return nil, status.WrongPassword
	}
	if t.secured {
		return nil, status.FuseBlownErr
	}

	t.open = true
	t.resetDevice()
	t.eem = newEmulation()
	return nil, status.NoErr
}

func (t *Target) resetDevice() {
	t.regs = [probe.NumRegisters]int32{}
	t.regs[probe.PC] = int32(t.config.EntryPoint)
	t.state = probe.Stopped
	t.runMode = 0
}

func (t *Target) getFoundDevice(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	return probe.Encode(t.config.Device), status.NoErr
}

func (t *Target) getJtagID(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	return probe.Encode(int32(t.config.Device.JtagID)), status.NoErr
}

func (t *Target) reset(args []byte) ([]byte, status.Code) {
	var resetArgs probe.ResetArgs
	if err := probe.Decode(args, &resetArgs); err != nil || !resetArgs.Method.Valid() {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}

	t.resetDevice()
	if resetArgs.Execute != 0 {
		t.runMode = probe.FreeRun
		t.state = probe.Running
		t.released = resetArgs.Release != 0
	}
	t.emit(probe.EventWarning, probe.WarReset)
	return nil, status.NoErr
}

func (t *Target) descriptor() probe.DeviceDescriptor {
	desc, _ := probe.NewDeviceDescriptor(t.config.Device)
	return desc
}

func (t *Target) memoryAccess(args []byte) ([]byte, status.Code) {
	var memArgs probe.MemoryArgs
	var data []byte
	if err := probe.Decode(args, &memArgs, &data); err != nil {
		return nil, status.ParameterErr
	}

	errCode := status.ReadMemoryErr
	if memArgs.RW == probe.Write {
		errCode = status.WriteMemoryErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if !t.state.Halted() {
		return nil, errCode
	}
	if _, ok := t.descriptor().RegionOf(memArgs.Address, memArgs.Length); !ok {
		return nil, errCode
	}

	if memArgs.RW == probe.Write {
		if uint32(len(data)) != memArgs.Length {
			return nil, status.ParameterErr
		}
		for i, b := range data {
			t.memory[memArgs.Address+uint32(i)] = b
		}
		return nil, status.NoErr
	}

	reply := make([]byte, memArgs.Length)
	for i := range reply {
		reply[i] = t.memory[memArgs.Address+uint32(i)]
	}
	return reply, status.NoErr
}

func (t *Target) registerAccess(args []byte) ([]byte, status.Code) {
	var regArgs probe.RegisterArgs
	if err := probe.Decode(args, &regArgs); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}

	if regArgs.RW == probe.Write {
		if !t.state.Halted() {
			return nil, status.WriteRegisterErr
		}
		t.regs[regArgs.Register] = regArgs.Value
		return nil, status.NoErr
	}
	if !t.state.Halted() {
		return nil, status.ReadRegisterErr
	}
	return probe.Encode(t.regs[regArgs.Register]), status.NoErr
}

func (t *Target) registersAccess(args []byte) ([]byte, status.Code) {
	var regsArgs probe.RegistersArgs
	var data []byte
	if err := probe.Decode(args, &regsArgs, &data); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}

	if regsArgs.RW == probe.Write {
		if !t.state.Halted() {
			return nil, status.WriteRegisterErr
		}
		values := make([]int32, len(data)/4)
		if err := probe.Decode(data, &values); err != nil {
			return nil, status.ParameterErr
		}
		i := 0
		for reg := probe.Register(0); reg < probe.NumRegisters; reg++ {
			if regsArgs.Mask&(1<<uint(reg)) == 0 {
				continue
			}
			if i >= len(values) {
				return nil, status.ParameterErr
			}
			t.regs[reg] = values[i]
			i++
		}
		return nil, status.NoErr
	}

	if !t.state.Halted() {
		return nil, status.ReadRegisterErr
	}
	var values []int32
	for reg := probe.Register(0); reg < probe.NumRegisters; reg++ {
		if regsArgs.Mask&(1<<uint(reg)) != 0 {
			values = append(values, t.regs[reg])
		}
	}
	return probe.Encode(values), status.NoErr
}

func (t *Target) run(args []byte) ([]byte, status.Code) {
	var runArgs probe.RunArgs
	if err := probe.Decode(args, &runArgs); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.state == probe.LPMx5 {
		return nil, status.RunErr
	}

	t.runMode = runArgs.Mode
	t.released = runArgs.Release != 0
	if runArgs.Mode == probe.SingleStep {
		t.state = probe.Running
		t.execute(1)
		if t.state == probe.Running {
			t.state = probe.SingleStepComplete
			t.emit(probe.EventSingleStep, nil)
		}
		return nil, status.NoErr
	}
	t.state = probe.Running
	return nil, status.NoErr
}

func (t *Target) getState(args []byte) ([]byte, status.Code) {
	var stateArgs probe.StateArgs
	if err := probe.Decode(args, &stateArgs); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}

	if t.state == probe.Running {
		t.execute(t.config.InstructionsPerPoll)
	}
	if stateArgs.Stop != 0 && (t.state == probe.Running || t.state == probe.LPMx5Wakeup) {
		t.state = probe.Stopped
		t.emit(probe.EventCPUStopped, nil)
	}

	reply := probe.Encode(probe.StateReply{State: t.state, Cycles: t.cycles})
	if t.state == probe.SingleStepComplete || t.state == probe.BreakpointHit {
		t.state = probe.Stopped
	}
	return reply, status.NoErr
}
