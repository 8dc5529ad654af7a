package probe

import "fmt"

// Opcode identifies the operation the probe executes.
type Opcode uint16

// The list of operations. The values are the part of the wire format and must not be renumbered.
const (
	OpInitialize Opcode = iota
	OpClose
	OpCapabilities
	OpErrorNumber
	OpVCC
	OpGetCurVCC
	OpOpenDevice
	OpGetFoundDevice
	OpGetJtagID
	OpReset
	OpMemory
	OpRegister
	OpRegisters
	OpRun
	OpState
	OpEEMInit
	OpSetBreakpoint
	OpGetBreakpoint
	OpSetCombineBreakpoint
	OpGetCombineBreakpoint
	OpSetTrace
	OpGetTrace
	OpReadTraceBuffer
	OpReadTraceData
	OpRefreshTraceBuffer
	OpSetSequencer
	OpGetSequencer
	OpReadSequencerState
	OpSetCycleCounterMode
	OpConfigureCycleCounter
	OpReadCycleCounterValue
	OpWriteCycleCounterValue
	OpResetCycleCounter
	OpSetVariableWatch
	OpSetVariable
	OpGetVariableWatch
	OpSetClockControl
	OpGetClockControl
	OpGetExtVoltage
	OpErase
	OpSecure
	numOpcodes
)

var opcodeNames = [...]string{
	OpInitialize:             "Initialize",
	OpClose:                  "Close",
	OpCapabilities:           "Capabilities",
	OpErrorNumber:            "ErrorNumber",
	OpVCC:                    "VCC",
	OpGetCurVCC:              "GetCurVCC",
	OpOpenDevice:             "OpenDevice",
	OpGetFoundDevice:         "GetFoundDevice",
	OpGetJtagID:              "GetJtagID",
	OpReset:                  "Reset",
	OpMemory:                 "Memory",
	OpRegister:               "Register",
	OpRegisters:              "Registers",
	OpRun:                    "Run",
	OpState:                  "State",
	OpEEMInit:                "EEMInit",
	OpSetBreakpoint:          "SetBreakpoint",
	OpGetBreakpoint:          "GetBreakpoint",
	OpSetCombineBreakpoint:   "SetCombineBreakpoint",
	OpGetCombineBreakpoint:   "GetCombineBreakpoint",
	OpSetTrace:               "SetTrace",
	OpGetTrace:               "GetTrace",
	OpReadTraceBuffer:        "ReadTraceBuffer",
	OpReadTraceData:          "ReadTraceData",
	OpRefreshTraceBuffer:     "RefreshTraceBuffer",
	OpSetSequencer:           "SetSequencer",
	OpGetSequencer:           "GetSequencer",
	OpReadSequencerState:     "ReadSequencerState",
	OpSetCycleCounterMode:    "SetCycleCounterMode",
	OpConfigureCycleCounter:  "ConfigureCycleCounter",
	OpReadCycleCounterValue:  "ReadCycleCounterValue",
	OpWriteCycleCounterValue: "WriteCycleCounterValue",
	OpResetCycleCounter:      "ResetCycleCounter",
	OpSetVariableWatch:       "SetVariableWatch",
	OpSetVariable:            "SetVariable",
	OpGetVariableWatch:       "GetVariableWatch",
	OpSetClockControl:        "SetClockControl",
	OpGetClockControl:        "GetClockControl",
	OpGetExtVoltage:          "GetExtVoltage",
	OpErase:                  "Erase",
	OpSecure:                 "Secure",
}

// Valid returns true if the opcode is known.
func (op Opcode) Valid() bool {
	return op < numOpcodes
}

func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("Opcode(%d)", uint16(op))
	}
	return opcodeNames[op]
}

// Link is the single logical conversation with the probe over one physical connection.
//
// Call blocks until the probe replies. There is no abort primitive, so Call must not be issued
// concurrently and the caller imposes the timeout if necessary.
type Link interface {
	// Call executes the operation. The status is the raw return value of the probe:
	// 0 for success, -1 for failure and any other value for the advisory condition.
	// err is not nil only if the transport itself failed.
	Call(op Opcode, args []byte) (status int32, reply []byte, err error)
	// SetNotifyHandler sets the function called when the probe sends the notification.
	// The handler is called from the goroutine owned by the link, not the caller of Call.
	SetNotifyHandler(handler func(Event))
	// Close closes the connection.
	Close() error
}

// Transport opens the link to the probe.
type Transport interface {
	Open(path string) (Link, error)
}

// Interface is the probe attached to the host.
type Interface struct {
	Name string
	// Enabled is false if the interface is in use by another process.
	Enabled bool
}

// Enumerator is implemented by the transport which can list the attached probes.
type Enumerator interface {
	Interfaces() ([]Interface, error)
}

// Capabilities is the set of the operations the probe supports.
type Capabilities uint64

// AllCapabilities is the set which includes every known operation.
const AllCapabilities = Capabilities(1<<numOpcodes - 1)

// NewCapabilities returns the set of the specified operations.
func NewCapabilities(ops ...Opcode) Capabilities {
	var c Capabilities
	for _, op := range ops {
		c |= 1 << op
	}
	return c
}

// Has returns true if the operation is supported.
func (c Capabilities) Has(op Opcode) bool {
	return op.Valid() && c&(1<<op) != 0
}

// Without returns the set excluding the specified operations.
func (c Capabilities) Without(ops ...Opcode) Capabilities {
	return c &^ NewCapabilities(ops...)
}
