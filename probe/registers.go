package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// Register is the index of the CPU register.
type Register int32

// NumRegisters is the number of the general purpose registers.
const NumRegisters = 16

// The register aliases.
const (
	PC  Register = 0
	SP  Register = 1
	SR  Register = 2
	CG1 Register = 2
	CG2 Register = 3
)

// AllRegs is the mask to select all the registers.
const AllRegs uint16 = 0xffff

var registerAliases = map[string]Register{
	"PC":  PC,
	"SP":  SP,
	"SR":  SR,
	"CG1": CG1,
	"CG2": CG2,
}

// ParseRegister resolves the register name such as "R5" or "PC" to its canonical index.
func ParseRegister(name string) (Register, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if r, ok := registerAliases[upper]; ok {
		return r, nil
	}

	if strings.HasPrefix(upper, "R") {
		n, err := strconv.Atoi(upper[1:])
		if err == nil && Register(n).Valid() {
			return Register(n), nil
		}
	}
	return 0, fmt.Errorf("unknown register: %s", name)
}

// Valid returns true if the index is within R0-R15.
func (r Register) Valid() bool {
	return r >= 0 && r < NumRegisters
}

func (r Register) String() string {
	return fmt.Sprintf("R%d", int32(r))
}

// Mask returns the register selection mask.
func Mask(regs ...Register) uint16 {
	var mask uint16
	for _, r := range regs {
		mask |= 1 << uint(r)
	}
	return mask
}

// RegisterValue is the pair of the register and its value.
type RegisterValue struct {
	Register Register
	Value    int32
}

// ReadWrite selects the direction of the memory and register access.
type ReadWrite int32

// The list of directions.
const (
	Write ReadWrite = 0
	Read  ReadWrite = 1
)

// RunMode is the mode to run the device.
type RunMode int32

// The list of run modes.
const (
	// FreeRun runs the device. Set breakpoints (if any) are disabled.
	FreeRun RunMode = 1
	// SingleStep executes a single instruction. Interrupt processing is supported.
	SingleStep RunMode = 2
	// RunToBreakpoint runs the device. Set breakpoints (if any) are enabled.
	RunToBreakpoint RunMode = 3
)

// Valid returns true if the mode is known.
func (m RunMode) Valid() bool {
	return m >= FreeRun && m <= RunToBreakpoint
}

func (m RunMode) String() string {
	switch m {
	case FreeRun:
		return "FreeRun"
	case SingleStep:
		return "SingleStep"
	case RunToBreakpoint:
		return "RunToBreakpoint"
	}
	return fmt.Sprintf("RunMode(%d)", int32(m))
}

// RunState is the execution state of the device.
type RunState int32

// The list of run states.
const (
	Stopped RunState = iota
	Running
	SingleStepComplete
	BreakpointHit
	LPMx5
	LPMx5Wakeup
)

var runStateNames = [...]string{"Stopped", "Running", "SingleStepComplete", "BreakpointHit", "LPMx5", "LPMx5Wakeup"}

// Valid returns true if the state is known.
func (s RunState) Valid() bool {
	return s >= Stopped && s <= LPMx5Wakeup
}

func (s RunState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("RunState(%d)", int32(s))
	}
	return runStateNames[s]
}

// Halted returns true if the CPU doesn't execute the instructions and so the registers are accessible.
func (s RunState) Halted() bool {
	return s == Stopped || s == SingleStepComplete || s == BreakpointHit
}

// ResetMethod is the bit set of the reset methods.
type ResetMethod int32

// The list of reset methods.
const (
	PUCReset   ResetMethod = 1 << 0
	RSTReset   ResetMethod = 1 << 1
	VCCReset   ResetMethod = 1 << 2
	ForceReset ResetMethod = 1 << 3

	AllResets = PUCReset | RSTReset | VCCReset
)

// Valid returns true if at least one known method is selected.
func (m ResetMethod) Valid() bool {
	return m&AllResets != 0 && m&^(AllResets|ForceReset) == 0
}

// Wire arguments of the register and run control operations.
type (
	// RegisterArgs is the argument of OpRegister.
	RegisterArgs struct {
		Register Register
		RW       ReadWrite
		Value    int32
	}
	// RegistersArgs is the argument of OpRegisters. The values of the write access follow.
	RegistersArgs struct {
		Mask uint16
		RW   ReadWrite
	}
	// MemoryArgs is the argument of OpMemory. The data of the write access follows.
	MemoryArgs struct {
		Address uint32
		Length  uint32
		RW      ReadWrite
	}
	// RunArgs is the argument of OpRun.
	RunArgs struct {
		Mode    RunMode
		Release int32
	}
	// StateArgs is the argument of OpState.
	StateArgs struct {
		Stop int32
	}
	// StateReply is the reply of OpState. Cycles is 64 bits wide so that it doesn't wrap in the long run.
	StateReply struct {
		State  RunState
		Cycles uint64
	}
	// ResetArgs is the argument of OpReset.
	ResetArgs struct {
		Method  ResetMethod
		Execute int32
		Release int32
	}
)

// Validate checks the direction.
func (a RegisterArgs) Validate() error {
	return checkFields("RegisterArgs",
		enumField{"Register", int64(a.Register), a.Register.Valid()},
		enumField{"RW", int64(a.RW), a.RW == Read || a.RW == Write})
}

// Validate checks the run mode.
func (a RunArgs) Validate() error {
	return checkFields("RunArgs", enumField{"Mode", int64(a.Mode), a.Mode.Valid()})
}

// Validate checks the state.
func (r StateReply) Validate() error {
	return checkFields("StateReply", enumField{"State", int64(r.State), r.State.Valid()})
}

// Bool converts the flag to its wire representation.
func Bool(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
