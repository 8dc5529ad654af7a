package probe

import "fmt"

// Handle identifies the trigger resource the breakpoint manager allocated. 0 means no trigger.
type Handle uint16

// Resource limits of the emulation module.
const (
	// MaxHandle is the maximum number of live handles, including breakpoints and combinations.
	MaxHandle = 20
	// MaxTrigger is the maximum number of memory bus triggers.
	MaxTrigger = 8
)

// BpMode is the mode of the breakpoint.
type BpMode int32

// The list of breakpoint modes.
const (
	BpClear BpMode = iota
	BpCode
	BpRange
	BpComplex
	BpSoftware
)

var bpModeNames = [...]string{"Clear", "Code", "Range", "Complex", "Software"}

// Valid returns true if the mode is known.
func (m BpMode) Valid() bool {
	return m >= BpClear && m <= BpSoftware
}

func (m BpMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("BpMode(%d)", int32(m))
	}
	return bpModeNames[m]
}

// BpType is the bus or register the breakpoint watches.
type BpType int32

// The list of breakpoint types.
const (
	// BpTypeAddress watches the memory address bus (MAB).
	BpTypeAddress BpType = iota
	// BpTypeData watches the memory data bus (MDB).
	BpTypeData
	// BpTypeRegister watches the CPU register.
	BpTypeRegister
)

// Valid returns true if the type is known.
func (t BpType) Valid() bool {
	return t >= BpTypeAddress && t <= BpTypeRegister
}

// BpAccess is the kind of the bus access which triggers the breakpoint.
type BpAccess int32

// The list of access kinds.
const (
	BpFetch BpAccess = iota
	BpFetchHold
	BpNoFetch
	BpDontCare
	BpNoFetchRead
	BpNoFetchWrite
	BpRead
	BpWrite
	BpNoFetchNoDMA
	BpDMA
	BpNoDMA
	BpWriteNoDMA
	BpNoFetchReadNoDMA
	BpReadNoDMA
	BpReadDMA
	BpWriteDMA
)

// Valid returns true if the access kind is known.
func (a BpAccess) Valid() bool {
	return a >= BpFetch && a <= BpWriteDMA
}

// BpAction is what the emulation module does when the breakpoint triggers.
type BpAction int32

// The list of actions.
const (
	BpActionNone BpAction = iota
	BpActionBreak
	BpActionStorage
	BpActionBreakAndStorage
	BpActionCycleCount
)

// Valid returns true if the action is known.
func (a BpAction) Valid() bool {
	return a >= BpActionNone && a <= BpActionCycleCount
}

// BpOperator is the comparison of the bus value and the breakpoint value.
type BpOperator int32

// The list of operators.
const (
	BpEqual BpOperator = iota
	BpGreater
	BpLower
	BpUnequal
)

// Valid returns true if the operator is known.
func (o BpOperator) Valid() bool {
	return o >= BpEqual && o <= BpUnequal
}

// BpRangeAction tells whether the range breakpoint triggers inside or outside the range.
type BpRangeAction int32

// The list of range actions.
const (
	BpInside BpRangeAction = iota
	BpOutside
)

// Valid returns true if the range action is known.
func (a BpRangeAction) Valid() bool {
	return a == BpInside || a == BpOutside
}

// BpCondition tells whether the complex breakpoint has the data condition.
type BpCondition int32

// The list of conditions.
const (
	BpNoCondition BpCondition = iota
	BpWithCondition
)

// Valid returns true if the condition is known.
func (c BpCondition) Valid() bool {
	return c == BpNoCondition || c == BpWithCondition
}

// Breakpoint is the programming of the single trigger. Fields irrelevant to the mode are kept as they are.
type Breakpoint struct {
	Mode         BpMode
	Address      uint32
	Type         BpType
	Register     Register
	Access       BpAccess
	Action       BpAction
	Operator     BpOperator
	Mask         uint32
	RangeEnd     uint32
	RangeAction  BpRangeAction
	Condition    BpCondition
	CondData     uint32
	CondAccess   BpAccess
	CondMask     uint32
	CondOperator BpOperator
}

// Validate checks the enum-valued fields.
func (bp Breakpoint) Validate() error {
	return checkFields("Breakpoint",
		enumField{"Mode", int64(bp.Mode), bp.Mode.Valid()},
		enumField{"Type", int64(bp.Type), bp.Type.Valid()},
		enumField{"Register", int64(bp.Register), bp.Register.Valid()},
		enumField{"Access", int64(bp.Access), bp.Access.Valid()},
		enumField{"Action", int64(bp.Action), bp.Action.Valid()},
		enumField{"Operator", int64(bp.Operator), bp.Operator.Valid()},
		enumField{"RangeAction", int64(bp.RangeAction), bp.RangeAction.Valid()},
		enumField{"Condition", int64(bp.Condition), bp.Condition.Valid()},
		enumField{"CondAccess", int64(bp.CondAccess), bp.CondAccess.Valid()},
		enumField{"CondOperator", int64(bp.CondOperator), bp.CondOperator.Valid()},
	)
}

// Triggers returns the number of the memory bus triggers the breakpoint occupies.
func (bp Breakpoint) Triggers() int {
	switch bp.Mode {
	case BpClear, BpSoftware:
		return 0
	case BpRange:
		return 2
	}
	if bp.Type == BpTypeRegister {
		return 0
	}
	if bp.Mode == BpComplex && bp.Condition == BpWithCondition {
		return 2
	}
	return 1
}

// CodeBreakpoint returns the breakpoint which stops the CPU when it fetches the instruction at the address.
func CodeBreakpoint(addr uint32) Breakpoint {
	return Breakpoint{Mode: BpCode, Address: addr, Action: BpActionBreak}
}

// RangeBreakpoint returns the breakpoint which triggers on the access inside [start, end].
func RangeBreakpoint(start, end uint32, access BpAccess, action BpAction) Breakpoint {
	return Breakpoint{Mode: BpRange, Address: start, RangeEnd: end, Access: access, Action: action}
}

// CombineControl tells whether to create or dissolve the combination.
type CombineControl int32

// The list of combine controls.
const (
	CombineSet CombineControl = iota
	CombineClear
)

// Valid returns true if the control is known.
func (c CombineControl) Valid() bool {
	return c == CombineSet || c == CombineClear
}

// Wire arguments of the breakpoint operations.
type (
	// SetBreakpointArgs is the argument of OpSetBreakpoint.
	SetBreakpointArgs struct {
		Handle     Handle
		Breakpoint Breakpoint
	}
	// CombineArgs is the header of OpSetCombineBreakpoint. Count member handles follow.
	CombineArgs struct {
		Control CombineControl
		Handle  Handle
		Count   uint16
	}
)

// Validate checks the breakpoint.
func (a SetBreakpointArgs) Validate() error {
	return a.Breakpoint.Validate()
}

// Validate checks the control.
func (a CombineArgs) Validate() error {
	return checkFields("CombineArgs", enumField{"Control", int64(a.Control), a.Control.Valid()})
}
