package probe

// MaxVariableWatch is the number of the variables watched at once.
const MaxVariableWatch = 8

// VariableWatchEnable turns the variable watch on or off. The values follow the probe firmware, which
// uses 0 for enable.
type VariableWatchEnable int32

// The list of variable watch switches.
const (
	VariableWatchOn VariableWatchEnable = iota
	VariableWatchOff
)

// Valid returns true if the switch is known.
func (e VariableWatchEnable) Valid() bool {
	return e == VariableWatchOn || e == VariableWatchOff
}

// VariableControl sets or clears the watched variable.
type VariableControl int32

// The list of variable controls.
const (
	VariableSet VariableControl = iota
	VariableClear
)

// Valid returns true if the control is known.
func (c VariableControl) Valid() bool {
	return c == VariableSet || c == VariableClear
}

// VariableType is the width of the watched variable.
type VariableType int32

// The list of variable widths.
const (
	Variable8 VariableType = iota
	Variable16
	Variable32
)

// Valid returns true if the width is known.
func (t VariableType) Valid() bool {
	return t >= Variable8 && t <= Variable32
}

// Size returns the width in bytes.
func (t VariableType) Size() uint32 {
	return 1 << uint32(t)
}

// Variable is the watched variable.
type Variable struct {
	Handle  Handle
	Address uint32
	Type    VariableType
}

// Wire representation of the variable watch.
type (
	// VariableWatchArgs is the argument of OpSetVariableWatch.
	VariableWatchArgs struct {
		Enable VariableWatchEnable
	}
	// SetVariableArgs is the argument of OpSetVariable. The handle is ignored when the variable is set and
	// the probe replies the allocated handle.
	SetVariableArgs struct {
		Handle  Handle
		Control VariableControl
		Address uint32
		Type    VariableType
	}
	// VariableWatchReply is the reply of OpGetVariableWatch.
	VariableWatchReply struct {
		Enable    VariableWatchEnable
		Count     uint32
		Variables [MaxVariableWatch]Variable
	}
)

// Validate checks the switch.
func (a VariableWatchArgs) Validate() error {
	return checkFields("VariableWatchArgs", enumField{"Enable", int64(a.Enable), a.Enable.Valid()})
}

// Validate checks the control and the width.
func (a SetVariableArgs) Validate() error {
	return checkFields("SetVariableArgs",
		enumField{"Control", int64(a.Control), a.Control.Valid()},
		enumField{"Type", int64(a.Type), a.Control == VariableClear || a.Type.Valid()})
}

// Validate checks the switch and the count.
func (r VariableWatchReply) Validate() error {
	return checkFields("VariableWatchReply",
		enumField{"Enable", int64(r.Enable), r.Enable.Valid()},
		enumField{"Count", int64(r.Count), r.Count <= MaxVariableWatch})
}
