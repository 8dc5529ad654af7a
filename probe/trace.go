package probe

// TracePositions is the number of entries the state storage holds.
const TracePositions = 8

// TraceControl enables, disables or resets the state storage.
type TraceControl int32

// The list of trace controls.
const (
	TraceEnable TraceControl = iota
	TraceDisable
	TraceReset
)

// Valid returns true if the control is known.
func (c TraceControl) Valid() bool {
	return c >= TraceEnable && c <= TraceReset
}

// TraceMode is the policy of the state storage when it's full.
type TraceMode int32

// The list of trace modes.
const (
	// TraceHistory stores the entries continuously and overwrites the oldest one when full.
	TraceHistory TraceMode = iota
	// TraceFuture is same as TraceHistory, but starts storing on the storage trigger.
	TraceFuture
	// TraceShot stops storing when full.
	TraceShot
	// TraceCollect stores the entry on each storage trigger and stops storing when full.
	TraceCollect
)

var traceModeNames = [...]string{"History", "Future", "Shot", "Collect"}

// Valid returns true if the mode is known.
func (m TraceMode) Valid() bool {
	return m >= TraceHistory && m <= TraceCollect
}

func (m TraceMode) String() string {
	if !m.Valid() {
		return "TraceMode(?)"
	}
	return traceModeNames[m]
}

// Wraps returns true if the oldest entry is overwritten when the storage is full.
func (m TraceMode) Wraps() bool {
	return m == TraceHistory || m == TraceFuture
}

// TraceAction is the kind of the bus cycle the state storage records.
type TraceAction int32

// The list of trace actions.
const (
	TraceFetch TraceAction = iota
	TraceAllCycles
)

// Valid returns true if the action is known.
func (a TraceAction) Valid() bool {
	return a == TraceFetch || a == TraceAllCycles
}

// TraceConfig is the configuration of the state storage.
type TraceConfig struct {
	Control TraceControl
	Mode    TraceMode
	Action  TraceAction
}

// Validate checks the enum-valued fields.
func (c TraceConfig) Validate() error {
	return checkFields("TraceConfig",
		enumField{"Control", int64(c.Control), c.Control.Valid()},
		enumField{"Mode", int64(c.Mode), c.Mode.Valid()},
		enumField{"Action", int64(c.Action), c.Action.Valid()},
	)
}

// TraceEntry is the single entry of the state storage.
type TraceEntry struct {
	MAB     int32
	MDB     int32
	Control uint16
}

// Wire representation of the trace replies.
type (
	// TraceBufferReply is the reply of OpReadTraceBuffer.
	TraceBufferReply struct {
		Count   uint32
		Entries [TracePositions]TraceEntry
	}
	// TraceDataArgs is the argument of OpReadTraceData.
	TraceDataArgs struct {
		Max uint32
	}
	// TraceDataReply is the header of the reply of OpReadTraceData. Count entries follow.
	TraceDataReply struct {
		Count uint32
	}
)
