package probe

// CounterMode is the mode of the cycle counters.
type CounterMode int32

// The list of counter modes.
const (
	// CounterBasic makes only the counter 0 available, which counts all the cycles.
	CounterBasic CounterMode = iota
	// CounterAdvanced makes all the counters configurable.
	CounterAdvanced
)

// Valid returns true if the mode is known.
func (m CounterMode) Valid() bool {
	return m == CounterBasic || m == CounterAdvanced
}

// CountMode is the kind of the cycles the counter counts.
type CountMode int32

// The list of count modes. 3 is reserved.
const (
	CountAllCycles       CountMode = 0
	CountFetchCycles     CountMode = 1
	CountAllButFetch     CountMode = 2
	CountAllBusCycles    CountMode = 4
	CountAllButBus       CountMode = 5
	CountAllBusButFetch  CountMode = 6
	CountAllButBusNFetch CountMode = 7
)

// Valid returns true if the mode is known.
func (m CountMode) Valid() bool {
	return m >= CountAllCycles && m <= CountAllButBusNFetch && m != 3
}

// StartMode tells when the counter starts counting.
type StartMode int32

// The list of start modes.
const (
	StartOnRelease StartMode = iota
	StartOnTrigger
	StartImmediately
	StartOnSeqTrigger
)

// Valid returns true if the mode is known.
func (m StartMode) Valid() bool {
	return m >= StartOnRelease && m <= StartOnSeqTrigger
}

// StopMode tells when the counter stops counting.
type StopMode int32

// The list of stop modes.
const (
	StopOnBreak StopMode = iota
	StopOnTrigger
	StopNever
	StopOnSeqTrigger
)

// Valid returns true if the mode is known.
func (m StopMode) Valid() bool {
	return m >= StopOnBreak && m <= StopOnSeqTrigger
}

// ClearMode tells when the counter is cleared.
type ClearMode int32

// The list of clear modes.
const (
	ClearNever ClearMode = iota
	ClearOnTrigger
	ClearOnSeqTrigger
)

// Valid returns true if the mode is known.
func (m ClearMode) Valid() bool {
	return m >= ClearNever && m <= ClearOnSeqTrigger
}

// CounterConfig is the configuration of the cycle counter.
type CounterConfig struct {
	Count CountMode
	Start StartMode
	Stop  StopMode
	Clear ClearMode
}

// Validate checks the enum-valued fields.
func (c CounterConfig) Validate() error {
	return checkFields("CounterConfig",
		enumField{"Count", int64(c.Count), c.Count.Valid()},
		enumField{"Start", int64(c.Start), c.Start.Valid()},
		enumField{"Stop", int64(c.Stop), c.Stop.Valid()},
		enumField{"Clear", int64(c.Clear), c.Clear.Valid()},
	)
}

// Wire arguments of the cycle counter operations.
type (
	// CounterModeArgs is the argument of OpSetCycleCounterMode.
	CounterModeArgs struct {
		Mode CounterMode
	}
	// CounterArgs is the argument of the operations on the single counter.
	CounterArgs struct {
		Index uint32
	}
	// ConfigureCounterArgs is the argument of OpConfigureCycleCounter.
	ConfigureCounterArgs struct {
		Index  uint32
		Config CounterConfig
	}
	// CounterValueArgs is the argument of OpWriteCycleCounterValue and the reply of OpReadCycleCounterValue.
	CounterValueArgs struct {
		Index uint32
		Value uint64
	}
)

// Validate checks the mode.
func (a CounterModeArgs) Validate() error {
	return checkFields("CounterModeArgs", enumField{"Mode", int64(a.Mode), a.Mode.Valid()})
}

// Validate checks the configuration.
func (a ConfigureCounterArgs) Validate() error {
	return a.Config.Validate()
}
