package probe

// ClockControlMode enables the clock control on the emulation halt.
type ClockControlMode int32

// The list of clock control modes.
const (
	ClockControlDisable ClockControlMode = iota
	ClockControlEnable
)

// Valid returns true if the mode is known.
func (m ClockControlMode) Valid() bool {
	return m == ClockControlDisable || m == ClockControlEnable
}

// ModuleClocks is the set of the module clocks stopped on the emulation halt. Only the extended
// clock control honors it.
type ModuleClocks uint16

// The list of module clocks.
const (
	ModuleWDT          ModuleClocks = 1 << 1
	ModuleTimerA       ModuleClocks = 1 << 2
	ModuleTimerB       ModuleClocks = 1 << 3
	ModuleBasicTimer   ModuleClocks = 1 << 4
	ModuleLCDFreq      ModuleClocks = 1 << 5
	ModuleTimerCounter ModuleClocks = 1 << 6
	ModuleTimerPort    ModuleClocks = 1 << 7
	ModuleUSART0       ModuleClocks = 1 << 8
	ModuleUSART1       ModuleClocks = 1 << 9
	ModuleFlashControl ModuleClocks = 1 << 10
	ModuleADC          ModuleClocks = 1 << 11
	ModuleACLKPin      ModuleClocks = 1 << 12
	ModuleSMCLKPin     ModuleClocks = 1 << 13
	ModuleMCLKPin      ModuleClocks = 1 << 14

	allModuleClocks = ModuleWDT | ModuleTimerA | ModuleTimerB | ModuleBasicTimer | ModuleLCDFreq | ModuleTimerCounter |
		ModuleTimerPort | ModuleUSART0 | ModuleUSART1 | ModuleFlashControl | ModuleADC | ModuleACLKPin | ModuleSMCLKPin | ModuleMCLKPin
)

// GeneralClocks is the set of the general clocks stopped on the emulation halt.
type GeneralClocks uint16

// The list of general clocks.
const (
	StopACLK  GeneralClocks = 1 << 1
	StopSMCLK GeneralClocks = 1 << 2
	// StopMCLK is not available in the extended clock control.
	StopMCLK GeneralClocks = 1 << 3
	// StopTACLK is available only in the standard clock control.
	StopTACLK GeneralClocks = 1 << 5

	allGeneralClocks = StopACLK | StopSMCLK | StopMCLK | StopTACLK
)

// ClockControl is the clock settings applied while the CPU is halted.
type ClockControl struct {
	Mode    ClockControlMode
	Modules ModuleClocks
	General GeneralClocks
}

// Validate checks the mode and the unknown clock bits.
func (c ClockControl) Validate() error {
	return checkFields("ClockControl",
		enumField{"Mode", int64(c.Mode), c.Mode.Valid()},
		enumField{"Modules", int64(c.Modules), c.Modules&^allModuleClocks == 0},
		enumField{"General", int64(c.General), c.General&^allGeneralClocks == 0})
}

// Supports returns true if the device with the clock control level can apply the settings.
func (c ClockControl) Supports(level ClockControlLevel) bool {
	switch level {
	case GCCNone:
		return false
	case GCCExtended:
		return c.General&(StopMCLK|StopTACLK) == 0
	default:
		return c.Modules == 0
	}
}
