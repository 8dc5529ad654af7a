package status

// Code is the error number the probe reports after a failed operation.
type Code int32

// The list of error numbers. The values are defined by the probe firmware and must not be renumbered.
const (
	NoErr Code = iota
	InitializeErr
	CloseErr
	ParameterErr
	NoDeviceErr
	DeviceUnknownErr
	ReadMemoryErr
	WriteMemoryErr
	ReadFusesErr
	ConfigurationErr
	VccErr
	ResetErr
	PreserveRestoreErr
	FrequencyErr
	EraseErr
	BreakpointErr
	StepErr
	RunErr
	StateErr
	EEMOpenErr
	EEMReadErr
	EEMWriteErr
	EEMCloseErr
	FileOpenErr
	FileDetectErr
	FileEndErr
	FileIOErr
	FileDataErr
	VerifyErr
	BlowFuseErr
	FuseBlownErr
	IntelHexCodeErr
	WriteRegisterErr
	ReadRegisterErr
	InterfaceSupportErr
	CommErr
	NoExPower
	LowExPower
	ExPowerOK
	HighExPower
	SelftestErr
	FlashTimeoutErr
	ThreadErr
	EEMInitErr
	ResourceErr
	ClkCtrlErr
	StateStorErr
	ReadTraceErr
	VarWatchEnErr
	SequencerErr
	SeqEnableErr
	ClrSeqTrigger
	SetSeqTrigger
	SPMAActiveErr
	SPMAInvalidKeyErr
	SPMAMaxTrials
	USBFETBSLActiveErr
	USBFETNotFoundErr
	USBFETBusyErr
	ThreadActiveErr
	ThreadTerminateErr
	UnlockBSLErr
	BSLMemoryLockedErr
	FoundOtherDevice
	WrongPassword
	UpdateMultipleUIFErr
	CDCUIFErr
	UIFManualPowercycleNeeded
	InternalErr
	InvalidErr
)

// Category groups the error numbers by the subsystem which reports them.
type Category int

// The list of categories.
const (
	Connectivity Category = iota
	Configuration
	MemoryAccess
	DebugControl
	EmulationModule
	Security
	File
	Power
	Internal
)

var categoryNames = [...]string{
	Connectivity:    "Connectivity",
	Configuration:   "Configuration",
	MemoryAccess:    "MemoryAccess",
	DebugControl:    "DebugControl",
	EmulationModule: "EmulationModule",
	Security:        "Security",
	File:            "File",
	Power:           "Power",
	Internal:        "Internal",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

type codeDesc struct {
	name     string
	msg      string
	category Category
}

var codeDescs = [...]codeDesc{
	NoErr:                     {"NO_ERR", "No error", Internal},
	InitializeErr:             {"INITIALIZE_ERR", "Could not initialize device interface", Connectivity},
	CloseErr:                  {"CLOSE_ERR", "Could not close device interface", Connectivity},
	ParameterErr:              {"PARAMETER_ERR", "Invalid parameter(s)", Configuration},
	NoDeviceErr:               {"NO_DEVICE_ERR", "Could not find device (or device not supported)", Connectivity},
	DeviceUnknownErr:          {"DEVICE_UNKNOWN_ERR", "Unknown device", Configuration},
	ReadMemoryErr:             {"READ_MEMORY_ERR", "Could not read device memory", MemoryAccess},
	WriteMemoryErr:            {"WRITE_MEMORY_ERR", "Could not write device memory", MemoryAccess},
	ReadFusesErr:              {"READ_FUSES_ERR", "Could not read device configuration fuses", Security},
	ConfigurationErr:          {"CONFIGURATION_ERR", "Incorrectly configured device; device derivative not supported", Configuration},
	VccErr:                    {"VCC_ERR", "Could not set device Vcc", Power},
	ResetErr:                  {"RESET_ERR", "Could not reset device", DebugControl},
	PreserveRestoreErr:        {"PRESERVE_RESTORE_ERR", "Could not preserve/restore device memory", MemoryAccess},
	FrequencyErr:              {"FREQUENCY_ERR", "Could not set device operating frequency", Configuration},
	EraseErr:                  {"ERASE_ERR", "Could not erase device memory", MemoryAccess},
	BreakpointErr:             {"BREAKPOINT_ERR", "Could not set device breakpoint", DebugControl},
	StepErr:                   {"STEP_ERR", "Could not single step device", DebugControl},
	RunErr:                    {"RUN_ERR", "Could not run device (to breakpoint)", DebugControl},
	StateErr:                  {"STATE_ERR", "Could not determine device state", DebugControl},
	EEMOpenErr:                {"EEM_OPEN_ERR", "Could not open Enhanced Emulation Module", EmulationModule},
	EEMReadErr:                {"EEM_READ_ERR", "Could not read Enhanced Emulation Module register", EmulationModule},
	EEMWriteErr:               {"EEM_WRITE_ERR", "Could not write Enhanced Emulation Module register", EmulationModule},
	EEMCloseErr:               {"EEM_CLOSE_ERR", "Could not close Enhanced Emulation Module", EmulationModule},
	FileOpenErr:               {"FILE_OPEN_ERR", "File open error", File},
	FileDetectErr:             {"FILE_DETECT_ERR", "File type could not be identified", File},
	FileEndErr:                {"FILE_END_ERR", "File end error", File},
	FileIOErr:                 {"FILE_IO_ERR", "File input/output error", File},
	FileDataErr:               {"FILE_DATA_ERR", "File data error", File},
	VerifyErr:                 {"VERIFY_ERR", "Verification error", MemoryAccess},
	BlowFuseErr:               {"BLOW_FUSE_ERR", "Could not blow device security fuse", Security},
	FuseBlownErr:              {"FUSE_BLOWN_ERR", "Security Fuse has been blown", Security},
	IntelHexCodeErr:           {"INTEL_HEX_CODE_ERR", "Error within Intel Hex file", File},
	WriteRegisterErr:          {"WRITE_REGISTER_ERR", "Could not write device Register", DebugControl},
	ReadRegisterErr:           {"READ_REGISTER_ERR", "Could not read device Register", DebugControl},
	InterfaceSupportErr:       {"INTERFACE_SUPPORT_ERR", "Not supported by selected Interface or Interface is not initialized", Configuration},
	CommErr:                   {"COMM_ERR", "Interface Communication error", Connectivity},
	NoExPower:                 {"NO_EX_POWER", "No external power supply detected", Power},
	LowExPower:                {"LOW_EX_POWER", "External power too low", Power},
	ExPowerOK:                 {"EX_POWER_OK", "External power detected", Power},
	HighExPower:               {"HIGH_EX_POWER", "External power too high", Power},
	SelftestErr:               {"SELFTEST_ERR", "Hardware Self Test Error", Internal},
	FlashTimeoutErr:           {"FLASH_TIMEOUT_ERR", "Fast Flash Routine experienced a timeout", MemoryAccess},
	ThreadErr:                 {"THREAD_ERR", "Could not create thread for polling", Internal},
	EEMInitErr:                {"EEM_INIT_ERR", "Could not initialize Enhanced Emulation Module", EmulationModule},
	ResourceErr:               {"RESOURCE_ERR", "Insufficent resources", DebugControl},
	ClkCtrlErr:                {"CLK_CTRL_ERR", "No clock control emulation on connected device", EmulationModule},
	StateStorErr:              {"STATE_STOR_ERR", "No state storage buffer implemented on connected device", EmulationModule},
	ReadTraceErr:              {"READ_TRACE_ERR", "Could not read trace buffer", EmulationModule},
	VarWatchEnErr:             {"VAR_WATCH_EN_ERR", "Enable the variable watch function", EmulationModule},
	SequencerErr:              {"SEQUENCER_ERR", "No trigger sequencer implemented on connected device", EmulationModule},
	SeqEnableErr:              {"SEQ_ENABLE_ERR", "Could not read sequencer state - Sequencer is disabled", EmulationModule},
	ClrSeqTrigger:             {"CLR_SEQ_TRIGGER", "Could not remove trigger - Used in sequencer", EmulationModule},
	SetSeqTrigger:             {"SET_SEQ_TRIGGER", "Could not set combination - Trigger is used in sequencer", EmulationModule},
	SPMAActiveErr:             {"SPMA_ACTIVE_ERR", "System Protection Module A is enabled - Device locked", Security},
	SPMAInvalidKeyErr:         {"SPMA_INVALID_KEY_ERR", "Invalid SPMA key was passed to the target device - Device locked", Security},
	SPMAMaxTrials:             {"SPMA_MAX_TRIALS", "Device does not accept any further SPMA keys - Device locked", Security},
	USBFETBSLActiveErr:        {"USB_FET_BSL_ACTIVE_ERR", "MSP-FET430UIF Firmware erased - Bootloader active", Connectivity},
	USBFETNotFoundErr:         {"USB_FET_NOT_FOUND_ERR", "Could not find MSP-FET430UIF on specified COM port", Connectivity},
	USBFETBusyErr:             {"USB_FET_BUSY_ERR", "MSP-FET430UIF is already in use", Connectivity},
	ThreadActiveErr:           {"THREAD_ACTIVE_ERR", "EEM polling thread is already active", EmulationModule},
	ThreadTerminateErr:        {"THREAD_TERMINATE_ERR", "Could not terminate EEM polling thread", EmulationModule},
	UnlockBSLErr:              {"UNLOCK_BSL_ERR", "Could not unlock BSL memory segments", Security},
	BSLMemoryLockedErr:        {"BSL_MEMORY_LOCKED_ERR", "Could not perform access, BSL memory segments are protected", Security},
	FoundOtherDevice:          {"FOUND_OTHER_DEVICE", "Another device as selected was found", Configuration},
	WrongPassword:             {"WRONG_PASSWORD", "Could not enable JTAG wrong password", Security},
	UpdateMultipleUIFErr:      {"UPDATE_MULTIPLE_UIF_ERR", "Only one UIF must be connected during update to v3", Connectivity},
	CDCUIFErr:                 {"CDC_UIF_ERR", "CDC-USB-FET-Driver was not installed. Please install the driver", Connectivity},
	UIFManualPowercycleNeeded: {"UIF_MANUAL_POWERCYCLE_NEEDED", "Manual reboot of USB-FET needed ! PLEASE unplug and reconnect your USB-FET!!", Connectivity},
	InternalErr:               {"INTERNAL_ERR", "Internal error", Internal},
	InvalidErr:                {"INVALID_ERR", "Invalid error number", Internal},
}

// Valid returns true if the code is one of the known error numbers.
func (c Code) Valid() bool {
	return c >= 0 && int(c) < len(codeDescs)
}

// Normalize maps the unknown error number to InvalidErr.
func (c Code) Normalize() Code {
	if !c.Valid() {
		return InvalidErr
	}
	return c
}

// String returns the name of the code, such as "RESOURCE_ERR".
func (c Code) String() string {
	return codeDescs[c.Normalize()].name
}

// Message returns the human readable description of the code.
func (c Code) Message() string {
	return codeDescs[c.Normalize()].msg
}

// Category returns the category the code belongs to.
func (c Code) Category() Category {
	return codeDescs[c.Normalize()].category
}
