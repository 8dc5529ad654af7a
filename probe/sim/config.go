package sim

import "github.com/ks888/fetctl/probe"

// DefaultFirmwareVersion is the firmware version the simulated probe reports (3.15.1.1).
const DefaultFirmwareVersion = 31501001

// Config is the configuration of the simulated probe and its device.
type Config struct {
	Device          probe.DeviceRecord
	FirmwareVersion int32
	Capabilities    probe.Capabilities
	// Password is the device password. No password is required if nil.
	Password []byte
	// EntryPoint is the PC value after the reset.
	EntryPoint uint32
	// InstructionsPerPoll is the number of instructions the running device executes per state poll.
	InstructionsPerPoll int
	// CyclesPerInstruction is the number of clock cycles per instruction.
	CyclesPerInstruction int
	// ExternalVoltage is the voltage of the external supply in mV. 0 means no external supply.
	ExternalVoltage int32
}

// NewDefaultConfig returns the config of the MSP430F5529-like device.
func NewDefaultConfig() Config {
	r := probe.NewDeviceRecord()
	r.ID = 0x5529
	r.String = probe.DeviceName("MSP430F5529")
	r.RAMStart, r.RAMEnd = 0x2400, 0x43ff
	r.MainStart, r.MainEnd = 0x4400, 0x243ff
	r.InfoStart, r.InfoEnd = 0x1800, 0x19ff
	r.BSLStart, r.BSLEnd = 0x1000, 0x17ff
	r.VccMinOp, r.VccMaxOp = 1800, 3600
	r.NBreakpoints = 8
	r.NRegTrigger = 2
	r.NCombinations = 8
	r.CPUArch = uint8(probe.ArchXv2)
	r.JtagID = 0x91
	r.Emulation = uint16(probe.EmexLarge5xx)
	r.ClockControl = uint16(probe.GCCExtended)
	r.EEMVersion = 0x0c
	r.NStateStorage = 1
	r.NCycleCounter = 2
	r.NSequencer = 1

	return Config{
		Device:               r,
		FirmwareVersion:      DefaultFirmwareVersion,
		Capabilities:         probe.AllCapabilities,
		EntryPoint:           0x4400,
		InstructionsPerPoll:  16,
		CyclesPerInstruction: 2,
	}
}
