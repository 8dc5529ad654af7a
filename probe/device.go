package probe

import (
	"bytes"
	"fmt"
)

// DeviceRecordSize is the size of the device record the probe returns.
const DeviceRecordSize = 108

const deviceRecordEndian = 0xaa55

// DeviceRecord is the packed little endian record of OpGetFoundDevice. The field order and widths are
// fixed by the probe firmware.
type DeviceRecord struct {
	Endian                  uint16
	ID                      uint16
	String                  [32]byte
	MainStart               uint16
	InfoStart               uint16
	RAMEnd                  uint16
	NBreakpoints            uint16
	Emulation               uint16
	ClockControl            uint16
	LCDStart                uint16
	LCDEnd                  uint16
	VccMinOp                uint16
	VccMaxOp                uint16
	HasTestVpp              uint16
	RAMStart                uint16
	RAM2Start               uint16
	RAM2End                 uint16
	InfoEnd                 uint16
	MainEnd                 uint32
	BSLStart                uint16
	BSLEnd                  uint16
	NRegTrigger             uint16
	NCombinations           uint16
	CPUArch                 uint8
	JtagID                  uint8
	CoreIPID                uint16
	DeviceIDPtr             uint32
	EEMVersion              uint16
	NBreakpointsOptions     uint16
	NBreakpointsReadWrite   uint16
	NBreakpointsDma         uint16
	NTriggerMask            uint16
	NRegTriggerOperations   uint16
	NStateStorage           uint16
	NCycleCounter           uint16
	NCycleCounterOperations uint16
	NSequencer              uint16
	HasFRAMMemory           uint16
}

// Validate checks the endian marker and the enum-valued fields.
func (r DeviceRecord) Validate() error {
	return checkFields("DeviceRecord",
		enumField{"Endian", int64(r.Endian), r.Endian == deviceRecordEndian},
		enumField{"CPUArch", int64(r.CPUArch), Arch(r.CPUArch).Valid()},
		enumField{"Emulation", int64(r.Emulation), EmexLevel(r.Emulation).Valid()},
		enumField{"ClockControl", int64(r.ClockControl), ClockControlLevel(r.ClockControl).Valid()},
	)
}

// Arch is the CPU architecture variant.
type Arch uint8

// The list of architectures.
const (
	ArchOriginal Arch = iota
	ArchX
	ArchXv2
)

// Valid returns true if the architecture is known.
func (a Arch) Valid() bool {
	return a <= ArchXv2
}

func (a Arch) String() string {
	switch a {
	case ArchOriginal:
		return "CPU_ARCH_ORIGINAL"
	case ArchX:
		return "CPU_ARCH_X"
	case ArchXv2:
		return "CPU_ARCH_XV2"
	}
	return fmt.Sprintf("Arch(%d)", uint8(a))
}

// EmexLevel is the emulation level of the EEM.
type EmexLevel uint16

// The list of emulation levels.
const (
	EmexNone EmexLevel = iota
	EmexLow
	EmexMedium
	EmexHigh
	EmexExtraSmall5xx
	EmexSmall5xx
	EmexMedium5xx
	EmexLarge5xx
)

var emexNames = [...]string{"None", "Low", "Medium", "High", "ExtraSmall5xx", "Small5xx", "Medium5xx", "Large5xx"}

// Valid returns true if the level is known.
func (l EmexLevel) Valid() bool {
	return l <= EmexLarge5xx
}

func (l EmexLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("EmexLevel(%d)", uint16(l))
	}
	return emexNames[l]
}

// ClockControlLevel is the level of the general clock control.
type ClockControlLevel uint16

// The list of clock control levels.
const (
	GCCNone ClockControlLevel = iota
	GCCStandard
	GCCExtended
	GCCStandardI
)

var clockControlNames = [...]string{"None", "Standard", "Extended", "StandardI"}

// Valid returns true if the level is known.
func (l ClockControlLevel) Valid() bool {
	return l <= GCCStandardI
}

func (l ClockControlLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("ClockControlLevel(%d)", uint16(l))
	}
	return clockControlNames[l]
}

// Region is the inclusive address range of the memory.
type Region struct {
	Name       string
	Start, End uint32
}

// Implemented returns false if the device doesn't have the memory.
func (r Region) Implemented() bool {
	return r.Start != 0 || r.End != 0
}

// Size returns the number of bytes in the region.
func (r Region) Size() uint32 {
	if !r.Implemented() || r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains returns true if the whole range [addr, addr+length) is within the region.
func (r Region) Contains(addr, length uint32) bool {
	if !r.Implemented() || length == 0 {
		return false
	}
	last := uint64(addr) + uint64(length) - 1
	return addr >= r.Start && last <= uint64(r.End)
}

// DeviceDescriptor is the snapshot of the attached device.
type DeviceDescriptor struct {
	ID          uint16
	Name        string
	Arch        Arch
	JtagID      uint8
	CoreIPID    uint16
	DeviceIDPtr uint32

	RAM, RAM2, Main, Info, BSL, LCD Region
	HasFRAM                         bool

	// VccMin and VccMax are the operating range in mV.
	VccMin, VccMax uint16
	HasTestVpp     bool

	Breakpoints   int
	RegTriggers   int
	Combinations  int
	Emulation     EmexLevel
	ClockControl  ClockControlLevel
	EEMVersion    uint16
	StateStorage  bool
	CycleCounters int
	Sequencer     bool
}

// NewDeviceDescriptor converts the validated record to the descriptor.
func NewDeviceDescriptor(r DeviceRecord) (DeviceDescriptor, error) {
	if err := r.Validate(); err != nil {
		return DeviceDescriptor{}, err
	}

	name := r.String[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return DeviceDescriptor{
		ID:            r.ID,
		Name:          string(name),
		Arch:          Arch(r.CPUArch),
		JtagID:        r.JtagID,
		CoreIPID:      r.CoreIPID,
		DeviceIDPtr:   r.DeviceIDPtr,
		RAM:           Region{Name: "RAM", Start: uint32(r.RAMStart), End: uint32(r.RAMEnd)},
		RAM2:          Region{Name: "RAM2", Start: uint32(r.RAM2Start), End: uint32(r.RAM2End)},
		Main:          Region{Name: "FLASH", Start: uint32(r.MainStart), End: r.MainEnd},
		Info:          Region{Name: "INFO", Start: uint32(r.InfoStart), End: uint32(r.InfoEnd)},
		BSL:           Region{Name: "BSL", Start: uint32(r.BSLStart), End: uint32(r.BSLEnd)},
		LCD:           Region{Name: "LCD", Start: uint32(r.LCDStart), End: uint32(r.LCDEnd)},
		HasFRAM:       r.HasFRAMMemory != 0,
		VccMin:        r.VccMinOp,
		VccMax:        r.VccMaxOp,
		HasTestVpp:    r.HasTestVpp != 0,
		Breakpoints:   int(r.NBreakpoints),
		RegTriggers:   int(r.NRegTrigger),
		Combinations:  int(r.NCombinations),
		Emulation:     EmexLevel(r.Emulation),
		ClockControl:  ClockControlLevel(r.ClockControl),
		EEMVersion:    r.EEMVersion,
		StateStorage:  r.NStateStorage != 0,
		CycleCounters: int(r.NCycleCounter),
		Sequencer:     r.NSequencer != 0,
	}, nil
}

// Regions returns the memory map in the order RAM, RAM2, FLASH, INFO, BSL, LCD.
func (d DeviceDescriptor) Regions() []Region {
	return []Region{d.RAM, d.RAM2, d.Main, d.Info, d.BSL, d.LCD}
}

// RegionOf returns the region which contains the whole range.
func (d DeviceDescriptor) RegionOf(addr, length uint32) (Region, bool) {
	for _, r := range d.Regions() {
		if r.Contains(addr, length) {
			return r, true
		}
	}
	return Region{}, false
}

// DeviceName converts the name to the fixed-size field of the record.
func DeviceName(name string) [32]byte {
	var b [32]byte
	copy(b[:31], name)
	return b
}

// NewDeviceRecord returns the record with the valid endian marker. Used by the probe side.
func NewDeviceRecord() DeviceRecord {
	return DeviceRecord{Endian: deviceRecordEndian}
}

// OpenDeviceArgs is the argument of OpOpenDevice.
type OpenDeviceArgs struct {
	// Device is the name hint, such as "DEVICE_UNKNOWN" or "MSP430F5529".
	Device     string
	Password   []byte
	DeviceCode int32
	SetID      int32
}

type openDeviceHeader struct {
	DeviceCode     int32
	SetID          int32
	DeviceLength   uint16
	PasswordLength uint16
}

// MarshalBinary encodes the arguments.
func (a OpenDeviceArgs) MarshalBinary() ([]byte, error) {
	if len(a.Device) > 0xffff || len(a.Password) > 0xffff {
		return nil, fmt.Errorf("too long device name or password")
	}
	header := openDeviceHeader{
		DeviceCode:     a.DeviceCode,
		SetID:          a.SetID,
		DeviceLength:   uint16(len(a.Device)),
		PasswordLength: uint16(len(a.Password)),
	}
	return Encode(header, a.Device, a.Password), nil
}

// UnmarshalBinary decodes the arguments.
func (a *OpenDeviceArgs) UnmarshalBinary(data []byte) error {
	var header openDeviceHeader
	var rest []byte
	if err := Decode(data, &header, &rest); err != nil {
		return err
	}
	if len(rest) != int(header.DeviceLength)+int(header.PasswordLength) {
		return fmt.Errorf("wrong length of OpenDeviceArgs: %d", len(rest))
	}

	a.DeviceCode = header.DeviceCode
	a.SetID = header.SetID
	a.Device = string(rest[:header.DeviceLength])
	a.Password = append([]byte(nil), rest[header.DeviceLength:]...)
	return nil
}
