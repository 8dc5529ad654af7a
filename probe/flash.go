package probe

import "fmt"

// EraseType is the range of the flash memory to erase.
type EraseType int32

// The list of erase types.
const (
	// EraseSegment erases the segment which contains the address.
	EraseSegment EraseType = iota
	// EraseMain erases the whole main memory.
	EraseMain
	// EraseAll erases the main and information memory, except the protected area.
	EraseAll
	// EraseTotal erases the main and information memory, including the protected area.
	EraseTotal
)

var eraseTypeNames = [...]string{
	EraseSegment: "segment",
	EraseMain:    "main",
	EraseAll:     "all",
	EraseTotal:   "total",
}

// Valid returns true if the type is known.
func (t EraseType) Valid() bool {
	return t >= EraseSegment && t <= EraseTotal
}

func (t EraseType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("EraseType(%d)", int32(t))
	}
	return eraseTypeNames[t]
}

// The segment sizes of the flash memory.
const (
	MainSegmentSize = 512
	InfoSegmentSize = 128
)

// Wire representation of the flash and power operations.
type (
	// EraseArgs is the argument of OpErase. Address and Length are used only by EraseSegment.
	EraseArgs struct {
		Type    EraseType
		Address uint32
		Length  uint32
	}
	// ExtVoltageReply is the reply of OpGetExtVoltage. State is one of the external power error numbers.
	ExtVoltageReply struct {
		Voltage int32
		State   int32
	}
)

// Validate checks the type.
func (a EraseArgs) Validate() error {
	return checkFields("EraseArgs", enumField{"Type", int64(a.Type), a.Type.Valid()})
}
