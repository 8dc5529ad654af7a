package utils

import "fmt"

const (
	majorUnit = 10000000
	minorUnit = 100000
	patchUnit = 1000
)

// The raw versions the probe returns when its firmware doesn't match the host library.
const (
	versionConflict      = -1
	versionMajorConflict = -3
)

// FirmwareVersion represents the version of the probe firmware, 'a.bb.cc.ddd'.
type FirmwareVersion struct {
	Raw                        int32
	Major, Minor, Patch, Flavor int
	// Conflict is true if the probe firmware and the host don't match and the firmware needs the update.
	Conflict bool
	// MajorUpdate is true if the conflict requires the major internal update.
	MajorUpdate bool
}

// ParseFirmwareVersion decodes the raw version 'major*10_000_000 + minor*100_000 + patch*1_000 + flavor'.
func ParseFirmwareVersion(raw int32) FirmwareVersion {
	version := FirmwareVersion{Raw: raw}

	switch raw {
	case versionConflict:
		version.Conflict = true
		return version
	case versionMajorConflict:
		version.Conflict = true
		version.MajorUpdate = true
		return version
	}
	if raw < 0 {
		version.Conflict = true
		return version
	}

	v := int(raw)
	version.Major = v / majorUnit
	version.Minor = v % majorUnit / minorUnit
	version.Patch = v % minorUnit / patchUnit
	version.Flavor = v % patchUnit
	return version
}

// Encode returns the raw representation of the version.
func (v FirmwareVersion) Encode() int32 {
	return int32(v.Major*majorUnit + v.Minor*minorUnit + v.Patch*patchUnit + v.Flavor)
}

func (v FirmwareVersion) String() string {
	if v.Conflict {
		return fmt.Sprintf("conflict(%d)", v.Raw)
	}
	return fmt.Sprintf("%d.%02d.%02d.%03d", v.Major, v.Minor, v.Patch, v.Flavor)
}

// LaterThan returns true if the version is equal to or later than the given version.
func (v FirmwareVersion) LaterThan(target FirmwareVersion) bool {
	if v.Major > target.Major {
		return true
	} else if v.Major < target.Major {
		return false
	}

	if v.Minor > target.Minor {
		return true
	} else if v.Minor < target.Minor {
		return false
	}

	if v.Patch > target.Patch {
		return true
	} else if v.Patch < target.Patch {
		return false
	}

	return v.Flavor >= target.Flavor
}
