package probe

import "testing"

func TestParseRegister(t *testing.T) {
	for _, testdata := range []struct {
		name     string
		expected Register
	}{
		{"PC", 0},
		{"sp", 1},
		{"SR", 2},
		{"CG1", 2},
		{"CG2", 3},
		{"R15", 15},
		{"r4", 4},
	} {
		reg, err := ParseRegister(testdata.name)
		if err != nil {
			t.Errorf("failed to parse %s: %v", testdata.name, err)
			continue
		}
		if reg != testdata.expected {
			t.Errorf("wrong register for %s: %v", testdata.name, reg)
		}
	}

	for _, name := range []string{"R16", "", "PCX", "R-1"} {
		if _, err := ParseRegister(name); err == nil {
			t.Errorf("should fail: %q", name)
		}
	}
}

func TestMask(t *testing.T) {
	if mask := Mask(PC, SP, 15); mask != 0x8003 {
		t.Errorf("wrong mask: %#x", mask)
	}
}

func TestRunState_Halted(t *testing.T) {
	for _, state := range []RunState{Stopped, SingleStepComplete, BreakpointHit} {
		if !state.Halted() {
			t.Errorf("should be halted: %v", state)
		}
	}
	for _, state := range []RunState{Running, LPMx5, LPMx5Wakeup} {
		if state.Halted() {
			t.Errorf("should not be halted: %v", state)
		}
	}
}

func TestResetMethod_Valid(t *testing.T) {
	if !(PUCReset | ForceReset).Valid() {
		t.Errorf("should be valid")
	}
	if ForceReset.Valid() || ResetMethod(0).Valid() || ResetMethod(1<<4|1).Valid() {
		t.Errorf("should be invalid")
	}
}

func TestBreakpoint_Triggers(t *testing.T) {
	for i, testdata := range []struct {
		bp       Breakpoint
		expected int
	}{
		{CodeBreakpoint(0x4400), 1},
		{RangeBreakpoint(0x200, 0x2ff, BpWrite, BpActionBreak), 2},
		{Breakpoint{Mode: BpSoftware, Address: 0x4400}, 0},
		{Breakpoint{Mode: BpComplex, Type: BpTypeRegister, Register: 5}, 0},
		{Breakpoint{Mode: BpComplex, Type: BpTypeData, Condition: BpWithCondition}, 2},
	} {
		if n := testdata.bp.Triggers(); n != testdata.expected {
			t.Errorf("[%d] wrong number of triggers: %d", i, n)
		}
	}
}
