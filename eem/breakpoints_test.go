package eem

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/probe/sim"
	"github.com/ks888/fetctl/session"
	"github.com/ks888/fetctl/status"
)

func TestBreakpoints_RoundTrip(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints

	for i, bp := range []probe.Breakpoint{
		probe.CodeBreakpoint(0x4400),
		probe.RangeBreakpoint(0x2400, 0x24ff, probe.BpWrite, probe.BpActionBreakAndStorage),
		{Mode: probe.BpSoftware, Address: 0x4500, Action: probe.BpActionBreak},
		{Mode: probe.BpComplex, Type: probe.BpTypeData, Address: 0xbeef, Access: probe.BpRead, Operator: probe.BpUnequal,
			Mask: 0xff00, Condition: probe.BpWithCondition, CondData: 0x12, CondAccess: probe.BpNoFetch, CondMask: 0xff},
		{Mode: probe.BpComplex, Type: probe.BpTypeRegister, Register: 4, Address: 0x10, Operator: probe.BpGreater, Action: probe.BpActionCycleCount},
	} {
		h, err := bps.Set(bp)
		if err != nil {
			t.Fatalf("[%d] failed to set: %v", i, err)
		}
		actual, err := bps.Get(h)
		if err != nil {
			t.Fatalf("[%d] failed to get: %v", i, err)
		}
		if diff := cmp.Diff(bp, actual); diff != "" {
			t.Errorf("[%d] wrong breakpoint (-want +got):\n%s", i, diff)
		}
	}
}

func TestBreakpoints_MaxHandle(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints

	var handles []probe.Handle
	for i := 0; i < probe.MaxHandle; i++ {
		h, err := bps.Set(probe.Breakpoint{Mode: probe.BpSoftware, Address: uint32(0x4400 + 2*i)})
		if err != nil {
			t.Fatalf("failed to set %dth breakpoint: %v", i+1, err)
		}
		handles = append(handles, h)
	}

	if _, err := bps.Set(probe.Breakpoint{Mode: probe.BpSoftware, Address: 0x5000}); !status.Is(err, status.ResourceErr) {
		t.Fatalf("wrong error: %v", err)
	}

	if err := bps.Clear(handles[3]); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	if _, err := bps.Set(probe.Breakpoint{Mode: probe.BpSoftware, Address: 0x5000}); err != nil {
		t.Errorf("failed to set after clear: %v", err)
	}
	if _, err := bps.Set(probe.Breakpoint{Mode: probe.BpSoftware, Address: 0x5002}); !status.Is(err, status.ResourceErr) {
		t.Errorf("wrong error: %v", err)
	}
	if bps.Live() != probe.MaxHandle {
		t.Errorf("wrong number of live handles: %d", bps.Live())
	}
}

func TestBreakpoints_MaxTrigger(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints

	if _, err := bps.Set(probe.RangeBreakpoint(0x2400, 0x2410, probe.BpDontCare, probe.BpActionBreak)); err != nil {
		t.Fatalf("failed to set range breakpoint: %v", err)
	}
	for i := 0; i < probe.MaxTrigger-2; i++ {
		if _, err := bps.Set(probe.CodeBreakpoint(uint32(0x4400 + 2*i))); err != nil {
			t.Fatalf("failed to set %dth breakpoint: %v", i+1, err)
		}
	}

	if _, err := bps.Set(probe.CodeBreakpoint(0x5000)); !status.Is(err, status.ResourceErr) {
		t.Errorf("wrong error: %v", err)
	}
	if _, err := bps.Set(probe.Breakpoint{Mode: probe.BpSoftware, Address: 0x5000}); err != nil {
		t.Errorf("software breakpoint should not use the trigger: %v", err)
	}
}

func TestBreakpoints_DeviceTriggerLimit(t *testing.T) {
	config := sim.NewDefaultConfig()
	config.Device.NBreakpoints = 2
	f := newFixture(t, config)
	bps := f.module.Breakpoints

	_, _ = bps.Set(probe.CodeBreakpoint(0x4400))
	_, _ = bps.Set(probe.CodeBreakpoint(0x4402))
	if _, err := bps.Set(probe.CodeBreakpoint(0x4404)); !status.Is(err, status.ResourceErr) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestBreakpoints_InvalidSpec(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints

	if _, err := bps.Set(probe.RangeBreakpoint(0x2410, 0x2400, probe.BpDontCare, probe.BpActionBreak)); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
	if _, err := bps.Set(probe.Breakpoint{Mode: 7}); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
	if _, err := bps.Set(probe.Breakpoint{Mode: probe.BpClear}); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
	if bps.Live() != 0 {
		t.Errorf("failed breakpoint is registered")
	}
}

func TestBreakpoints_UnknownHandle(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints

	if err := bps.Clear(3); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
	if _, err := bps.Get(3); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestBreakpoints_ClearedHandleIsNotReused(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints

	h1, _ := bps.Set(probe.CodeBreakpoint(0x4400))
	_ = bps.Clear(h1)
	h2, _ := bps.Set(probe.CodeBreakpoint(0x4400))
	if h1 == h2 {
		t.Errorf("handle %d is reused", h1)
	}
	if _, err := bps.Get(h1); err == nil {
		t.Errorf("cleared handle is still valid")
	}
}

func TestBreakpoints_CombineAndClear(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints
	h1, _ := bps.Set(probe.CodeBreakpoint(0x4400))
	h2, _ := bps.Set(probe.RangeBreakpoint(0x4400, 0x4410, probe.BpFetch, probe.BpActionBreak))

	c, err := bps.Combine(probe.CombineSet, h1, h2)
	if err != nil {
		t.Fatalf("failed to combine: %v", err)
	}
	members, err := bps.Combination(c)
	if err != nil {
		t.Fatalf("failed to get combination: %v", err)
	}
	if diff := cmp.Diff([]probe.Handle{h1, h2}, members); diff != "" {
		t.Errorf("wrong members (-want +got):\n%s", diff)
	}
	if bps.Live() != 3 {
		t.Errorf("wrong number of live handles: %d", bps.Live())
	}

	if _, err := bps.Combine(probe.CombineClear, c); err != nil {
		t.Fatalf("failed to clear combination: %v", err)
	}
	for _, h := range []probe.Handle{h1, h2} {
		if _, err := bps.Get(h); err != nil {
			t.Errorf("member %d is not gettable: %v", h, err)
		}
		if err := bps.Clear(h); err != nil {
			t.Errorf("member %d is not clearable: %v", h, err)
		}
	}
	if len(f.recorder.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", f.recorder.Warnings())
	}
}

func TestBreakpoints_ClearCombinationHandle(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints
	h1, _ := bps.Set(probe.CodeBreakpoint(0x4400))
	h2, _ := bps.Set(probe.CodeBreakpoint(0x4402))
	c, _ := bps.Combine(probe.CombineSet, h1, h2)

	if err := bps.Clear(c); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	if !bps.Exists(h1) || !bps.Exists(h2) || bps.Exists(c) {
		t.Errorf("wrong handles: %v", bps.Handles())
	}
}

func TestBreakpoints_CombineInvalid(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints
	h1, _ := bps.Set(probe.CodeBreakpoint(0x4400))
	h2, _ := bps.Set(probe.CodeBreakpoint(0x4402))
	c, _ := bps.Combine(probe.CombineSet, h1, h2)

	for i, handles := range [][]probe.Handle{{h1}, {h1, h1}, {h1, 99}, {h1, c}} {
		if _, err := bps.Combine(probe.CombineSet, handles...); !status.Is(err, status.ParameterErr) {
			t.Errorf("[%d] wrong error: %v", i, err)
		}
	}
	if _, err := bps.Combine(probe.CombineClear, h1); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestBreakpoints_CombineDetachesFromOtherCombination(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints
	var hs []probe.Handle
	for i := 0; i < 4; i++ {
		h, _ := bps.Set(probe.CodeBreakpoint(uint32(0x4400 + 2*i)))
		hs = append(hs, h)
	}

	c1, _ := bps.Combine(probe.CombineSet, hs[0], hs[1], hs[2])
	c2, err := bps.Combine(probe.CombineSet, hs[2], hs[3])
	if err != nil {
		t.Fatalf("failed to combine: %v", err)
	}
	members, _ := bps.Combination(c1)
	if diff := cmp.Diff([]probe.Handle{hs[0], hs[1]}, members); diff != "" {
		t.Errorf("wrong members of the old combination (-want +got):\n%s", diff)
	}

	if _, err := bps.Combine(probe.CombineSet, hs[1], hs[3]); err != nil {
		t.Fatalf("failed to combine: %v", err)
	}
	if bps.IsCombination(c1) || bps.IsCombination(c2) {
		t.Errorf("old combinations are not dissolved: %v", bps.Handles())
	}

	expected := []probe.WarningCode{probe.WarModCombine, probe.WarClrCombine, probe.WarClrCombine}
	if diff := cmp.Diff(expected, f.recorder.Warnings()); diff != "" {
		t.Errorf("wrong warnings (-want +got):\n%s", diff)
	}
}

func TestBreakpoints_ClearMember(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints
	h1, _ := bps.Set(probe.CodeBreakpoint(0x4400))
	h2, _ := bps.Set(probe.CodeBreakpoint(0x4402))
	h3, _ := bps.Set(probe.CodeBreakpoint(0x4404))
	c, _ := bps.Combine(probe.CombineSet, h1, h2, h3)

	if err := bps.Clear(h1); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	members, _ := bps.Combination(c)
	if diff := cmp.Diff([]probe.Handle{h2, h3}, members); diff != "" {
		t.Errorf("wrong members (-want +got):\n%s", diff)
	}

	if err := bps.Clear(h2); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	if bps.IsCombination(c) {
		t.Errorf("combination is not dissolved")
	}
	if !bps.Exists(h3) {
		t.Errorf("remaining member is cleared")
	}

	expected := []probe.WarningCode{probe.WarClrBpCombine, probe.WarClrCombine}
	if diff := cmp.Diff(expected, f.recorder.Warnings()); diff != "" {
		t.Errorf("wrong warnings (-want +got):\n%s", diff)
	}
}

func TestBreakpoints_ModifyDissolvesCombination(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints
	h1, _ := bps.Set(probe.CodeBreakpoint(0x4400))
	h2, _ := bps.Set(probe.CodeBreakpoint(0x4402))
	c, _ := bps.Combine(probe.CombineSet, h1, h2)

	modified := probe.CodeBreakpoint(0x4480)
	if err := bps.Modify(h1, modified); err != nil {
		t.Fatalf("failed to modify: %v", err)
	}
	if bps.IsCombination(c) {
		t.Errorf("combination is not dissolved")
	}
	if bp, _ := bps.Get(h1); bp != modified {
		t.Errorf("wrong breakpoint: %#v", bp)
	}
	if diff := cmp.Diff([]probe.WarningCode{probe.WarClrCombine}, f.recorder.Warnings()); diff != "" {
		t.Errorf("wrong warnings (-want +got):\n%s", diff)
	}
}

func TestBreakpoints_RunToBreakpoint(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	h, _ := f.module.Breakpoints.Set(probe.CodeBreakpoint(0x4404))

	if err := f.session.Run(probe.RunToBreakpoint, false); err != nil {
		t.Fatalf("failed to run: %v", err)
	}
	state, _, err := f.session.State(false)
	if err != nil || state != probe.BreakpointHit {
		t.Fatalf("wrong state: %v, %v", state, err)
	}

	var hit []probe.Handle
	for _, ev := range f.recorder.Events() {
		if ev.Type == probe.EventBreakpoint {
			hit = append(hit, ev.Data.(probe.Handle))
		}
	}
	if len(hit) != 1 || hit[0] != h {
		t.Errorf("wrong hit handles: %v", hit)
	}
}

func TestBreakpoints_ResetOnConnectionLost(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	bps := f.module.Breakpoints
	_, _ = bps.Set(probe.CodeBreakpoint(0x4400))

	f.target.Notify(probe.Event{Type: probe.EventDeviceConnectionLost})
	if bps.Live() != 0 {
		t.Errorf("handles survive the connection loss: %v", bps.Handles())
	}
	if _, err := bps.Set(probe.CodeBreakpoint(0x4400)); !status.Is(err, status.NoDeviceErr) {
		t.Errorf("wrong error: %v", err)
	}

	if err := f.session.OpenDevice(session.NewDefaultDeviceOptions()); err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	if _, err := bps.Set(probe.CodeBreakpoint(0x4400)); err != nil {
		t.Errorf("failed to set after reopen: %v", err)
	}
}

func guardedCombination(t *testing.T, f fixture) (c probe.Handle, members []probe.Handle) {
	t.Helper()
	bps := f.module.Breakpoints
	for i := 0; i < 3; i++ {
		h, err := bps.Set(probe.CodeBreakpoint(uint32(0x4400 + 2*i)))
		if err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		members = append(members, h)
	}
	c, err := bps.Combine(probe.CombineSet, members...)
	if err != nil {
		t.Fatalf("failed to combine: %v", err)
	}
	if err := f.module.Sequencer.Set(probe.Sequencer{Control: probe.SeqEnable, ResetHandle: c}); err != nil {
		t.Fatalf("failed to set sequencer: %v", err)
	}
	return c, members
}

func assertUnchanged(t *testing.T, f fixture, c probe.Handle, members []probe.Handle) {
	t.Helper()
	bps := f.module.Breakpoints
	actual, err := bps.Combination(c)
	if err != nil {
		t.Fatalf("failed to get combination: %v", err)
	}
	if diff := cmp.Diff(members, actual); diff != "" {
		t.Errorf("combination is changed (-want +got):\n%s", diff)
	}
	for i, h := range members {
		bp, err := bps.Get(h)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if bp != probe.CodeBreakpoint(uint32(0x4400+2*i)) {
			t.Errorf("breakpoint %d is changed: %#v", h, bp)
		}
	}
	if len(f.recorder.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", f.recorder.Warnings())
	}
}

func TestBreakpoints_ModifyMemberOfSequencerCombination(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	c, members := guardedCombination(t, f)

	if err := f.module.Breakpoints.Modify(members[0], probe.CodeBreakpoint(0x4500)); !status.Is(err, status.ClrSeqTrigger) {
		t.Errorf("wrong error: %v", err)
	}
	assertUnchanged(t, f, c, members)
}

func TestBreakpoints_CombineMemberOfSequencerCombination(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	c, members := guardedCombination(t, f)
	h4, _ := f.module.Breakpoints.Set(probe.CodeBreakpoint(0x4480))

	if _, err := f.module.Breakpoints.Combine(probe.CombineSet, members[0], members[1], h4); !status.Is(err, status.SetSeqTrigger) {
		t.Errorf("wrong error: %v", err)
	}
	assertUnchanged(t, f, c, members)
	if f.module.Breakpoints.Live() != 5 {
		t.Errorf("wrong number of live handles: %v", f.module.Breakpoints.Handles())
	}
}

func TestBreakpoints_ClearMemberOfSequencerCombination(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	c, members := guardedCombination(t, f)

	if err := f.module.Breakpoints.Clear(members[0]); !status.Is(err, status.ClrSeqTrigger) {
		t.Errorf("wrong error: %v", err)
	}
	assertUnchanged(t, f, c, members)
}
