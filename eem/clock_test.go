package eem

import (
	"testing"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/probe/sim"
	"github.com/ks888/fetctl/status"
)

func TestClockControl_RoundTrip(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	clock := probe.ClockControl{Mode: probe.ClockControlEnable, Modules: probe.ModuleWDT | probe.ModuleADC, General: probe.StopACLK}

	if err := f.module.Clock.Set(clock); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	actual, err := f.module.Clock.Get()
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if actual != clock {
		t.Errorf("wrong clock control: %#v", actual)
	}
}

func TestClockControl_Level(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())

	for _, clock := range []probe.ClockControl{
		{Mode: probe.ClockControlEnable, General: probe.StopMCLK},
		{Mode: probe.ClockControlEnable, General: probe.StopTACLK},
		{Mode: probe.ClockControlEnable, Modules: 1 << 15},
		{Mode: 2},
	} {
		if err := f.module.Clock.Set(clock); !status.Is(err, status.ParameterErr) {
			t.Errorf("wrong error for %#v: %v", clock, err)
		}
	}

	config := sim.NewDefaultConfig()
	config.Device.ClockControl = uint16(probe.GCCStandard)
	f = newFixture(t, config)
	if err := f.module.Clock.Set(probe.ClockControl{Mode: probe.ClockControlEnable, Modules: probe.ModuleWDT}); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
	if err := f.module.Clock.Set(probe.ClockControl{Mode: probe.ClockControlEnable, General: probe.StopMCLK | probe.StopTACLK}); err != nil {
		t.Errorf("failed to set: %v", err)
	}
}

func TestClockControl_NoClockControl(t *testing.T) {
	config := sim.NewDefaultConfig()
	config.Device.ClockControl = uint16(probe.GCCNone)
	f := newFixture(t, config)

	if err := f.module.Clock.Set(probe.ClockControl{Mode: probe.ClockControlEnable}); !status.Is(err, status.ClkCtrlErr) {
		t.Errorf("wrong error: %v", err)
	}
	if _, err := f.module.Clock.Get(); !status.Is(err, status.ClkCtrlErr) {
		t.Errorf("wrong error: %v", err)
	}
}
