package eem

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/probe/sim"
	"github.com/ks888/fetctl/status"
)

func addresses(entries []probe.TraceEntry) []int32 {
	var mabs []int32
	for _, entry := range entries {
		mabs = append(mabs, entry.MAB)
	}
	return mabs
}

func runOnePoll(t *testing.T, f fixture) {
	t.Helper()
	if err := f.session.Run(probe.FreeRun, false); err != nil {
		t.Fatalf("failed to run: %v", err)
	}
	if _, _, err := f.session.State(false); err != nil {
		t.Fatalf("failed to poll: %v", err)
	}
}

func TestTrace_Shot(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	trace := f.module.Trace

	config := probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceShot, Action: probe.TraceFetch}
	if err := trace.SetTrace(config); err != nil {
		t.Fatalf("failed to set trace: %v", err)
	}
	runOnePoll(t, f)

	entries, err := trace.ReadTraceBuffer()
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	expected := []int32{0x4400, 0x4402, 0x4404, 0x4406, 0x4408, 0x440a, 0x440c, 0x440e}
	if diff := cmp.Diff(expected, addresses(entries)); diff != "" {
		t.Errorf("wrong entries (-want +got):\n%s", diff)
	}
}

func TestTrace_History(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	trace := f.module.Trace

	config := probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceHistory, Action: probe.TraceFetch}
	if err := trace.SetTrace(config); err != nil {
		t.Fatalf("failed to set trace: %v", err)
	}
	runOnePoll(t, f)

	entries, err := trace.ReadTraceBuffer()
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	expected := []int32{0x4410, 0x4412, 0x4414, 0x4416, 0x4418, 0x441a, 0x441c, 0x441e}
	if diff := cmp.Diff(expected, addresses(entries)); diff != "" {
		t.Errorf("wrong entries (-want +got):\n%s", diff)
	}

	actual, err := trace.GetTrace()
	if err != nil {
		t.Fatalf("failed to get trace: %v", err)
	}
	if actual != config {
		t.Errorf("wrong config: %#v", actual)
	}
}

func TestTrace_ReadTraceData(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	trace := f.module.Trace

	_ = trace.SetTrace(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceShot})
	runOnePoll(t, f)

	for i := 0; i < 2; i++ {
		entries, err := trace.ReadTraceData(3)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if diff := cmp.Diff([]int32{0x4400, 0x4402, 0x4404}, addresses(entries)); diff != "" {
			t.Errorf("[%d] wrong entries (-want +got):\n%s", i, diff)
		}
	}

	entries, err := trace.ReadTraceData(100)
	if err != nil || len(entries) != probe.TracePositions {
		t.Errorf("wrong entries: %d, %v", len(entries), err)
	}
	if _, err := trace.ReadTraceData(0); !status.Is(err, status.ParameterErr) {
		t.Errorf("wrong error: %v", err)
	}
}

func TestTrace_Refresh(t *testing.T) {
	f := newFixture(t, sim.NewDefaultConfig())
	trace := f.module.Trace

	_ = trace.SetTrace(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceShot})
	runOnePoll(t, f)
	if _, _, err := f.session.Halt(); err != nil {
		t.Fatalf("failed to halt: %v", err)
	}

	if err := trace.RefreshTrace(); err != nil {
		t.Fatalf("failed to refresh: %v", err)
	}
	entries, err := trace.ReadTraceBuffer()
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries remain: %v", entries)
	}
}

func TestTrace_NoStateStorage(t *testing.T) {
	config := sim.NewDefaultConfig()
	config.Device.NStateStorage = 0
	f := newFixture(t, config)

	if err := f.module.Trace.SetTrace(probe.TraceConfig{Control: probe.TraceEnable}); !status.Is(err, status.StateStorErr) {
		t.Errorf("wrong error: %v", err)
	}
	if _, err := f.module.Trace.ReadTraceBuffer(); !status.Is(err, status.StateStorErr) {
		t.Errorf("wrong error: %v", err)
	}
}
