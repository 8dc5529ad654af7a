package sim

import (
	"testing"

	"github.com/ks888/fetctl/probe"
)

func entry(i int) probe.TraceEntry {
	return probe.TraceEntry{MAB: int32(0x4400 + 2*i), MDB: int32(i), Control: 1}
}

func TestStorage_ShotStopsWhenFull(t *testing.T) {
	s := NewStorage()
	s.Configure(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceShot})

	for i := 0; i < probe.TracePositions; i++ {
		if !s.Cycle(entry(i), false) {
			t.Fatalf("entry %d not stored", i)
		}
	}
	if s.Cycle(entry(8), false) {
		t.Errorf("9th entry stored")
	}

	entries := s.Entries()
	if len(entries) != probe.TracePositions {
		t.Fatalf("wrong number of entries: %d", len(entries))
	}
	if entries[0] != entry(0) || entries[7] != entry(7) {
		t.Errorf("wrong entries: %v", entries)
	}
}

func TestStorage_HistoryOverwritesOldest(t *testing.T) {
	s := NewStorage()
	s.Configure(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceHistory})

	for i := 0; i < probe.TracePositions+1; i++ {
		if !s.Cycle(entry(i), false) {
			t.Fatalf("entry %d not stored", i)
		}
	}

	entries := s.Entries()
	if len(entries) != probe.TracePositions {
		t.Fatalf("wrong number of entries: %d", len(entries))
	}
	if entries[0] != entry(1) {
		t.Errorf("oldest entry is not overwritten: %v", entries[0])
	}
	if entries[7] != entry(8) {
		t.Errorf("wrong newest entry: %v", entries[7])
	}
}

func TestStorage_ReadIsNonDestructive(t *testing.T) {
	s := NewStorage()
	s.Configure(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceHistory})
	s.Cycle(entry(0), false)
	s.Cycle(entry(1), false)

	if len(s.Entries()) != 2 || len(s.Entries()) != 2 {
		t.Errorf("entries are removed by read")
	}
}

func TestStorage_FutureAndCollect(t *testing.T) {
	s := NewStorage()
	s.Configure(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceFuture})
	if s.Cycle(entry(0), false) {
		t.Errorf("stored before trigger")
	}
	s.Cycle(entry(1), true)
	s.Cycle(entry(2), false)
	if n := len(s.Entries()); n != 2 {
		t.Errorf("wrong number of entries in future mode: %d", n)
	}

	s.Configure(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceCollect})
	s.Cycle(entry(0), true)
	s.Cycle(entry(1), false)
	s.Cycle(entry(2), true)
	if n := len(s.Entries()); n != 2 {
		t.Errorf("wrong number of entries in collect mode: %d", n)
	}
}

func TestStorage_DisableAndReset(t *testing.T) {
	s := NewStorage()
	if s.Cycle(entry(0), true) {
		t.Errorf("disabled storage stored the entry")
	}

	s.Configure(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceShot})
	s.Cycle(entry(0), false)
	s.Configure(probe.TraceConfig{Control: probe.TraceReset})
	if len(s.Entries()) != 0 {
		t.Errorf("entries are not cleared")
	}
	if !s.Enabled() || s.Config().Mode != probe.TraceShot {
		t.Errorf("reset changed the config: %#v", s.Config())
	}
}

func TestStorage_Action(t *testing.T) {
	data := probe.TraceEntry{MAB: 0x4402, MDB: 0x1234, Control: DataCycle}

	s := NewStorage()
	s.Configure(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceHistory, Action: probe.TraceFetch})
	s.Cycle(entry(0), false)
	if s.Cycle(data, false) {
		t.Errorf("data cycle stored while tracing the fetches")
	}

	s.Configure(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceHistory, Action: probe.TraceAllCycles})
	s.Cycle(entry(0), false)
	if !s.Cycle(data, false) {
		t.Errorf("data cycle not stored while tracing all the cycles")
	}
	if entries := s.Entries(); len(entries) != 2 || entries[1] != data {
		t.Errorf("wrong entries: %v", entries)
	}
}

func TestStorage_Full(t *testing.T) {
	s := NewStorage()
	s.Configure(probe.TraceConfig{Control: probe.TraceEnable, Mode: probe.TraceShot})
	for i := 0; i < probe.TracePositions-1; i++ {
		s.Cycle(entry(i), false)
	}
	if s.Full() {
		t.Fatalf("full before the last position is used")
	}
	s.Cycle(entry(probe.TracePositions-1), false)
	if !s.Full() {
		t.Errorf("not full")
	}
}
