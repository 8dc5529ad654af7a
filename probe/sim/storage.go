package sim

import "github.com/ks888/fetctl/probe"

// Control values of the stored entry.
const (
	DataCycle  uint16 = 0
	FetchCycle uint16 = 1
)

// Storage is the state storage of the emulation module. It's the ring buffer of probe.TracePositions entries.
type Storage struct {
	config    probe.TraceConfig
	enabled   bool
	triggered bool
	entries   [probe.TracePositions]probe.TraceEntry
	start     int
	count     int
}

// NewStorage returns the disabled storage.
func NewStorage() *Storage {
	return &Storage{config: probe.TraceConfig{Control: probe.TraceDisable}}
}

// Configure applies the trace configuration. TraceReset clears the entries and keeps the other settings.
func (s *Storage) Configure(config probe.TraceConfig) {
	switch config.Control {
	case probe.TraceEnable:
		s.config = config
		s.enabled = true
		s.Restart()
	case probe.TraceDisable:
		s.config = config
		s.enabled = false
	case probe.TraceReset:
		s.Restart()
	}
}

// Config returns the current configuration.
func (s *Storage) Config() probe.TraceConfig {
	return s.config
}

// Enabled returns true if the storage records the bus cycles.
func (s *Storage) Enabled() bool {
	return s.enabled
}

// Restart clears the entries and waits for the trigger again.
func (s *Storage) Restart() {
	s.entries = [probe.TracePositions]probe.TraceEntry{}
	s.start, s.count = 0, 0
	s.triggered = false
}

// Cycle offers the bus cycle to the storage. trigger is true if the storage trigger fired at the cycle.
// It returns true if the entry is stored. The data cycles are ignored unless the action is TraceAllCycles.
func (s *Storage) Cycle(entry probe.TraceEntry, trigger bool) bool {
	if !s.enabled {
		return false
	}
	if entry.Control != FetchCycle && s.config.Action != probe.TraceAllCycles {
		return false
	}

	switch s.config.Mode {
	case probe.TraceFuture:
		if trigger {
			s.triggered = true
		}
		if !s.triggered {
			return false
		}
	case probe.TraceCollect:
		if !trigger {
			return false
		}
	}
	return s.push(entry)
}

func (s *Storage) push(entry probe.TraceEntry) bool {
	if s.count < len(s.entries) {
		s.entries[(s.start+s.count)%len(s.entries)] = entry
		s.count++
		return true
	}
	if !s.config.Mode.Wraps() {
		return false
	}
	s.entries[s.start] = entry
	s.start = (s.start + 1) % len(s.entries)
	return true
}

// Full returns true if all the positions are used.
func (s *Storage) Full() bool {
	return s.count == len(s.entries)
}

// Entries returns the stored entries, oldest first. Reading doesn't remove the entries.
func (s *Storage) Entries() []probe.TraceEntry {
	entries := make([]probe.TraceEntry, 0, s.count)
	for i := 0; i < s.count; i++ {
		entries = append(entries, s.entries[(s.start+i)%len(s.entries)])
	}
	return entries
}
