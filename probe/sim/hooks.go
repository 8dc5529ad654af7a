package sim

import (
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// The functions below drive the simulated device from the outside of the probe protocol.

// FailNext makes the next call of the operation fail with the code.
func (t *Target) FailNext(op probe.Opcode, code status.Code) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[op] = code
}

// AdviseNext makes the next successful call of the operation return the advisory status.
func (t *Target) AdviseNext(op probe.Opcode, raw int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advisories[op] = raw
}

// Disconnect emulates the unplugged probe. The subsequent calls fail with ErrDisconnected.
func (t *Target) Disconnect() {
	t.do(func() {
		t.disconnected = true
		t.emit(probe.EventFETConnectionLost, nil)
	})
}

// Notify sends the arbitrary notification.
func (t *Target) Notify(event probe.Event) {
	t.do(func() { t.pending = append(t.pending, event) })
}

// EnterLPM5 puts the device into LPMx.5.
func (t *Target) EnterLPM5() {
	t.do(func() {
		t.state = probe.LPMx5
		t.emit(probe.EventDeviceInLPM5, nil)
	})
}

// WakeUp wakes the device up from LPMx.5.
func (t *Target) WakeUp() {
	t.do(func() {
		if t.state != probe.LPMx5 {
			return
		}
		t.state = probe.LPMx5Wakeup
		t.emit(probe.EventDeviceWakeupLPM5, nil)
	})
}

// Advance executes at most n instructions if the device is running.
func (t *Target) Advance(n int) {
	t.do(func() { t.execute(n) })
}

// State returns the run state and the elapsed cycles without the side effect.
func (t *Target) State() (probe.RunState, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.cycles
}

// SetCycles overwrites the elapsed cycles.
func (t *Target) SetCycles(cycles uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cycles = cycles
}

// Secured returns true if the security fuse is blown.
func (t *Target) Secured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.secured
}

// Released returns true if the last run request released the JTAG control.
func (t *Target) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// LoadMemory writes the data directly, regardless of the run state.
func (t *Target) LoadMemory(addr uint32, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, b := range data {
		t.memory[addr+uint32(i)] = b
	}
}

// StoredEntries returns the entries in the state storage.
func (t *Target) StoredEntries() []probe.TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eem.storage.Entries()
}
