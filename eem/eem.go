// Package eem manages the resources of the emulation module: breakpoints, combinations, the state storage,
// the sequencer, the cycle counters, the variable watch and the clock control.
package eem

import (
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// Conn is the session the managers drive. *session.Session implements it.
type Conn interface {
	// Call executes the operation on the open device and decodes the reply into out.
	Call(op probe.Opcode, args []byte, out ...interface{}) error
	// Device returns the snapshot of the open device.
	Device() (probe.DeviceDescriptor, error)
	// Generation changes when the handles become invalid.
	Generation() uint64
	// Notify reports the event, such as the warning, to the subscribers.
	Notify(event probe.Event)
}

// Module is the set of the managers sharing the same session.
type Module struct {
	Breakpoints *Breakpoints
	Trace       *Trace
	Sequencer   *SequencerControl
	Counters    *Counters
	Watch       *VariableWatch
	Clock       *ClockControlManager
}

// New returns the managers of the session.
func New(conn Conn) *Module {
	bps := NewBreakpoints(conn)
	return &Module{
		Breakpoints: bps,
		Trace:       NewTrace(conn),
		Sequencer:   NewSequencerControl(conn, bps),
		Counters:    NewCounters(conn),
		Watch:       NewVariableWatch(conn),
		Clock:       NewClockControl(conn),
	}
}

func warn(conn Conn, code probe.WarningCode) {
	conn.Notify(probe.Event{Type: probe.EventWarning, Data: code})
}

func parameterError(op, format string, v ...interface{}) error {
	return status.Newf(op, status.ParameterErr, format, v...)
}
