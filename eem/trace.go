package eem

import (
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// Trace controls the state storage, the ring buffer of probe.TracePositions entries. In the history and future modes
// the oldest entry is overwritten once the buffer is full. In the shot and collect modes the capture halts instead.
// Reading the buffer doesn't remove the entries.
type Trace struct {
	conn Conn
}

// NewTrace returns new Trace.
func NewTrace(conn Conn) *Trace {
	return &Trace{conn: conn}
}

func (t *Trace) requireStorage(op string) error {
	desc, err := t.conn.Device()
	if err != nil {
		return err
	}
	if !desc.StateStorage {
		return status.New(op, status.StateStorErr)
	}
	return nil
}

// SetTrace programs the state storage.
func (t *Trace) SetTrace(config probe.TraceConfig) error {
	if err := config.Validate(); err != nil {
		return parameterError("SetTrace", "%v", err)
	}
	if err := t.requireStorage("SetTrace"); err != nil {
		return err
	}
	return t.conn.Call(probe.OpSetTrace, probe.Encode(config))
}

// GetTrace reads back the configuration of the state storage.
func (t *Trace) GetTrace() (probe.TraceConfig, error) {
	if err := t.requireStorage("GetTrace"); err != nil {
		return probe.TraceConfig{}, err
	}

	var config probe.TraceConfig
	if err := t.conn.Call(probe.OpGetTrace, nil, &config); err != nil {
		return probe.TraceConfig{}, err
	}
	return config, nil
}

// ReadTraceBuffer returns all the stored entries, oldest first.
func (t *Trace) ReadTraceBuffer() ([]probe.TraceEntry, error) {
	if err := t.requireStorage("ReadTraceBuffer"); err != nil {
		return nil, err
	}

	var reply probe.TraceBufferReply
	if err := t.conn.Call(probe.OpReadTraceBuffer, nil, &reply); err != nil {
		return nil, err
	}
	if reply.Count > probe.TracePositions {
		return nil, status.Newf("ReadTraceBuffer", status.ReadTraceErr, "too many entries: %d", reply.Count)
	}
	return append([]probe.TraceEntry(nil), reply.Entries[:reply.Count]...), nil
}

// ReadTraceData returns at most max entries, oldest first.
func (t *Trace) ReadTraceData(max int) ([]probe.TraceEntry, error) {
	if max <= 0 {
		return nil, parameterError("ReadTraceData", "invalid number of entries: %d", max)
	}
	if max > probe.TracePositions {
		max = probe.TracePositions
	}
	if err := t.requireStorage("ReadTraceData"); err != nil {
		return nil, err
	}

	var raw []byte
	if err := t.conn.Call(probe.OpReadTraceData, probe.Encode(probe.TraceDataArgs{Max: uint32(max)}), &raw); err != nil {
		return nil, err
	}

	var header probe.TraceDataReply
	var rest []byte
	if err := probe.Decode(raw, &header, &rest); err != nil {
		return nil, status.Newf("ReadTraceData", status.ReadTraceErr, "malformed reply: %v", err)
	}
	if header.Count > uint32(max) {
		return nil, status.Newf("ReadTraceData", status.ReadTraceErr, "too many entries: %d", header.Count)
	}
	entries := make([]probe.TraceEntry, header.Count)
	if err := probe.Decode(rest, &entries); err != nil {
		return nil, status.Newf("ReadTraceData", status.ReadTraceErr, "malformed reply: %v", err)
	}
	return entries, nil
}

// RefreshTrace clears the stored entries and restarts the capture.
func (t *Trace) RefreshTrace() error {
	if err := t.requireStorage("RefreshTrace"); err != nil {
		return err
	}
	return t.conn.Call(probe.OpRefreshTraceBuffer, nil)
}
