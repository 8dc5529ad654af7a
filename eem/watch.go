package eem

import (
	"sort"
	"sync"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// VariableWatch records the writes to the watched variables through the state storage. The watch must be enabled
// before the variable is set, and the probe allocates the handle of the variable.
type VariableWatch struct {
	conn Conn

	mu        sync.Mutex
	gen       uint64
	enabled   bool
	variables map[probe.Handle]probe.Variable
}

// NewVariableWatch returns new VariableWatch.
func NewVariableWatch(conn Conn) *VariableWatch {
	return &VariableWatch{conn: conn, gen: conn.Generation(), variables: make(map[probe.Handle]probe.Variable)}
}

func (w *VariableWatch) sync() {
	if gen := w.conn.Generation(); gen != w.gen {
		w.gen = gen
		w.enabled = false
		w.variables = make(map[probe.Handle]probe.Variable)
	}
}

func (w *VariableWatch) requireStorage(op string) error {
	desc, err := w.conn.Device()
	if err != nil {
		return err
	}
	if !desc.StateStorage {
		return status.New(op, status.StateStorErr)
	}
	return nil
}

// Enable turns the variable watch on or off. Turning it off releases all the variables.
func (w *VariableWatch) Enable(on bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sync()

	if err := w.requireStorage("SetVariableWatch"); err != nil {
		return err
	}
	args := probe.VariableWatchArgs{Enable: probe.VariableWatchOff}
	if on {
		args.Enable = probe.VariableWatchOn
	}
	if err := w.conn.Call(probe.OpSetVariableWatch, probe.Encode(args)); err != nil {
		return err
	}

	w.enabled = on
	if !on {
		w.variables = make(map[probe.Handle]probe.Variable)
	}
	return nil
}

// Watch starts watching the variable and returns its handle. The address must be aligned to the width.
func (w *VariableWatch) Watch(addr uint32, typ probe.VariableType) (probe.Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sync()

	if !typ.Valid() {
		return 0, parameterError("SetVariable", "invalid variable type: %d", int32(typ))
	}
	if addr%typ.Size() != 0 {
		return 0, parameterError("SetVariable", "%#x is not aligned to %d bytes", addr, typ.Size())
	}
	if !w.enabled {
		return 0, status.New("SetVariable", status.VarWatchEnErr)
	}
	if len(w.variables) >= probe.MaxVariableWatch {
		return 0, status.Newf("SetVariable", status.ResourceErr, "%d variables are watched already", len(w.variables))
	}

	var h probe.Handle
	args := probe.SetVariableArgs{Control: probe.VariableSet, Address: addr, Type: typ}
	if err := w.conn.Call(probe.OpSetVariable, probe.Encode(args), &h); err != nil {
		return 0, err
	}
	if _, ok := w.variables[h]; ok || h == 0 {
		return 0, status.Newf("SetVariable", status.InternalErr, "probe returned the invalid handle %d", h)
	}
	w.variables[h] = probe.Variable{Handle: h, Address: addr, Type: typ}
	return h, nil
}

// Unwatch stops watching the variable.
func (w *VariableWatch) Unwatch(h probe.Handle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sync()

	if _, ok := w.variables[h]; !ok {
		return parameterError("SetVariable", "no variable for handle %d", h)
	}
	args := probe.SetVariableArgs{Handle: h, Control: probe.VariableClear}
	if err := w.conn.Call(probe.OpSetVariable, probe.Encode(args)); err != nil {
		return err
	}
	delete(w.variables, h)
	return nil
}

// Variables returns the watched variables in the handle order.
func (w *VariableWatch) Variables() []probe.Variable {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sync()

	variables := make([]probe.Variable, 0, len(w.variables))
	for _, v := range w.variables {
		variables = append(variables, v)
	}
	sort.Slice(variables, func(i, j int) bool { return variables[i].Handle < variables[j].Handle })
	return variables
}

// Get reads back the switch and the variables from the probe.
func (w *VariableWatch) Get() (enabled bool, variables []probe.Variable, err error) {
	if err := w.requireStorage("GetVariableWatch"); err != nil {
		return false, nil, err
	}

	var reply probe.VariableWatchReply
	if err := w.conn.Call(probe.OpGetVariableWatch, nil, &reply); err != nil {
		return false, nil, err
	}
	return reply.Enable == probe.VariableWatchOn, append([]probe.Variable(nil), reply.Variables[:reply.Count]...), nil
}
