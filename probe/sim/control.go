package sim

import (
	"sort"

	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// erasedByte is the value of the erased flash memory.
const erasedByte = 0xff

func (t *Target) setVariableWatch(args []byte) ([]byte, status.Code) {
	var watchArgs probe.VariableWatchArgs
	if err := probe.Decode(args, &watchArgs); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.config.Device.NStateStorage == 0 {
		return nil, status.StateStorErr
	}

	t.eem.watching = watchArgs.Enable == probe.VariableWatchOn
	if !t.eem.watching {
		t.eem.variables = make(map[probe.Handle]probe.Variable)
	}
	return nil, status.NoErr
}

func (t *Target) setVariable(args []byte) ([]byte, status.Code) {
	var varArgs probe.SetVariableArgs
	if err := probe.Decode(args, &varArgs); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if !t.eem.watching {
		return nil, status.VarWatchEnErr
	}

	if varArgs.Control == probe.VariableClear {
		if _, ok := t.eem.variables[varArgs.Handle]; !ok {
			return nil, status.ParameterErr
		}
		delete(t.eem.variables, varArgs.Handle)
		return probe.Encode(varArgs.Handle), status.NoErr
	}

	if len(t.eem.variables) >= probe.MaxVariableWatch {
		return nil, status.ResourceErr
	}
	if _, ok := t.descriptor().RegionOf(varArgs.Address, varArgs.Type.Size()); !ok {
		return nil, status.ParameterErr
	}
	h := probe.Handle(1)
	for ; ; h++ {
		if _, used := t.eem.variables[h]; !used {
			break
		}
	}
	t.eem.variables[h] = probe.Variable{Handle: h, Address: varArgs.Address, Type: varArgs.Type}
	return probe.Encode(h), status.NoErr
}

func (t *Target) getVariableWatch(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}

	reply := probe.VariableWatchReply{Enable: probe.VariableWatchOff}
	if t.eem.watching {
		reply.Enable = probe.VariableWatchOn
	}
	handles := make([]probe.Handle, 0, len(t.eem.variables))
	for h := range t.eem.variables {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for i, h := range handles {
		reply.Variables[i] = t.eem.variables[h]
	}
	reply.Count = uint32(len(handles))
	return probe.Encode(reply), status.NoErr
}

func (t *Target) setClockControl(args []byte) ([]byte, status.Code) {
	var clock probe.ClockControl
	if err := probe.Decode(args, &clock); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	level := probe.ClockControlLevel(t.config.Device.ClockControl)
	if level == probe.GCCNone {
		return nil, status.ClkCtrlErr
	}
	if !clock.Supports(level) {
		return nil, status.ParameterErr
	}

	t.eem.clock = clock
	return nil, status.NoErr
}

func (t *Target) getClockControl(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if probe.ClockControlLevel(t.config.Device.ClockControl) == probe.GCCNone {
		return nil, status.ClkCtrlErr
	}
	return probe.Encode(t.eem.clock), status.NoErr
}

func (t *Target) getExtVoltage(args []byte) ([]byte, status.Code) {
	if !t.initialized {
		return nil, status.InitializeErr
	}

	mv := t.config.ExternalVoltage
	state := status.ExPowerOK
	switch {
	case mv == 0:
		state = status.NoExPower
	case mv < int32(t.config.Device.VccMinOp):
		state = status.LowExPower
	case mv > int32(t.config.Device.VccMaxOp):
		state = status.HighExPower
	}
	return probe.Encode(probe.ExtVoltageReply{Voltage: mv, State: int32(state)}), status.NoErr
}

func (t *Target) erase(args []byte) ([]byte, status.Code) {
	var eraseArgs probe.EraseArgs
	if err := probe.Decode(args, &eraseArgs); err != nil {
		return nil, status.ParameterErr
	}
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if !t.state.Halted() {
		return nil, status.EraseErr
	}

	desc := t.descriptor()
	switch eraseArgs.Type {
	case probe.EraseSegment:
		length := eraseArgs.Length
		if length == 0 {
			length = 1
		}
		size := uint32(probe.MainSegmentSize)
		if desc.Info.Contains(eraseArgs.Address, length) {
			size = probe.InfoSegmentSize
		} else if !desc.Main.Contains(eraseArgs.Address, length) {
			return nil, status.EraseErr
		}
		start := eraseArgs.Address &^ (size - 1)
		end := (eraseArgs.Address+length-1)&^(size-1) + size - 1
		t.fill(start, end)
	case probe.EraseMain:
		t.fill(desc.Main.Start, desc.Main.End)
	case probe.EraseAll, probe.EraseTotal:
		t.fill(desc.Main.Start, desc.Main.End)
		t.fill(desc.Info.Start, desc.Info.End)
	}
	return nil, status.NoErr
}

func (t *Target) fill(start, end uint32) {
	if start == 0 && end == 0 {
		return
	}
	for addr := uint64(start); addr <= uint64(end); addr++ {
		t.memory[uint32(addr)] = erasedByte
	}
}

func (t *Target) secure(args []byte) ([]byte, status.Code) {
	if !t.open {
		return nil, status.NoDeviceErr
	}
	if t.secured {
		return nil, status.FuseBlownErr
	}
	t.secured = true
	return nil, status.NoErr
}
