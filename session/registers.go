package session

import (
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// ReadRegister reads the register. The device must be halted.
func (s *Session) ReadRegister(reg probe.Register) (int32, error) {
	if !reg.Valid() {
		return 0, status.Newf("ReadRegister", status.ParameterErr, "invalid register: %d", int32(reg))
	}

	var value int32
	args := probe.RegisterArgs{Register: reg, RW: probe.Read}
	if err := s.Call(probe.OpRegister, probe.Encode(args), &value); err != nil {
		return 0, err
	}
	return value, nil
}

// ReadRegisterByName reads the register such as "PC" or "R12".
func (s *Session) ReadRegisterByName(name string) (int32, error) {
	reg, err := probe.ParseRegister(name)
	if err != nil {
		return 0, status.Newf("ReadRegister", status.ParameterErr, "%v", err)
	}
	return s.ReadRegister(reg)
}

// WriteRegister writes the register. The device must be halted.
func (s *Session) WriteRegister(reg probe.Register, value int32) error {
	if !reg.Valid() {
		return status.Newf("WriteRegister", status.ParameterErr, "invalid register: %d", int32(reg))
	}

	args := probe.RegisterArgs{Register: reg, RW: probe.Write, Value: value}
	return s.Call(probe.OpRegister, probe.Encode(args))
}

// ReadRegisters reads the registers selected by the mask. The values are ordered by the register index.
func (s *Session) ReadRegisters(mask uint16) ([]probe.RegisterValue, error) {
	var regs []probe.Register
	for reg := probe.Register(0); reg < probe.NumRegisters; reg++ {
		if mask&(1<<uint(reg)) != 0 {
			regs = append(regs, reg)
		}
	}
	if len(regs) == 0 {
		return nil, nil
	}

	values := make([]int32, len(regs))
	args := probe.RegistersArgs{Mask: mask, RW: probe.Read}
	if err := s.Call(probe.OpRegisters, probe.Encode(args), &values); err != nil {
		return nil, err
	}

	result := make([]probe.RegisterValue, len(regs))
	for i, reg := range regs {
		result[i] = probe.RegisterValue{Register: reg, Value: values[i]}
	}
	return result, nil
}

// WriteRegisters writes the registers at once.
func (s *Session) WriteRegisters(values []probe.RegisterValue) error {
	var ordered [probe.NumRegisters]*int32
	var mask uint16
	for i := range values {
		reg := values[i].Register
		if !reg.Valid() {
			return status.Newf("WriteRegisters", status.ParameterErr, "invalid register: %d", int32(reg))
		}
		ordered[reg] = &values[i].Value
		mask |= 1 << uint(reg)
	}

	var data []int32
	for _, v := range ordered {
		if v != nil {
			data = append(data, *v)
		}
	}
	args := probe.RegistersArgs{Mask: mask, RW: probe.Write}
	return s.Call(probe.OpRegisters, probe.Encode(args, data))
}
