package session

import (
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// ReadMemory reads the memory. The whole range must be within one region of the device's memory map.
func (s *Session) ReadMemory(addr uint32, length int) ([]byte, error) {
	if length <= 0 {
		return nil, status.Newf("ReadMemory", status.ParameterErr, "invalid length: %d", length)
	}

	var data []byte
	prepare := func(desc probe.DeviceDescriptor) ([]byte, error) {
		if err := checkBounds(desc, "ReadMemory", status.ReadMemoryErr, addr, length); err != nil {
			return nil, err
		}
		return probe.Encode(probe.MemoryArgs{Address: addr, Length: uint32(length), RW: probe.Read}), nil
	}
	if err := s.callWithDevice(probe.OpMemory, prepare, &data); err != nil {
		return nil, err
	}

	if len(data) != length {
		return nil, status.Newf("ReadMemory", status.InternalErr, "short reply: %d / %d", len(data), length)
	}
	return data, nil
}

// WriteMemory writes the memory. The whole range must be within one region of the device's memory map.
func (s *Session) WriteMemory(addr uint32, data []byte) error {
	if len(data) == 0 {
		return status.Newf("WriteMemory", status.ParameterErr, "no data")
	}

	prepare := func(desc probe.DeviceDescriptor) ([]byte, error) {
		if err := checkBounds(desc, "WriteMemory", status.WriteMemoryErr, addr, len(data)); err != nil {
			return nil, err
		}
		return probe.Encode(probe.MemoryArgs{Address: addr, Length: uint32(len(data)), RW: probe.Write}, data), nil
	}
	return s.callWithDevice(probe.OpMemory, prepare)
}

func checkBounds(desc probe.DeviceDescriptor, op string, code status.Code, addr uint32, length int) error {
	if _, ok := desc.RegionOf(addr, uint32(length)); !ok {
		return status.Newf(op, code, "%#x-%#x is outside of the memory map", addr, uint64(addr)+uint64(length)-1)
	}
	return nil
}
