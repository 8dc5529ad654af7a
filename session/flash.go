package session

import (
	"github.com/ks888/fetctl/probe"
	"github.com/ks888/fetctl/status"
)

// Erase erases the flash memory. addr and length are used only by the segment erase, which erases every
// segment overlapping [addr, addr+length).
func (s *Session) Erase(typ probe.EraseType, addr, length uint32) error {
	if !typ.Valid() {
		return status.Newf("Erase", status.ParameterErr, "invalid erase type: %d", int32(typ))
	}
	if typ == probe.EraseSegment && length == 0 {
		length = 1
	}

	prepare := func(desc probe.DeviceDescriptor) ([]byte, error) {
		if typ == probe.EraseSegment && !desc.Main.Contains(addr, length) && !desc.Info.Contains(addr, length) {
			return nil, status.Newf("Erase", status.EraseErr, "%#x-%#x is outside of the flash memory", addr, uint64(addr)+uint64(length)-1)
		}
		return probe.Encode(probe.EraseArgs{Type: typ, Address: addr, Length: length}), nil
	}
	if err := s.callWithDevice(probe.OpErase, prepare); err != nil {
		return err
	}
	s.log.Debugf("erased %s memory", typ)
	return nil
}

// Secure blows the security fuse. The device can't be opened over JTAG afterwards.
func (s *Session) Secure() error {
	if err := s.Call(probe.OpSecure, nil); err != nil {
		return err
	}
	s.log.Warnf("blew the security fuse of the device on %s", s.path)
	return nil
}

// ExternalVoltage returns the voltage of the external supply in mV and its state, one of NoExPower, LowExPower,
// ExPowerOK and HighExPower.
func (s *Session) ExternalVoltage() (int, status.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reply probe.ExtVoltageReply
	if err := s.call(probe.OpGetExtVoltage, nil, &reply); err != nil {
		return 0, 0, err
	}
	return int(reply.Voltage), status.Code(reply.State), nil
}

// Interfaces lists the probes the transport can open. The transport must implement probe.Enumerator.
func Interfaces(transport probe.Transport) ([]probe.Interface, error) {
	enumerator, ok := transport.(probe.Enumerator)
	if !ok {
		return nil, status.Newf("GetNumberOfUsbIfs", status.InterfaceSupportErr, "%T can't list the interfaces", transport)
	}
	interfaces, err := enumerator.Interfaces()
	if err != nil {
		return nil, status.Newf("GetNumberOfUsbIfs", status.USBFETNotFoundErr, "%v", err)
	}
	return interfaces, nil
}
