package probe

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleRecord() DeviceRecord {
	r := NewDeviceRecord()
	r.ID = 0x5529
	r.String = DeviceName("MSP430F5529")
	r.RAMStart, r.RAMEnd = 0x2400, 0x43ff
	r.MainStart, r.MainEnd = 0x4400, 0x243ff
	r.InfoStart, r.InfoEnd = 0x1800, 0x19ff
	r.VccMinOp, r.VccMaxOp = 1800, 3600
	r.NBreakpoints = 8
	r.CPUArch = uint8(ArchXv2)
	r.Emulation = uint16(EmexLarge5xx)
	r.NSequencer = 1
	r.NStateStorage = 1
	r.NCycleCounter = 2
	return r
}

func TestDeviceRecord_Size(t *testing.T) {
	data := Encode(sampleRecord())
	if len(data) != DeviceRecordSize {
		t.Errorf("wrong record size: %d", len(data))
	}
	if data[0] != 0x55 || data[1] != 0xaa {
		t.Errorf("wrong endian marker: %x", data[:2])
	}
}

func TestNewDeviceDescriptor(t *testing.T) {
	data := Encode(sampleRecord())
	var record DeviceRecord
	if err := Decode(data, &record); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	desc, err := NewDeviceDescriptor(record)
	if err != nil {
		t.Fatalf("failed to create descriptor: %v", err)
	}
	if desc.Name != "MSP430F5529" {
		t.Errorf("wrong name: %q", desc.Name)
	}
	expectedMain := Region{Name: "FLASH", Start: 0x4400, End: 0x243ff}
	if diff := cmp.Diff(expectedMain, desc.Main); diff != "" {
		t.Errorf("wrong main region (-want +got):\n%s", diff)
	}
	if !desc.Sequencer || !desc.StateStorage || desc.CycleCounters != 2 || desc.Breakpoints != 8 {
		t.Errorf("wrong debug resources: %#v", desc)
	}
	if desc.RAM2.Implemented() {
		t.Errorf("RAM2 should not be implemented")
	}
}

func TestNewDeviceDescriptor_InvalidRecord(t *testing.T) {
	record := sampleRecord()
	record.Endian = 0x55aa
	var fieldErr InvalidFieldError
	if _, err := NewDeviceDescriptor(record); !errors.As(err, &fieldErr) || fieldErr.Field != "Endian" {
		t.Errorf("wrong error: %v", err)
	}

	record = sampleRecord()
	record.CPUArch = 3
	if _, err := NewDeviceDescriptor(record); !errors.As(err, &fieldErr) || fieldErr.Field != "CPUArch" {
		t.Errorf("wrong error: %v", err)
	}
}

func TestDeviceDescriptor_RegionOf(t *testing.T) {
	desc := DeviceDescriptor{RAM: Region{Name: "RAM", Start: 0x200, End: 0x2ff}}

	for i, testdata := range []struct {
		addr, length uint32
		ok           bool
	}{
		{0x200, 16, true},
		{0x2f0, 16, true},
		{0x2f1, 16, false},
		{0x300, 16, false},
		{0x1ff, 2, false},
		{0x200, 0, false},
		{0xffffffff, 2, false},
	} {
		region, ok := desc.RegionOf(testdata.addr, testdata.length)
		if ok != testdata.ok {
			t.Errorf("[%d] wrong result: %v", i, ok)
		}
		if ok && region.Name != "RAM" {
			t.Errorf("[%d] wrong region: %v", i, region)
		}
	}
}

func TestOpenDeviceArgs(t *testing.T) {
	args := OpenDeviceArgs{Device: "DEVICE_UNKNOWN", Password: []byte{0xde, 0xad}, DeviceCode: 0x1234, SetID: 1}
	data, err := args.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded OpenDeviceArgs
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if diff := cmp.Diff(args, decoded); diff != "" {
		t.Errorf("wrong args (-want +got):\n%s", diff)
	}

	if err := decoded.UnmarshalBinary(data[:len(data)-1]); err == nil {
		t.Errorf("truncated data should fail")
	}
}
