// internal/writer/writer_test.go
package writer

import (
	"errors"
	"testing"

	"github.com/tamzrod/regmap/internal/device"
	"github.com/tamzrod/regmap/internal/registry"
)

// ---- fake bus client ----

type fakeBusClient struct {
	writes []writeCall
	err    error
}

type writeCall struct {
	fc   uint8
	addr uint16
	bits []bool
	regs []uint16
}

func (f *fakeBusClient) record(c writeCall) error {
	f.writes = append(f.writes, c)
	return f.err
}

func (f *fakeBusClient) WriteCoil(addr uint16, on bool) error {
	return f.record(writeCall{fc: 5, addr: addr, bits: []bool{on}})
}

func (f *fakeBusClient) WriteCoils(addr uint16, bits []bool) error {
	return f.record(writeCall{fc: 15, addr: addr, bits: bits})
}

func (f *fakeBusClient) WriteRegister(addr uint16, v uint16) error {
	return f.record(writeCall{fc: 6, addr: addr, regs: []uint16{v}})
}

func (f *fakeBusClient) WriteRegisters(addr uint16, regs []uint16) error {
	return f.record(writeCall{fc: 16, addr: addr, regs: regs})
}

// ---- tests ----

func TestPrepare_FunctionCodes(t *testing.T) {
	cases := []struct {
		name string
		req  device.WriteRequest
		fc   uint8
	}{
		{"single coil", device.WriteRequest{Area: registry.Coils, Address: 4, Data: []byte{1}}, 5},
		{"coils", device.WriteRequest{Area: registry.Coils, Address: 4, Data: []byte{1, 0, 1}}, 15},
		{"single register", device.WriteRequest{Area: registry.HoldingRegisters, Address: 100, Data: []byte{0x01, 0x02}}, 6},
		{"registers", device.WriteRequest{Area: registry.HoldingRegisters, Address: 100, Data: []byte{0, 1, 0, 2}}, 16},
	}

	for _, tc := range cases {
		op, err := Prepare(tc.req)
		if err != nil {
			t.Fatalf("%s: Prepare err=%v", tc.name, err)
		}
		if op.FC != tc.fc {
			t.Fatalf("%s: fc=%d want %d", tc.name, op.FC, tc.fc)
		}
	}
}

func TestPrepare_Rejects(t *testing.T) {
	cases := []struct {
		name string
		req  device.WriteRequest
		want error
	}{
		{"input registers", device.WriteRequest{Area: registry.InputRegisters, Data: []byte{0, 1}}, ErrReadOnlyArea},
		{"discrete inputs", device.WriteRequest{Area: registry.DiscreteInputs, Data: []byte{1}}, ErrReadOnlyArea},
		{"empty", device.WriteRequest{Area: registry.Coils}, ErrBadPayload},
		{"odd registers", device.WriteRequest{Area: registry.HoldingRegisters, Data: []byte{0, 1, 2}}, ErrBadPayload},
		{"beyond address space", device.WriteRequest{Area: registry.HoldingRegisters, Address: 65535, Data: []byte{0, 1, 0, 2}}, ErrBadPayload},
		{"too many registers", device.WriteRequest{Area: registry.HoldingRegisters, Data: make([]byte, 2*(MaxWriteRegisters+1))}, ErrBadPayload},
	}

	for _, tc := range cases {
		if _, err := Prepare(tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want %v", tc.name, err, tc.want)
		}
	}
}

func TestApply_RegisterPayload(t *testing.T) {
	fake := &fakeBusClient{}

	op, err := Prepare(device.WriteRequest{
		Device:  "d1",
		Area:    registry.HoldingRegisters,
		Address: 40,
		Data:    []byte{0x12, 0x34, 0xAB, 0xCD},
		Channel: "d1/SetPoint",
	})
	if err != nil {
		t.Fatalf("Prepare err=%v", err)
	}
	if err := op.Apply(fake); err != nil {
		t.Fatalf("Apply err=%v", err)
	}

	if len(fake.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(fake.writes))
	}
	w := fake.writes[0]
	if w.fc != 16 || w.addr != 40 || w.regs[0] != 0x1234 || w.regs[1] != 0xABCD {
		t.Fatalf("unexpected write %+v", w)
	}
}

func TestApply_CoilPayload(t *testing.T) {
	fake := &fakeBusClient{}

	op, _ := Prepare(device.WriteRequest{Area: registry.Coils, Address: 7, Data: []byte{1}})
	if err := op.Apply(fake); err != nil {
		t.Fatalf("Apply err=%v", err)
	}
	if w := fake.writes[0]; w.fc != 5 || w.addr != 7 || !w.bits[0] {
		t.Fatalf("unexpected write %+v", w)
	}
}

func TestApply_WrapsBusError(t *testing.T) {
	cause := errors.New("timeout")
	fake := &fakeBusClient{err: cause}

	op, _ := Prepare(device.WriteRequest{Area: registry.Coils, Address: 7, Data: []byte{0, 1}})
	if err := op.Apply(fake); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestCloseEach_ReportsEveryFailure(t *testing.T) {
	first, second := errors.New("first"), errors.New("second")
	calls := 0
	closer := func(err error) func() error {
		return func() error {
			calls++
			return err
		}
	}

	err := closeEach([]func() error{closer(first), closer(nil), closer(second)})
	if calls != 3 {
		t.Fatalf("expected every closer to run, got %d", calls)
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both close errors, got %v", err)
	}
	if err := closeEach(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
