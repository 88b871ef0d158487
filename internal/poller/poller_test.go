// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/regmap/internal/registry"
)

type fakeClient struct {
	failFC  uint8
	failErr error
	reads   int
	closed  bool
}

type exception struct{ code uint16 }

func (e exception) Error() string { return "exception" }
func (e exception) Code() uint16  { return e.code }

func (f *fakeClient) fail(fc uint8) error {
	f.reads++
	if f.failFC != fc {
		return nil
	}
	if f.failErr != nil {
		return f.failErr
	}
	return errors.New("fail")
}

func (f *fakeClient) ReadCoils(addr, qty uint16) ([]bool, error) {
	if err := f.fail(1); err != nil {
		return nil, err
	}
	return make([]bool, qty), nil
}

func (f *fakeClient) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	if err := f.fail(2); err != nil {
		return nil, err
	}
	return make([]bool, qty), nil
}

func (f *fakeClient) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	if err := f.fail(3); err != nil {
		return nil, err
	}
	regs := make([]uint16, qty)
	for i := range regs {
		regs[i] = addr + uint16(i)
	}
	return regs, nil
}

func (f *fakeClient) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	if err := f.fail(4); err != nil {
		return nil, err
	}
	return make([]uint16, qty), nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func reads() []ReadBlock {
	return []ReadBlock{
		{FC: 1, Address: 0, Quantity: 8, Priority: registry.High},
		{FC: 3, Address: 0, Quantity: 10, Priority: registry.High},
		{FC: 4, Address: 100, Quantity: 2, Priority: registry.Low},
	}
}

func TestPollOnce_Success(t *testing.T) {
	p, err := New(Config{DeviceID: "d1", Interval: time.Second, Reads: reads()}, &fakeClient{}, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce()
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if len(res.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(res.Blocks))
	}
	if res.Blocks[1].Registers[9] != 9 {
		t.Fatalf("unexpected register payload %v", res.Blocks[1].Registers)
	}
}

func TestPollOnce_BlockFailureKeepsOthers(t *testing.T) {
	fake := &fakeClient{failFC: 3, failErr: exception{code: 2}}
	p, err := New(Config{DeviceID: "d1", Interval: time.Second, Reads: reads()}, fake, func() (Client, error) {
		t.Fatalf("factory must not be called for a protocol exception")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce()
	if res.Err == nil {
		t.Fatalf("expected error, got nil")
	}
	if len(res.Blocks) != 3 || res.Failed() != 1 {
		t.Fatalf("expected 3 blocks with 1 failure, got %d/%d", len(res.Blocks), res.Failed())
	}
	if res.Blocks[0].Err != nil || res.Blocks[2].Err != nil {
		t.Fatalf("healthy blocks must not carry errors")
	}
	if p.Client() == nil {
		t.Fatalf("client dropped on exception")
	}
}

func TestPollOnce_TransportFailureReconnects(t *testing.T) {
	broken := &fakeClient{failFC: 1}
	fresh := &fakeClient{}
	dials := 0

	p, err := New(Config{DeviceID: "d1", Interval: time.Second, Reads: reads()}, broken, func() (Client, error) {
		dials++
		return fresh, nil
	})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce()
	if res.Err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !broken.closed || p.Client() != nil {
		t.Fatalf("broken client must be closed and dropped")
	}
	if len(res.Blocks) != 1 {
		t.Fatalf("cycle must stop at transport failure, got %d blocks", len(res.Blocks))
	}

	res = p.PollOnce()
	if res.Err != nil || dials != 1 {
		t.Fatalf("expected clean cycle after one dial, err=%v dials=%d", res.Err, dials)
	}
}

func TestPollOnce_LowPriorityEveryN(t *testing.T) {
	p, err := New(Config{DeviceID: "d1", Interval: time.Second, LowEvery: 3, Reads: reads()}, &fakeClient{}, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	var got []int
	for i := 0; i < 4; i++ {
		got = append(got, len(p.PollOnce().Blocks))
	}
	want := []int{3, 2, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cycle %d: expected %d blocks, got %d", i+1, want[i], got[i])
		}
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(Config{Interval: time.Second, Reads: reads()}, &fakeClient{}, nil); err == nil {
		t.Fatalf("expected device id error")
	}
	if _, err := New(Config{DeviceID: "d1", Reads: reads()}, &fakeClient{}, nil); err == nil {
		t.Fatalf("expected interval error")
	}
	if _, err := New(Config{DeviceID: "d1", Interval: time.Second}, &fakeClient{}, nil); err == nil {
		t.Fatalf("expected reads error")
	}
	if _, err := New(Config{DeviceID: "d1", Interval: time.Second, Reads: reads()}, nil, nil); err == nil {
		t.Fatalf("expected client error")
	}
}

func TestBlocksFromPlan(t *testing.T) {
	txs := []registry.Transaction{
		{Area: registry.HoldingRegisters, Start: 10, Quantity: 4, Priority: registry.High},
		{Area: registry.Frames, Start: 0x100 << 3, Quantity: 8},
		{Area: registry.Coils, Start: 0, Quantity: 16, Priority: registry.Low},
	}

	blocks, err := BlocksFromPlan(txs)
	if err != nil {
		t.Fatalf("BlocksFromPlan err=%v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("frames must be skipped, got %d blocks", len(blocks))
	}
	if blocks[0].FC != 3 || blocks[0].Address != 10 || blocks[1].FC != 1 {
		t.Fatalf("unexpected blocks %+v", blocks)
	}

	_, err = BlocksFromPlan([]registry.Transaction{{Area: registry.HoldingRegisters, Start: 70000, Quantity: 1}})
	if err == nil {
		t.Fatalf("expected address space error")
	}
}

func TestBlockResult_Bytes(t *testing.T) {
	regs := BlockResult{FC: 3, Registers: []uint16{0x1234, 0xABCD}}
	if got := regs.Bytes(); string(got) != "\x12\x34\xAB\xCD" {
		t.Fatalf("registers staged as % x", got)
	}

	bits := BlockResult{FC: 1, Bits: []bool{true, false, true}}
	if got := bits.Bytes(); string(got) != "\x01\x00\x01" {
		t.Fatalf("bits staged as % x", got)
	}
	if bits.Area() != registry.Coils {
		t.Fatalf("expected coils area, got %s", bits.Area())
	}
}

func TestRun_ExecutesJobsBetweenPolls(t *testing.T) {
	fake := &fakeClient{}
	p, err := New(Config{DeviceID: "d1", Interval: 10 * time.Millisecond, Reads: reads()}, fake, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan PollResult, 1)
	jobs := make(chan Job)
	done := make(chan error, 1)

	go p.Run(ctx, out, jobs)

	jobs <- Job{
		Do: func(c Client) error {
			if c != fake {
				return errors.New("job got a different client")
			}
			return nil
		},
		Done: func(err error) { done <- err },
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("job err=%v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("job not executed")
	}

	select {
	case res := <-out:
		if res.DeviceID != "d1" {
			t.Fatalf("unexpected result %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatalf("no poll result")
	}
}
