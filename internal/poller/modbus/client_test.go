// internal/poller/modbus/client_test.go
package modbus

import (
	"errors"
	"testing"

	"github.com/goburrow/modbus"
)

func TestUnpackBits(t *testing.T) {
	got := unpackBits([]byte{0b00000101, 0b00000001}, 10)
	want := []bool{true, false, true, false, false, false, false, false, true, false}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bit %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestUnpackBits_ShortPayload(t *testing.T) {
	got := unpackBits([]byte{0xFF}, 12)
	if len(got) != 12 || got[7] != true || got[8] != false {
		t.Fatalf("unexpected %v", got)
	}
}

func TestUnpackRegisters(t *testing.T) {
	got, err := unpackRegisters([]byte{0x00, 0x01, 0xFF, 0xFE}, 2)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got[0] != 1 || got[1] != 0xFFFE {
		t.Fatalf("unexpected %v", got)
	}

	if _, err := unpackRegisters([]byte{0x00}, 1); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestWrap_Exception(t *testing.T) {
	err := wrap(&modbus.ModbusError{FunctionCode: 3, ExceptionCode: 2})

	var exc *Exception
	if !errors.As(err, &exc) {
		t.Fatalf("expected Exception, got %T", err)
	}
	if exc.Code() != 2 || exc.Function != 3 {
		t.Fatalf("unexpected %+v", exc)
	}

	plain := errors.New("i/o timeout")
	if wrap(plain) != plain {
		t.Fatalf("transport errors must pass through")
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := New(Config{Protocol: "bacnet", Endpoint: "x"}); err == nil {
		t.Fatalf("expected protocol error")
	}
}
