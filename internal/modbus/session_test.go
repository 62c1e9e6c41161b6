package modbus

import (
	"testing"
	"time"
)

func TestDecodeRegistersBigEndian(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xFF, 0xFE, 0x12, 0x34}
	regs := decodeRegisters(raw)

	want := []uint16{1, 0xFFFE, 0x1234}
	if len(regs) != len(want) {
		t.Fatalf("len = %d, want %d", len(regs), len(want))
	}
	for i := range want {
		if regs[i] != want[i] {
			t.Errorf("regs[%d] = %#x, want %#x", i, regs[i], want[i])
		}
	}
}

func TestDecodeRegistersEmpty(t *testing.T) {
	regs := decodeRegisters(nil)
	if len(regs) != 0 {
		t.Fatalf("expected empty slice, got %v", regs)
	}
}

func TestRegisterLayoutConstants(t *testing.T) {
	if GapAddress != 30720 {
		t.Errorf("GapAddress = %d, want 30720", GapAddress)
	}
	if RegisterCount != 11 {
		t.Errorf("RegisterCount = %d, want 11", RegisterCount)
	}
	indices := []int{IdxOperationType, IdxWeight, IdxClassification, IdxPPM, IdxReason, IdxOperationID}
	for _, idx := range indices {
		if idx < 0 || idx >= RegisterCount {
			t.Errorf("index %d out of register range [0,%d)", idx, RegisterCount)
		}
	}
}

func TestNewSessionBuildsAddressAndBreaker(t *testing.T) {
	s := NewSession("cw-01", "192.168.1.50", 502, 5*time.Second)
	if s.address != "192.168.1.50:502" {
		t.Errorf("address = %q, want 192.168.1.50:502", s.address)
	}
	if s.breaker == nil {
		t.Error("expected a circuit breaker to be constructed")
	}
}

func TestCloseOnUnconnectedSessionIsNoop(t *testing.T) {
	s := NewSession("cw-01", "192.168.1.50", 502, time.Second)
	s.Close() // must not panic when no connection was ever established
}
