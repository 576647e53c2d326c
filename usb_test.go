package instrument

import (
	"bytes"
	"errors"
	"testing"
)

func TestUSBTransport(t *testing.T) {
	out := &bytes.Buffer{}
	released := 0
	ut := NewUSBTransport(0x1234, 0xabcd, out, func() error {
		released++
		return nil
	})
	if ut.Address() != "1234:abcd" {
		t.Errorf("Address() = %q", ut.Address())
	}
	if err := ut.SendCmd("OUT 1"); err != nil {
		t.Fatal(err)
	}
	if err := ut.SetTerminator("\r"); err != nil {
		t.Fatal(err)
	}
	if err := ut.SendCmd("OUT 0"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "OUT 1\nOUT 0\r" {
		t.Errorf("wrote %q", out.String())
	}

	if _, err := ut.ReadRaw(-1); !errors.Is(err, ErrNotSupported) {
		t.Errorf("ReadRaw() error = %v, want %v", err, ErrNotSupported)
	}
	if _, err := ut.Query("X?", -1); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Query() error = %v, want %v", err, ErrNotSupported)
	}

	ut.Close()
	ut.Close()
	if released != 1 {
		t.Errorf("released %d times, want 1", released)
	}
	if err := ut.WriteRaw([]byte("x")); !errors.Is(err, ErrClosedConnection) {
		t.Errorf("WriteRaw() after Close() error = %v, want %v", err, ErrClosedConnection)
	}
}
