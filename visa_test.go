package instrument

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// fakeVisa serves messages one by one.
type fakeVisa struct {
	name    string
	msgs    []string
	written []string
	timeout time.Duration
	closed  int
}

func (v *fakeVisa) ResourceName() string { return v.name }

func (v *fakeVisa) ReadRaw() ([]byte, error) {
	if len(v.msgs) == 0 {
		return nil, io.EOF
	}
	m := v.msgs[0]
	v.msgs = v.msgs[1:]
	return []byte(m), nil
}

func (v *fakeVisa) ReadBytes(n int) ([]byte, error) {
	if len(v.msgs) == 0 {
		return nil, io.EOF
	}
	m := v.msgs[0]
	if n > len(m) {
		n = len(m)
	}
	v.msgs[0] = m[n:]
	if v.msgs[0] == "" {
		v.msgs = v.msgs[1:]
	}
	return []byte(m[:n]), nil
}

func (v *fakeVisa) WriteRaw(b []byte) error {
	v.written = append(v.written, string(b))
	return nil
}

func (v *fakeVisa) Query(msg string) (string, error) {
	if err := v.WriteRaw([]byte(msg)); err != nil {
		return "", err
	}
	b, err := v.ReadRaw()
	return strings.TrimRight(string(b), "\n"), err
}

func (v *fakeVisa) Timeout() time.Duration { return v.timeout }

func (v *fakeVisa) SetTimeout(d time.Duration) error {
	v.timeout = d
	return nil
}

func (v *fakeVisa) Close() error {
	v.closed++
	return nil
}

func TestVisaTransport_ReadRaw(t *testing.T) {
	res := &fakeVisa{msgs: []string{"ABCDEF", "GHI"}}
	vt := NewVisaTransport(res)

	b, err := vt.ReadRaw(2)
	if err != nil || string(b) != "AB" {
		t.Errorf("ReadRaw(2) = %q, %v", b, err)
	}
	b, err = vt.ReadRaw(-1)
	if err != nil || string(b) != "CDEF" {
		t.Errorf("ReadRaw(-1) = %q, %v", b, err)
	}
	b, err = vt.ReadRaw(3)
	if err != nil || string(b) != "GHI" {
		t.Errorf("ReadRaw(3) = %q, %v", b, err)
	}
	if _, err = vt.ReadRaw(-2); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("ReadRaw(-2) error = %v, want %v", err, ErrInvalidSize)
	}
}

func TestVisaTransport_Query(t *testing.T) {
	res := &fakeVisa{name: "GPIB0::1::INSTR", msgs: []string{"ACME\n"}}
	vt := NewVisaTransport(res)
	if vt.Address() != "GPIB0::1::INSTR" {
		t.Errorf("Address() = %q", vt.Address())
	}
	got, err := vt.Query("*IDN?", -1)
	if err != nil || got != "ACME" {
		t.Errorf("Query() = %q, %v", got, err)
	}
	if err = vt.SendCmd("*RST"); err != nil {
		t.Fatal(err)
	}
	want := []string{"*IDN?\n", "*RST\n"}
	if len(res.written) != 2 || res.written[0] != want[0] || res.written[1] != want[1] {
		t.Errorf("wrote %q, want %q", res.written, want)
	}
	if err = vt.SetTimeout(time.Second); err != nil || vt.Timeout() != time.Second {
		t.Errorf("Timeout() = %v, SetTimeout() error = %v", vt.Timeout(), err)
	}
	if err = vt.SetTerminator("\r\n"); !errors.Is(err, ErrInvalidTerminator) {
		t.Errorf("SetTerminator(crlf) error = %v, want %v", err, ErrInvalidTerminator)
	}
	vt.Close()
	vt.Close()
	if res.closed != 1 {
		t.Errorf("resource closed %d times, want 1", res.closed)
	}
}

func TestOpenVisaResource(t *testing.T) {
	RegisterVisaBackend(nil)
	if _, err := OpenVisaResource("GPIB0::1::INSTR"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("OpenVisaResource() without backend error = %v, want %v", err, ErrUnavailable)
	}

	RegisterVisaBackend(func(resource string) (VisaResource, error) {
		return &fakeVisa{name: resource}, nil
	})
	defer RegisterVisaBackend(nil)
	res, err := OpenVisaResource("GPIB0::1::INSTR")
	if err != nil || res.ResourceName() != "GPIB0::1::INSTR" {
		t.Errorf("OpenVisaResource() = %v, %v", res, err)
	}
}
