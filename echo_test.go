package instrument

import (
	"errors"
	"testing"
)

func Test_parseEcho(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		raw     string
		want    string
		wantErr bool
	}{
		{"response", "VOLT?", "VOLT?\r\n12.00\r\n", "12.00", false},
		{"empty response", "OUTP 1", "OUTP 1\r\n\r\n", "", false},
		{"last line wins", "A?;B?", "A?;B?\r\n1\r\n2\r\n", "2", false},
		{"wrong echo", "VOLT?", "CURR?\r\n1.00\r\n", "", true},
		{"no echo", "VOLT?", "12.00", "", true},
		{"truncated", "VOLT?", "VOLT?\r\n12.0", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEcho(tt.cmd, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEcho() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrEchoMismatch) {
				t.Errorf("parseEcho() error = %v, want %v", err, ErrEchoMismatch)
			}
			if got != tt.want {
				t.Errorf("parseEcho() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEchoSerialTransport_Query(t *testing.T) {
	op := &fakeOpener{stdin: "VOLT?\r\n12.00\r\n"}
	st, err := NewSerialTransport("COM7", 9600, WithSerialOpener(op.open))
	if err != nil {
		t.Fatal(err)
	}
	et := NewEchoSerialTransport(st)
	if et.MaxMessageSize() != EchoDefaultMessageSize {
		t.Errorf("MaxMessageSize() = %d", et.MaxMessageSize())
	}
	got, err := et.Query("VOLT?", -1)
	if err != nil || got != "12.00" {
		t.Errorf("Query() = %q, %v", got, err)
	}
	if w := op.last().w.String(); w != "VOLT?\r" {
		t.Errorf("Query() wrote %q, want %q", w, "VOLT?\r")
	}
}
