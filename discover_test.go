package instrument

import (
	"errors"
	"testing"

	"go.bug.st/serial/enumerator"
)

func withPorts(t *testing.T, ports []*enumerator.PortDetails) {
	t.Helper()
	old := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) { return ports, nil }
	t.Cleanup(func() { listPorts = old })
}

func TestFindSerialPort(t *testing.T) {
	withPorts(t, []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "A1"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "B2"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043", SerialNumber: "C3"},
	})

	tests := []struct {
		name    string
		vid     uint16
		pid     uint16
		sn      string
		want    string
		wantErr error
	}{
		{"single", 0x2341, 0x0043, "", "/dev/ttyACM0", nil},
		{"by serial number", 0x0403, 0x6001, "B2", "/dev/ttyUSB1", nil},
		{"ambiguous", 0x0403, 0x6001, "", "", ErrAmbiguousPort},
		{"unknown serial number", 0x0403, 0x6001, "Z9", "", ErrPortNotFound},
		{"unknown ids", 0x1234, 0x5678, "", "", ErrPortNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindSerialPort(tt.vid, tt.pid, tt.sn)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FindSerialPort() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FindSerialPort() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindSerialPort_listError(t *testing.T) {
	old := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) { return nil, errors.New("no enumerator") }
	defer func() { listPorts = old }()
	if _, err := FindSerialPort(1, 2, ""); err == nil {
		t.Errorf("FindSerialPort() error = nil")
	}
}
