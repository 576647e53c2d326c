package instrument

import (
	"errors"
	"fmt"

	"go.bug.st/serial/enumerator"
)

// USB serial port discovery errors.
var (
	ErrPortNotFound  = errors.New("instrument: could not find a serial port")
	ErrAmbiguousPort = errors.New("instrument: found more than one matching serial port from vid/pid pair")
)

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// FindSerialPort returns the name of the USB serial port with the given
// vendor and product id. serialNumber selects one device when several
// share the ids, an empty serialNumber requires a single match.
func FindSerialPort(vid, pid uint16, serialNumber string) (string, error) {
	ports, err := listPorts()
	if err != nil {
		return "", err
	}

	var name string
	matches := 0
	for _, p := range ports {
		if !p.IsUSB || !matchUSBID(p.VID, vid) || !matchUSBID(p.PID, pid) {
			continue
		}
		if serialNumber != "" {
			if p.SerialNumber == serialNumber {
				return p.Name, nil
			}
			continue
		}
		name = p.Name
		if matches++; matches > 1 {
			return "", ErrAmbiguousPort
		}
	}
	if name == "" {
		if serialNumber == "" {
			serialNumber = "any"
		}
		return "", fmt.Errorf("%w with the attributes vid: %#04x, pid: %#04x, serial number: %s",
			ErrPortNotFound, vid, pid, serialNumber)
	}
	return name, nil
}

// matchUSBID compares the hexadecimal id string reported by the enumerator.
func matchUSBID(s string, id uint16) bool {
	v, err := parseUSBID(s)
	return err == nil && v == id
}
