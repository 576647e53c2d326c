package instrument

import (
	"fmt"
	"strings"
	"time"

	"github.com/thinkgos/goinstrument/usbtmc"
)

// USBTMCDevice is the subset of *usbtmc.Device the transport drives.
type USBTMCDevice interface {
	Write(b []byte) (int, error)
	ReadRaw(n int) ([]byte, error)
	Ask(msg string) (string, error)
	TermChar() byte
	SetTermChar(c byte)
	Timeout() time.Duration
	SetTimeout(t time.Duration)
	Close() error
}

var _ USBTMCDevice = (*usbtmc.Device)(nil)

// USBTMCTransport implements Transport over a USB Test & Measurement Class device.
type USBTMCTransport struct {
	dev     USBTMCDevice
	address string
}

// check USBTMCTransport implements underlying method
var (
	_ Transport         = (*USBTMCTransport)(nil)
	_ TimeoutController = (*USBTMCTransport)(nil)
	_ InputFlusher      = (*USBTMCTransport)(nil)
)

// NewUSBTMCTransport wraps dev, reads and writes end in a newline.
func NewUSBTMCTransport(dev USBTMCDevice, address string) *USBTMCTransport {
	dev.SetTermChar('\n')
	return &USBTMCTransport{dev: dev, address: address}
}

// OpenUSBTMCTransport opens the first USB-TMC device matching vid and pid,
// and serialNumber when it is not empty.
func OpenUSBTMCTransport(vid, pid uint16, serialNumber string) (*USBTMCTransport, error) {
	dev, err := usbtmc.Open(vid, pid, serialNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: usbtmc %04x:%04x: %w", ErrUnavailable, vid, pid, err)
	}
	return NewUSBTMCTransport(dev, fmt.Sprintf("usbtmc:%04x:%04x", vid, pid)), nil
}

// Address implements Transport interface.
func (sf *USBTMCTransport) Address() string { return sf.address }

// Terminator implements Transport interface, it is the device term char.
func (sf *USBTMCTransport) Terminator() string { return string(rune(sf.dev.TermChar())) }

// SetTerminator implements Transport interface, term must be one character.
func (sf *USBTMCTransport) SetTerminator(term string) error {
	if len(term) != 1 {
		return fmt.Errorf("%w: usbtmc takes a single character, got %q", ErrInvalidTerminator, term)
	}
	sf.dev.SetTermChar(term[0])
	return nil
}

// Timeout implements TimeoutController interface.
func (sf *USBTMCTransport) Timeout() time.Duration { return sf.dev.Timeout() }

// SetTimeout implements TimeoutController interface.
func (sf *USBTMCTransport) SetTimeout(d time.Duration) error {
	sf.dev.SetTimeout(d)
	return nil
}

// ReadRaw implements Transport interface. With size -1 the device stops on
// its term char, which is then stripped.
func (sf *USBTMCTransport) ReadRaw(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	b, err := sf.dev.ReadRaw(size)
	if err != nil {
		return b, err
	}
	if size < 0 {
		b = []byte(strings.TrimSuffix(string(b), sf.Terminator()))
	}
	return b, nil
}

// WriteRaw implements Transport interface.
func (sf *USBTMCTransport) WriteRaw(b []byte) error {
	_, err := sf.dev.Write(b)
	return err
}

// SendCmd implements Transport interface. The end of message is flagged by
// the transfer, no terminator is appended.
func (sf *USBTMCTransport) SendCmd(msg string) error {
	return sf.WriteRaw([]byte(msg))
}

// Query implements Transport interface.
func (sf *USBTMCTransport) Query(msg string, size int) (string, error) {
	if size < 0 {
		return sf.dev.Ask(msg)
	}
	if err := sf.SendCmd(msg); err != nil {
		return "", err
	}
	b, err := sf.dev.ReadRaw(size)
	return string(b), err
}

// FlushInput implements InputFlusher interface, there is nothing to flush.
func (sf *USBTMCTransport) FlushInput() error { return nil }

// Close implements Transport interface.
func (sf *USBTMCTransport) Close() error {
	return sf.dev.Close()
}
