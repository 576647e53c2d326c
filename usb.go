package instrument

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/gousb"
)

// USBTransport implements Transport over the raw bulk endpoints of a USB
// device. It only writes; devices that answer should be reached through
// USBTMCTransport, VisaTransport or FileTransport instead.
type USBTransport struct {
	vid, pid   uint16
	terminator string

	mu      sync.Mutex
	out     io.Writer
	release func() error
}

// check USBTransport implements underlying method
var _ Transport = (*USBTransport)(nil)

// NewUSBTransport wraps out, the device OUT endpoint. release frees the
// device and may be nil.
func NewUSBTransport(vid, pid uint16, out io.Writer, release func() error) *USBTransport {
	return &USBTransport{
		vid:        vid,
		pid:        pid,
		terminator: "\n",
		out:        out,
		release:    release,
	}
}

// OpenUSBTransport opens the device vid:pid and claims the first OUT
// endpoint of its default interface.
func OpenUSBTransport(vid, pid uint16) (*USBTransport, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: usb device %04x:%04x not found", ErrUnavailable, vid, pid)
	}
	_ = dev.SetAutoDetach(true)

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	release := func() error {
		done()
		dev.Close()
		return ctx.Close()
	}
	for _, ep := range intf.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionIn {
			continue
		}
		out, err := intf.OutEndpoint(ep.Number)
		if err != nil {
			release()
			return nil, err
		}
		return NewUSBTransport(vid, pid, out, release), nil
	}
	release()
	return nil, fmt.Errorf("%w: usb device %04x:%04x has no OUT endpoint", ErrUnavailable, vid, pid)
}

// Address implements Transport interface, formatted as vid:pid.
func (sf *USBTransport) Address() string { return fmt.Sprintf("%04x:%04x", sf.vid, sf.pid) }

// Terminator implements Transport interface.
func (sf *USBTransport) Terminator() string { return sf.terminator }

// SetTerminator implements Transport interface, any string is accepted.
func (sf *USBTransport) SetTerminator(term string) error {
	sf.terminator = term
	return nil
}

// ReadRaw is not supported.
func (sf *USBTransport) ReadRaw(int) ([]byte, error) { return nil, ErrNotSupported }

// WriteRaw implements Transport interface.
func (sf *USBTransport) WriteRaw(b []byte) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.out == nil {
		return ErrClosedConnection
	}
	_, err := sf.out.Write(b)
	return err
}

// SendCmd implements Transport interface.
func (sf *USBTransport) SendCmd(msg string) error {
	return sf.WriteRaw([]byte(msg + sf.terminator))
}

// Query is not supported.
func (sf *USBTransport) Query(string, int) (string, error) { return "", ErrNotSupported }

// Close implements Transport interface.
func (sf *USBTransport) Close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.out == nil {
		return nil
	}
	sf.out = nil
	if sf.release != nil {
		return sf.release()
	}
	return nil
}
