package instrument

import (
	"bytes"
	"fmt"
	"sync"
	"time"
)

// VisaResource is an open VISA session provided by a VISA library binding.
type VisaResource interface {
	// ResourceName returns the VISA resource name, for example
	// "USB::0x0699::0x0401::C0000001::0::INSTR".
	ResourceName() string
	// ReadRaw reads one complete message.
	ReadRaw() ([]byte, error)
	// ReadBytes reads exactly n bytes.
	ReadBytes(n int) ([]byte, error)
	WriteRaw(b []byte) error
	// Query writes msg and reads the response message.
	Query(msg string) (string, error)
	Timeout() time.Duration
	SetTimeout(d time.Duration) error
	Close() error
}

// VisaBackend opens VISA resources by name.
type VisaBackend func(resource string) (VisaResource, error)

var (
	visaMu      sync.RWMutex
	visaBackend VisaBackend
)

// RegisterVisaBackend installs the VISA library binding used by OpenVisa,
// a nil backend uninstalls it.
func RegisterVisaBackend(b VisaBackend) {
	visaMu.Lock()
	visaBackend = b
	visaMu.Unlock()
}

// OpenVisaResource opens resource with the registered backend.
func OpenVisaResource(resource string) (VisaResource, error) {
	visaMu.RLock()
	b := visaBackend
	visaMu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("%w: no visa backend registered", ErrUnavailable)
	}
	return b(resource)
}

// VisaTransport implements Transport over a VISA resource.
type VisaTransport struct {
	res        VisaResource
	terminator string
	closed     bool
	// leftover of a message read in part
	buf []byte
}

// check VisaTransport implements underlying method
var (
	_ Transport         = (*VisaTransport)(nil)
	_ TimeoutController = (*VisaTransport)(nil)
	_ InputFlusher      = (*VisaTransport)(nil)
)

// NewVisaTransport wraps an open VISA resource.
func NewVisaTransport(res VisaResource) *VisaTransport {
	return &VisaTransport{res: res, terminator: "\n"}
}

// Address implements Transport interface, it is the resource name.
func (sf *VisaTransport) Address() string { return sf.res.ResourceName() }

// Terminator implements Transport interface.
func (sf *VisaTransport) Terminator() string { return sf.terminator }

// SetTerminator implements Transport interface, at most one character.
func (sf *VisaTransport) SetTerminator(term string) error {
	if len(term) > 1 {
		return fmt.Errorf("%w: visa terminator must be at most 1 character long", ErrInvalidTerminator)
	}
	sf.terminator = term
	return nil
}

// Timeout implements TimeoutController interface.
func (sf *VisaTransport) Timeout() time.Duration { return sf.res.Timeout() }

// SetTimeout implements TimeoutController interface.
func (sf *VisaTransport) SetTimeout(d time.Duration) error { return sf.res.SetTimeout(d) }

// FlushInput does nothing, the resource owns its buffers.
func (sf *VisaTransport) FlushInput() error { return nil }

// ReadRaw implements Transport interface. A sized read keeps the rest of
// the underlying read for the next call, a terminated read returns the
// leftover followed by the next message, less the terminator.
func (sf *VisaTransport) ReadRaw(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	if size == -1 {
		b, err := sf.res.ReadRaw()
		msg := append(sf.buf, b...)
		sf.buf = nil
		if err != nil {
			return msg, err
		}
		return bytes.TrimSuffix(msg, []byte(sf.terminator)), nil
	}
	if len(sf.buf) < size {
		b, err := sf.res.ReadBytes(size - len(sf.buf))
		sf.buf = append(sf.buf, b...)
		if err != nil {
			return nil, err
		}
	}
	n := size
	if n > len(sf.buf) {
		n = len(sf.buf)
	}
	msg := make([]byte, n)
	copy(msg, sf.buf)
	sf.buf = sf.buf[n:]
	if n < size {
		return msg, fmt.Errorf("%w: read %d of %d bytes", ErrTimeout, n, size)
	}
	return msg, nil
}

// WriteRaw implements Transport interface.
func (sf *VisaTransport) WriteRaw(b []byte) error { return sf.res.WriteRaw(b) }

// SendCmd implements Transport interface.
func (sf *VisaTransport) SendCmd(msg string) error {
	return sf.WriteRaw([]byte(msg + sf.terminator))
}

// Query implements Transport interface with the resource native query,
// size is not used.
func (sf *VisaTransport) Query(msg string, _ int) (string, error) {
	return sf.res.Query(msg + sf.terminator)
}

// Close implements Transport interface.
func (sf *VisaTransport) Close() error {
	if sf.closed {
		return nil
	}
	sf.closed = true
	return sf.res.Close()
}
