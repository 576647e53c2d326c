package instrument

import (
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Communicator decorates a Transport with debug logging, text encoding and
// capability dispatch. Every transport is used through one.
type Communicator struct {
	Transport
	clogs
	encoding encoding.Encoding
}

// NewCommunicator creates a new communicator with given transport.
func NewCommunicator(t Transport, opts ...Option) *Communicator {
	c := &Communicator{
		Transport: t,
		clogs:     newClogWithPrefix(t.Address()),
		encoding:  unicode.UTF8,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendCmd sends a command without waiting for a response.
func (sf *Communicator) SendCmd(msg string) error {
	sf.Debugf(" <- %q", msg)
	return sf.Transport.SendCmd(msg)
}

// Query sends a command and returns the response.
// size -1 reads up to the terminator, otherwise size bytes.
func (sf *Communicator) Query(msg string, size int) (string, error) {
	if err := checkSize(size); err != nil {
		return "", err
	}
	sf.Debugf(" <- %q", msg)
	resp, err := sf.Transport.Query(msg, size)
	if err != nil {
		return resp, err
	}
	sf.Debugf(" -> %q", resp)
	return resp, nil
}

// ReadRaw reads bytes, see Transport.ReadRaw.
func (sf *Communicator) ReadRaw(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return sf.Transport.ReadRaw(size)
}

// Read reads and decodes text with the communicator encoding.
func (sf *Communicator) Read(size int) (string, error) {
	return sf.ReadEncoded(size, sf.encoding)
}

// ReadEncoded reads and decodes text with enc. Bytes that arrived before a
// read error are decoded and returned with the error.
func (sf *Communicator) ReadEncoded(size int, enc encoding.Encoding) (string, error) {
	b, err := sf.ReadRaw(size)
	if len(b) == 0 {
		return "", err
	}
	s, derr := enc.NewDecoder().Bytes(b)
	if derr != nil {
		return "", derr
	}
	return string(s), err
}

// Write encodes msg with the communicator encoding and writes it unchanged.
func (sf *Communicator) Write(msg string) error {
	return sf.WriteEncoded(msg, sf.encoding)
}

// WriteEncoded encodes msg with enc and writes it unchanged.
func (sf *Communicator) WriteEncoded(msg string, enc encoding.Encoding) error {
	b, err := enc.NewEncoder().Bytes([]byte(msg))
	if err != nil {
		return err
	}
	return sf.WriteRaw(b)
}

// Timeout returns the transport timeout.
func (sf *Communicator) Timeout() (time.Duration, error) {
	tc, ok := sf.Transport.(TimeoutController)
	if !ok {
		return 0, ErrNotSupported
	}
	return tc.Timeout(), nil
}

// SetTimeout changes the transport timeout.
func (sf *Communicator) SetTimeout(d time.Duration) error {
	tc, ok := sf.Transport.(TimeoutController)
	if !ok {
		return ErrNotSupported
	}
	return tc.SetTimeout(d)
}

// SetAddress changes the transport address.
func (sf *Communicator) SetAddress(addr string) error {
	as, ok := sf.Transport.(AddressSetter)
	if !ok {
		return ErrNotSupported
	}
	return as.SetAddress(addr)
}

// FlushInput discards pending input.
func (sf *Communicator) FlushInput() error {
	fl, ok := sf.Transport.(InputFlusher)
	if !ok {
		return ErrNotSupported
	}
	return fl.FlushInput()
}

// SetDebug enable or disable command logging.
func (sf *Communicator) SetDebug(enable bool) {
	sf.LogMode(enable)
}

// Debug reports whether command logging is enabled.
func (sf *Communicator) Debug() bool {
	return sf.enabled()
}
