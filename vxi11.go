package instrument

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/thinkgos/goinstrument/vxi11"
)

// VXI11Device is the subset of *vxi11.Instrument the transport drives.
type VXI11Device interface {
	Host() string
	Name() string
	Write(b []byte) (int, error)
	ReadRaw(n int) ([]byte, error)
	Ask(msg string) (string, error)
	TermChar() (byte, bool)
	SetTermChar(c byte)
	ClearTermChar()
	Timeout() time.Duration
	SetTimeout(t time.Duration)
	Close() error
}

var _ VXI11Device = (*vxi11.Instrument)(nil)

// VXI11Transport implements Transport over a VXI-11 link.
type VXI11Transport struct {
	inst VXI11Device
	clogs
}

// check VXI11Transport implements underlying method
var (
	_ Transport         = (*VXI11Transport)(nil)
	_ TimeoutController = (*VXI11Transport)(nil)
)

// NewVXI11Transport wraps inst.
func NewVXI11Transport(inst VXI11Device) *VXI11Transport {
	sf := &VXI11Transport{inst: inst}
	sf.clogs = newClogWithPrefix(sf.Address())
	sf.LogMode(true)
	return sf
}

// DialVXI11Transport links to device name on host.
func DialVXI11Transport(host, name string, opts ...vxi11.Option) (*VXI11Transport, error) {
	inst, err := vxi11.Dial(host, name, opts...)
	if err != nil {
		return nil, err
	}
	return NewVXI11Transport(inst), nil
}

// Address implements Transport interface, formatted as host,name.
func (sf *VXI11Transport) Address() string {
	return fmt.Sprintf("%s,%s", sf.inst.Host(), sf.inst.Name())
}

// Terminator implements Transport interface, empty when reads stop on END only.
func (sf *VXI11Transport) Terminator() string {
	c, ok := sf.inst.TermChar()
	if !ok {
		return ""
	}
	return string(rune(c))
}

// SetTerminator implements Transport interface. Only the first character of
// term is used.
func (sf *VXI11Transport) SetTerminator(term string) error {
	if term == "" {
		sf.inst.ClearTermChar()
		return nil
	}
	if len(term) > 1 {
		sf.Errorf("vxi11 supports single character terminators, using %q of %q", term[:1], term)
	}
	sf.inst.SetTermChar(term[0])
	return nil
}

// Timeout implements TimeoutController interface.
func (sf *VXI11Transport) Timeout() time.Duration { return sf.inst.Timeout() }

// SetTimeout implements TimeoutController interface.
func (sf *VXI11Transport) SetTimeout(d time.Duration) error {
	sf.inst.SetTimeout(d)
	return nil
}

// ReadRaw implements Transport interface. A terminated read drops the
// termination character.
func (sf *VXI11Transport) ReadRaw(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	b, err := sf.inst.ReadRaw(size)
	if err != nil {
		return b, linkErr(err)
	}
	if c, ok := sf.inst.TermChar(); ok && size < 0 {
		b = bytes.TrimSuffix(b, []byte{c})
	}
	return b, nil
}

// WriteRaw implements Transport interface.
func (sf *VXI11Transport) WriteRaw(b []byte) error {
	_, err := sf.inst.Write(b)
	return linkErr(err)
}

// SendCmd implements Transport interface.
func (sf *VXI11Transport) SendCmd(msg string) error {
	return sf.WriteRaw([]byte(msg))
}

// Query implements Transport interface.
func (sf *VXI11Transport) Query(msg string, size int) (string, error) {
	if size < 0 {
		resp, err := sf.inst.Ask(msg)
		return resp, linkErr(err)
	}
	if err := sf.SendCmd(msg); err != nil {
		return "", err
	}
	b, err := sf.inst.ReadRaw(size)
	return string(b), linkErr(err)
}

// Close implements Transport interface.
func (sf *VXI11Transport) Close() error {
	return sf.inst.Close()
}

func linkErr(err error) error {
	if errors.Is(err, vxi11.ErrLinkClosed) {
		return fmt.Errorf("%w: %v", ErrClosedConnection, err)
	}
	return err
}
