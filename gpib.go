package instrument

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Model GPIB adapter model chosen by the user.
type Model string

// supported GPIB adapter models
const (
	ModelGalvant  Model = "gi"
	ModelPrologix Model = "pl"
)

// ParseModel parses "gi" or "pl".
func ParseModel(s string) (Model, error) {
	switch m := Model(strings.ToLower(s)); m {
	case ModelGalvant, ModelPrologix:
		return m, nil
	}
	return "", fmt.Errorf("instrument: unknown gpib adapter model %q", s)
}

// Dialect is the command set an adapter speaks.
type Dialect byte

// adapter command sets
const (
	// DialectGalvantLegacy Galvant Industries firmware 4 and older, "+cmd:arg".
	DialectGalvantLegacy Dialect = iota
	// DialectGalvant Galvant Industries firmware 5 and newer.
	DialectGalvant
	// DialectPrologix Prologix GPIB-USB and GPIB-ETHERNET, "++cmd arg".
	DialectPrologix
)

// String implements fmt.Stringer.
func (d Dialect) String() string {
	switch d {
	case DialectGalvantLegacy:
		return "galvant-legacy"
	case DialectGalvant:
		return "galvant"
	case DialectPrologix:
		return "prologix"
	}
	return "dialect(" + strconv.Itoa(int(d)) + ")"
}

func (d Dialect) legacy() bool { return d == DialectGalvantLegacy }

func (d Dialect) addressCmd(addr int) string {
	if d == DialectPrologix {
		return "++addr " + strconv.Itoa(addr)
	}
	return "+a:" + strconv.Itoa(addr)
}

func (d Dialect) eoiCmd(on bool) string {
	v := "0"
	if on {
		v = "1"
	}
	if d.legacy() {
		return "+eoi:" + v
	}
	return "++eoi " + v
}

func (d Dialect) timeoutCmd(t time.Duration) string {
	if d.legacy() {
		return "+t:" + strconv.Itoa(int(t/time.Second))
	}
	return "++read_tmo_ms " + strconv.Itoa(int(t/time.Millisecond))
}

// eosCmd Galvant legacy firmware takes the character code, the others an
// index: 0 CRLF, 1 CR, 2 LF, 3 none.
func (d Dialect) eosCmd(eos string) (string, error) {
	if d.legacy() {
		if len(eos) != 1 {
			return "", ErrInvalidEOS
		}
		return "+eos:" + strconv.Itoa(int(eos[0])), nil
	}
	var code int
	switch eos {
	case "\r\n":
		code = 0
	case "\r":
		code = 1
	case "\n":
		code = 2
	case "":
		code = 3
	default:
		return "", ErrInvalidEOS
	}
	return "++eos " + strconv.Itoa(code), nil
}

func (d Dialect) readCmd(msg string) string {
	switch d {
	case DialectPrologix:
		return "++read"
	default:
		if !strings.Contains(msg, "?") {
			return "+read"
		}
	}
	return ""
}

const (
	// GPIBDefaultTimeout bus timeout set on a new adapter session
	GPIBDefaultTimeout = time.Second
	// GPIBDefaultSettleDelay pause after every adapter command
	GPIBDefaultSettleDelay = 10 * time.Millisecond
)

// GPIBTransport talks to one instrument behind a Galvant Industries or
// Prologix GPIB adapter reached through another communicator. Every command
// is preceded by the adapter settings, so several sessions may share one
// adapter.
type GPIBTransport struct {
	inner   *Communicator
	dialect Dialect
	version int
	gpib    int

	eoi        bool
	eos        string
	timeout    time.Duration
	terminator string
	settle     time.Duration
}

// check GPIBTransport implements underlying method
var (
	_ Transport         = (*GPIBTransport)(nil)
	_ TimeoutController = (*GPIBTransport)(nil)
	_ AddressSetter     = (*GPIBTransport)(nil)
	_ InputFlusher      = (*GPIBTransport)(nil)
)

// NewGPIBTransport starts an adapter session. The inner communicator is
// switched to "\r" framing, a Galvant adapter is asked for its firmware
// version and a Prologix adapter is put in manual read mode.
func NewGPIBTransport(inner *Communicator, gpibAddress int, model Model, opts ...GPIBOption) (*GPIBTransport, error) {
	if err := checkGPIBAddress(gpibAddress); err != nil {
		return nil, err
	}
	sf := &GPIBTransport{
		inner:   inner,
		gpib:    gpibAddress,
		timeout: GPIBDefaultTimeout,
		settle:  GPIBDefaultSettleDelay,
	}
	if _, ok := inner.Transport.(*LoopbackTransport); ok {
		sf.settle = 0
	}
	for _, opt := range opts {
		opt(sf)
	}

	if err := inner.SetTerminator("\r"); err != nil {
		return nil, err
	}
	switch model {
	case ModelGalvant:
		resp, err := inner.Query("+ver", -1)
		if err != nil {
			return nil, err
		}
		if sf.version, err = strconv.Atoi(strings.TrimSpace(resp)); err != nil {
			return nil, fmt.Errorf("instrument: invalid gpib adapter version %q: %w", resp, err)
		}
		sf.dialect = DialectGalvant
		if sf.version <= 4 {
			sf.dialect = DialectGalvantLegacy
		}
	case ModelPrologix:
		sf.dialect = DialectPrologix
		if err := inner.SendCmd("++auto 0"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("instrument: unknown gpib adapter model %q", model)
	}

	if err := sf.SetTerminator("\n"); err != nil {
		return nil, err
	}
	sf.eoi = true
	sf.eos = "\n"
	return sf, nil
}

func checkGPIBAddress(addr int) error {
	if addr < 1 || addr > 30 {
		return fmt.Errorf("%w, got %d", ErrInvalidGPIBAddress, addr)
	}
	return nil
}

func (sf *GPIBTransport) pause() {
	if sf.settle > 0 {
		time.Sleep(sf.settle)
	}
}

// Inner returns the communicator reaching the adapter.
func (sf *GPIBTransport) Inner() *Communicator { return sf.inner }

// Dialect returns the adapter command set in use.
func (sf *GPIBTransport) Dialect() Dialect { return sf.dialect }

// Version returns the Galvant adapter firmware version, zero for Prologix.
func (sf *GPIBTransport) Version() int { return sf.version }

// Address implements Transport interface, "<gpib address>,<adapter address>".
func (sf *GPIBTransport) Address() string {
	return strconv.Itoa(sf.gpib) + "," + sf.inner.Address()
}

// GPIBAddress returns the bus address of the instrument.
func (sf *GPIBTransport) GPIBAddress() int { return sf.gpib }

// SetGPIBAddress changes the bus address, valid addresses are 1 to 30.
func (sf *GPIBTransport) SetGPIBAddress(addr int) error {
	if err := checkGPIBAddress(addr); err != nil {
		return err
	}
	sf.gpib = addr
	return nil
}

// SetAddress implements AddressSetter interface. "N" changes the bus
// address, "N,downstream" also changes the adapter address.
func (sf *GPIBTransport) SetAddress(addr string) error {
	head, downstream, hasDownstream := strings.Cut(addr, ",")
	n, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return fmt.Errorf("instrument: invalid gpib address %q: %w", addr, err)
	}
	if err = sf.SetGPIBAddress(n); err != nil {
		return err
	}
	if hasDownstream {
		return sf.inner.SetAddress(downstream)
	}
	return nil
}

// EOI reports whether the adapter uses the EOI line to end messages.
func (sf *GPIBTransport) EOI() bool { return sf.eoi }

// SetEOI switches EOI usage and tells the adapter.
func (sf *GPIBTransport) SetEOI(on bool) error {
	sf.eoi = on
	return sf.inner.SendCmd(sf.dialect.eoiCmd(on))
}

// EOS returns the end of string characters, empty for none.
func (sf *GPIBTransport) EOS() string { return sf.eos }

// SetEOS sets the end of string characters and tells the adapter. Valid
// values are "\r\n", "\r", "\n" and "" for none, Galvant legacy firmware
// takes any single character instead.
func (sf *GPIBTransport) SetEOS(eos string) error {
	cmd, err := sf.dialect.eosCmd(eos)
	if err != nil {
		return err
	}
	sf.eos = eos
	return sf.inner.SendCmd(cmd)
}

// Timeout implements TimeoutController interface.
func (sf *GPIBTransport) Timeout() time.Duration { return sf.timeout }

// SetTimeout implements TimeoutController interface, it sets the bus
// timeout on the adapter and the timeout of the channel to the adapter.
func (sf *GPIBTransport) SetTimeout(d time.Duration) error {
	if err := sf.inner.SendCmd(sf.dialect.timeoutCmd(d)); err != nil {
		return err
	}
	if err := sf.inner.SetTimeout(d); err != nil && !errors.Is(err, ErrNotSupported) {
		return err
	}
	sf.timeout = d
	return nil
}

// Terminator implements Transport interface, "eoi" while EOI is in use.
func (sf *GPIBTransport) Terminator() string {
	if sf.eoi {
		return "eoi"
	}
	return sf.terminator
}

// SetTerminator implements Transport interface. "eoi" ends messages with
// the EOI line, anything else is used as EOS with EOI off.
func (sf *GPIBTransport) SetTerminator(term string) error {
	term = strings.ToLower(term)
	if sf.dialect.legacy() {
		if term == "eoi" {
			return sf.SetEOI(true)
		}
		if len(term) != 1 {
			return fmt.Errorf("%w: gpib termination must be a single character or \"eoi\"", ErrInvalidTerminator)
		}
		if err := sf.SetEOI(false); err != nil {
			return err
		}
		if err := sf.SetEOS(term); err != nil {
			return err
		}
		sf.terminator = term
		return nil
	}

	if term == "eoi" {
		if err := sf.SetEOS(""); err != nil {
			return err
		}
		sf.terminator = "eoi"
		return sf.SetEOI(true)
	}
	if _, err := sf.dialect.eosCmd(term); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTerminator, err)
	}
	if err := sf.SetEOS(term); err != nil {
		return err
	}
	if err := sf.SetEOI(false); err != nil {
		return err
	}
	sf.terminator = term
	return nil
}

// ReadRaw implements Transport interface, reading from the adapter channel.
func (sf *GPIBTransport) ReadRaw(size int) ([]byte, error) { return sf.inner.ReadRaw(size) }

// WriteRaw implements Transport interface, writing to the adapter channel.
func (sf *GPIBTransport) WriteRaw(b []byte) error { return sf.inner.WriteRaw(b) }

// FlushInput implements InputFlusher interface.
func (sf *GPIBTransport) FlushInput() error { return sf.inner.FlushInput() }

// SendCmd implements Transport interface. It selects the instrument,
// reasserts EOI, timeout and EOS, then sends msg. An empty msg sends nothing.
func (sf *GPIBTransport) SendCmd(msg string) error {
	if msg == "" {
		return nil
	}
	eos, err := sf.dialect.eosCmd(sf.eos)
	if err != nil {
		return err
	}
	for _, cmd := range []string{
		sf.dialect.addressCmd(sf.gpib),
		sf.dialect.eoiCmd(sf.eoi),
		sf.dialect.timeoutCmd(sf.timeout),
		eos,
		msg,
	} {
		if err := sf.inner.SendCmd(cmd); err != nil {
			return err
		}
		sf.pause()
	}
	return nil
}

// Query implements Transport interface. Galvant adapters answer a message
// containing '?' by themselves and are told to read otherwise, Prologix
// adapters are always told to read.
func (sf *GPIBTransport) Query(msg string, size int) (string, error) {
	if err := sf.SendCmd(msg); err != nil {
		return "", err
	}
	if cmd := sf.dialect.readCmd(msg); cmd != "" {
		if err := sf.inner.SendCmd(cmd); err != nil {
			return "", err
		}
	}
	resp, err := sf.inner.Read(size)
	return strings.TrimSpace(resp), err
}

// Close implements Transport interface, closing the adapter channel.
func (sf *GPIBTransport) Close() error { return sf.inner.Close() }
