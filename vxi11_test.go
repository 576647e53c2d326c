package instrument

import (
	"errors"
	"testing"
	"time"

	"github.com/thinkgos/goinstrument/vxi11"
)

// fakeLink is a VXI-11 link answering from resp.
type fakeLink struct {
	termChar  byte
	hasTerm   bool
	timeout   time.Duration
	resp      string
	written   []string
	closeErrs int
	err       error
}

func (l *fakeLink) Host() string { return "10.0.0.5" }
func (l *fakeLink) Name() string { return "inst0" }

func (l *fakeLink) Write(b []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	l.written = append(l.written, string(b))
	return len(b), nil
}

func (l *fakeLink) ReadRaw(n int) ([]byte, error) {
	if l.err != nil {
		return nil, l.err
	}
	if n >= 0 && n < len(l.resp) {
		return []byte(l.resp[:n]), nil
	}
	return []byte(l.resp), nil
}

func (l *fakeLink) Ask(msg string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	l.written = append(l.written, msg)
	return l.resp, nil
}

func (l *fakeLink) TermChar() (byte, bool)     { return l.termChar, l.hasTerm }
func (l *fakeLink) SetTermChar(c byte)         { l.termChar, l.hasTerm = c, true }
func (l *fakeLink) ClearTermChar()             { l.hasTerm = false }
func (l *fakeLink) Timeout() time.Duration     { return l.timeout }
func (l *fakeLink) SetTimeout(t time.Duration) { l.timeout = t }

func (l *fakeLink) Close() error {
	l.closeErrs++
	if l.closeErrs > 1 {
		return errors.New("link already destroyed")
	}
	return nil
}

func TestVXI11Transport(t *testing.T) {
	link := &fakeLink{resp: "ACME,SCOPE"}
	vt := NewVXI11Transport(link)
	vt.LogMode(false)

	if vt.Address() != "10.0.0.5,inst0" {
		t.Errorf("Address() = %q", vt.Address())
	}
	if vt.Terminator() != "" {
		t.Errorf("Terminator() = %q, want none", vt.Terminator())
	}

	got, err := vt.Query("*IDN?", -1)
	if err != nil || got != "ACME,SCOPE" {
		t.Errorf("Query(-1) = %q, %v", got, err)
	}
	got, err = vt.Query("*IDN?", 4)
	if err != nil || got != "ACME" {
		t.Errorf("Query(4) = %q, %v", got, err)
	}
	if err = vt.SendCmd("*CLS"); err != nil {
		t.Fatal(err)
	}
	if len(link.written) != 3 || link.written[2] != "*CLS" {
		t.Errorf("wrote %q", link.written)
	}
	if _, err = vt.ReadRaw(-2); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("ReadRaw(-2) error = %v, want %v", err, ErrInvalidSize)
	}
}

func TestVXI11Transport_SetTerminator(t *testing.T) {
	link := &fakeLink{}
	logger := &recordLogger{}
	vt := NewVXI11Transport(link)
	vt.SetLogProvider(logger)

	if err := vt.SetTerminator("\n"); err != nil || vt.Terminator() != "\n" {
		t.Errorf("Terminator() = %q, SetTerminator() error = %v", vt.Terminator(), err)
	}
	if err := vt.SetTerminator("\r\n"); err != nil || vt.Terminator() != "\r" {
		t.Errorf("Terminator() = %q, SetTerminator() error = %v", vt.Terminator(), err)
	}
	if len(logger.lines) != 1 {
		t.Errorf("logged %v, want one warning", logger.lines)
	}
	if err := vt.SetTerminator(""); err != nil || vt.Terminator() != "" {
		t.Errorf("Terminator() = %q after clearing", vt.Terminator())
	}
	if err := vt.SetTimeout(time.Second); err != nil || vt.Timeout() != time.Second {
		t.Errorf("Timeout() = %v, SetTimeout() error = %v", vt.Timeout(), err)
	}
}

func TestVXI11Transport_ReadRaw_termChar(t *testing.T) {
	link := &fakeLink{resp: "1.25\n"}
	vt := NewVXI11Transport(link)
	if err := vt.SetTerminator("\n"); err != nil {
		t.Fatal(err)
	}
	got, err := vt.ReadRaw(-1)
	if err != nil || string(got) != "1.25" {
		t.Errorf("ReadRaw(-1) = %q, %v, want %q", got, err, "1.25")
	}
	got, err = vt.ReadRaw(5)
	if err != nil || string(got) != "1.25\n" {
		t.Errorf("ReadRaw(5) = %q, %v, want %q", got, err, "1.25\n")
	}

	inst := New(NewCommunicator(vt))
	inst.SetAckFunc(func(string) []string { return []string{"1.25"} })
	if err = inst.SendCmd("VOLT 1.25"); err != nil {
		t.Errorf("SendCmd() with ack error = %v", err)
	}
}

func TestVXI11Transport_closed(t *testing.T) {
	vt := NewVXI11Transport(&fakeLink{err: vxi11.ErrLinkClosed})
	if _, err := vt.ReadRaw(-1); !errors.Is(err, ErrClosedConnection) {
		t.Errorf("ReadRaw() error = %v, want %v", err, ErrClosedConnection)
	}
	if err := vt.SendCmd("*RST"); !errors.Is(err, ErrClosedConnection) {
		t.Errorf("SendCmd() error = %v, want %v", err, ErrClosedConnection)
	}
	if _, err := vt.Query("*IDN?", -1); !errors.Is(err, ErrClosedConnection) {
		t.Errorf("Query() error = %v, want %v", err, ErrClosedConnection)
	}
}
