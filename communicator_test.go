package instrument

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"
)

func bufioReader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

// bareTransport implements Transport only.
type bareTransport struct {
	Transport
}

// recordLogger collects log lines.
type recordLogger struct {
	lines []string
}

func (l *recordLogger) Errorf(format string, v ...interface{}) { l.lines = append(l.lines, "E "+format) }
func (l *recordLogger) Debugf(format string, v ...interface{}) { l.lines = append(l.lines, "D "+format) }

func TestCommunicator_Query(t *testing.T) {
	out := &bytes.Buffer{}
	c := NewCommunicator(NewLoopbackTransport(strings.NewReader("FOO\n"), out))
	got, err := c.Query("BAR?", -1)
	if err != nil {
		t.Fatal(err)
	}
	if got != "FOO" || out.String() != "BAR?\n" {
		t.Errorf("Query() = %q, wrote %q", got, out.String())
	}
	if _, err = c.Query("BAR?", -3); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Query(size -3) error = %v, want %v", err, ErrInvalidSize)
	}
	if _, err = c.ReadRaw(-3); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("ReadRaw(-3) error = %v, want %v", err, ErrInvalidSize)
	}
}

func TestCommunicator_encoding(t *testing.T) {
	out := &bytes.Buffer{}
	c := NewCommunicator(NewLoopbackTransport(strings.NewReader("\xb5A\n"), out),
		WithEncoding(charmap.ISO8859_1))
	if err := c.Write("µA"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "\xb5A" {
		t.Errorf("Write() wrote %q, want %q", out.String(), "\xb5A")
	}
	got, err := c.Read(-1)
	if err != nil {
		t.Fatal(err)
	}
	if got != "µA" {
		t.Errorf("Read() = %q, want %q", got, "µA")
	}
}

func TestCommunicator_capabilities(t *testing.T) {
	lb := NewLoopbackTransport(strings.NewReader(""), &bytes.Buffer{})
	c := NewCommunicator(lb)
	if d, err := c.Timeout(); err != nil || d != 0 {
		t.Errorf("Timeout() = %v, %v", d, err)
	}
	if err := c.FlushInput(); err != nil {
		t.Errorf("FlushInput() error = %v", err)
	}
	if err := c.SetAddress("x"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("SetAddress() error = %v, want %v", err, ErrNotSupported)
	}

	bare := NewCommunicator(bareTransport{lb})
	if _, err := bare.Timeout(); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Timeout() error = %v, want %v", err, ErrNotSupported)
	}
	if err := bare.SetTimeout(time.Second); !errors.Is(err, ErrNotSupported) {
		t.Errorf("SetTimeout() error = %v, want %v", err, ErrNotSupported)
	}
	if err := bare.FlushInput(); !errors.Is(err, ErrNotSupported) {
		t.Errorf("FlushInput() error = %v, want %v", err, ErrNotSupported)
	}
}

func TestCommunicator_debug(t *testing.T) {
	logger := &recordLogger{}
	c := NewCommunicator(NewLoopbackTransport(strings.NewReader("FOO\nBAZ\n"), &bytes.Buffer{}),
		WithLogProvider(logger))
	if c.Debug() {
		t.Errorf("Debug() = true before SetDebug")
	}
	if _, err := c.Query("A?", -1); err != nil {
		t.Fatal(err)
	}
	if len(logger.lines) != 0 {
		t.Errorf("logged %v while debug is off", logger.lines)
	}

	c.SetDebug(true)
	if _, err := c.Query("B?", -1); err != nil {
		t.Fatal(err)
	}
	if len(logger.lines) != 2 {
		t.Errorf("logged %v, want the command and the response", logger.lines)
	}
}
