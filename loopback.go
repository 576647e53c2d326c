package instrument

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// LoopbackTransport connects to in-memory streams instead of a device,
// used to exercise drivers without hardware.
type LoopbackTransport struct {
	stdin      io.Reader
	stdout     io.Writer
	terminator string

	// interactive mode when stdin is nil
	console *bufio.Reader
	prompt  io.Writer
}

// check LoopbackTransport implements underlying method
var (
	_ Transport         = (*LoopbackTransport)(nil)
	_ TimeoutController = (*LoopbackTransport)(nil)
	_ InputFlusher      = (*LoopbackTransport)(nil)
)

// NewLoopbackTransport allocates a new LoopbackTransport. A nil stdin asks
// for every response on the console, a nil stdout echoes writes to it.
func NewLoopbackTransport(stdin io.Reader, stdout io.Writer) *LoopbackTransport {
	return &LoopbackTransport{
		stdin:      stdin,
		stdout:     stdout,
		terminator: "\n",
		console:    bufio.NewReader(os.Stdin),
		prompt:     os.Stdout,
	}
}

// Address implements Transport interface.
func (sf *LoopbackTransport) Address() string { return "loopback" }

// Terminator implements Transport interface.
func (sf *LoopbackTransport) Terminator() string { return sf.terminator }

// SetTerminator implements Transport interface, any string is accepted.
func (sf *LoopbackTransport) SetTerminator(term string) error {
	sf.terminator = term
	return nil
}

// Timeout is always zero.
func (sf *LoopbackTransport) Timeout() time.Duration { return 0 }

// SetTimeout is accepted and ignored.
func (sf *LoopbackTransport) SetTimeout(time.Duration) error { return nil }

// FlushInput does nothing.
func (sf *LoopbackTransport) FlushInput() error { return nil }

// ReadRaw implements Transport interface. The end of stdin ends a terminated
// read without error.
func (sf *LoopbackTransport) ReadRaw(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	if sf.stdin == nil {
		return sf.ask()
	}
	if size >= 0 {
		return readSize(sf.stdin, size)
	}
	b, err := readTerminated(sf.stdin, sf.terminator)
	if errors.Is(err, io.EOF) {
		return b, nil
	}
	return b, err
}

func (sf *LoopbackTransport) ask() ([]byte, error) {
	fmt.Fprint(sf.prompt, "Desired Response: ")
	line, err := sf.console.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

// WriteRaw implements Transport interface.
func (sf *LoopbackTransport) WriteRaw(b []byte) error {
	if sf.stdout == nil {
		_, err := fmt.Fprintf(sf.prompt, " <- %q \n", b)
		return err
	}
	_, err := sf.stdout.Write(b)
	return err
}

// SendCmd implements Transport interface, an empty message writes nothing.
func (sf *LoopbackTransport) SendCmd(msg string) error {
	if msg == "" {
		return nil
	}
	return sf.WriteRaw([]byte(msg + sf.terminator))
}

// Query implements Transport interface.
func (sf *LoopbackTransport) Query(msg string, size int) (string, error) {
	if err := sf.SendCmd(msg); err != nil {
		return "", err
	}
	b, err := sf.ReadRaw(size)
	return string(b), err
}

// Close implements Transport interface.
func (sf *LoopbackTransport) Close() error {
	if c, ok := sf.stdin.(io.Closer); ok {
		c.Close()
	}
	return nil
}
