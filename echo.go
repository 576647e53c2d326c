package instrument

import (
	"fmt"
	"strings"
	"sync"
)

// EchoDefaultMessageSize bytes read back by an EchoSerialTransport query,
// echo and terminators included.
const EchoDefaultMessageSize = 140

// EchoSerialTransport is a serial transport for devices that echo every
// command. A query is answered with the command, CRLF, the response, CRLF.
type EchoSerialTransport struct {
	*SerialTransport
	maxMessageSize int
	mu             sync.Mutex
}

// check EchoSerialTransport implements underlying method
var _ Transport = (*EchoSerialTransport)(nil)

// NewEchoSerialTransport wraps t.
func NewEchoSerialTransport(t *SerialTransport) *EchoSerialTransport {
	return &EchoSerialTransport{
		SerialTransport: t,
		maxMessageSize:  EchoDefaultMessageSize,
	}
}

// MaxMessageSize bytes read back when Query is called with size -1.
func (sf *EchoSerialTransport) MaxMessageSize() int { return sf.maxMessageSize }

// SetMaxMessageSize sets the size read back when Query is called with size -1.
// Chained commands separated by ';' may need more than the default.
func (sf *EchoSerialTransport) SetMaxMessageSize(n int) { sf.maxMessageSize = n }

// Query implements Transport interface. It writes msg ended by CR, then reads
// size bytes, or the maximum message size when size is -1, and checks the echo.
func (sf *EchoSerialTransport) Query(msg string, size int) (string, error) {
	if size < 0 {
		size = sf.maxMessageSize
	}
	sf.mu.Lock()
	defer sf.mu.Unlock()

	_ = sf.SetTerminator("\r")
	if err := sf.WriteRaw([]byte(msg + "\r")); err != nil {
		return "", err
	}
	_ = sf.SetTerminator("\r\n")
	b, err := sf.ReadRaw(size)
	if err != nil && (len(b) == 0 || !isTimeout(err)) {
		return "", err
	}
	return parseEcho(msg, string(b))
}

// parseEcho splits "echo\r\nresponse\r\n" and checks the echo against cmd.
func parseEcho(cmd, raw string) (string, error) {
	echo, rest, ok := strings.Cut(raw, "\r\n")
	if !ok {
		return "", fmt.Errorf("%w: no echo of %q in %q", ErrEchoMismatch, cmd, raw)
	}
	if !strings.HasSuffix(rest, "\r\n") {
		return "", fmt.Errorf("%w: no response to %q in %q", ErrEchoMismatch, cmd, raw)
	}
	if echo != cmd {
		return "", fmt.Errorf("%w: echoed %q, sent %q", ErrEchoMismatch, echo, cmd)
	}
	resp := strings.TrimSuffix(rest, "\r\n")
	if i := strings.LastIndex(resp, "\r\n"); i >= 0 {
		resp = resp[i+2:]
	}
	return resp, nil
}
