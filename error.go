package instrument

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/goburrow/serial"
)

// transport errors
var (
	// ErrClosedConnection 连接已关闭
	ErrClosedConnection = errors.New("instrument: use of closed connection")
	// ErrTimeout the device did not answer in time.
	ErrTimeout = errors.New("instrument: timed out")
	// ErrTerminatorNotFound the stream stopped before the terminator arrived.
	ErrTerminatorNotFound = fmt.Errorf("%w before reading a termination character", ErrTimeout)
	// ErrBrokenPipe the driver behind a device file lost the instrument.
	ErrBrokenPipe = errors.New("instrument: broken pipe")
	// ErrInvalidBlock a binary block did not start with '#<digit>'.
	ErrInvalidBlock = errors.New("instrument: not a valid binary block")
	// ErrShortBlock a binary block ended before its declared byte count.
	ErrShortBlock = errors.New("instrument: did not read in the required number of bytes during binblock read")
	// ErrEchoMismatch the device echoed something other than the command.
	ErrEchoMismatch = errors.New("instrument: echo does not match the command")
)

// validation errors, raised before any I/O.
var (
	ErrInvalidTerminator  = errors.New("instrument: invalid terminator")
	ErrInvalidGPIBAddress = errors.New("instrument: gpib address must be between 1 and 30")
	ErrInvalidEOS         = errors.New("instrument: eos must be CRLF, CR, LF or none")
	ErrInvalidSize        = errors.New("instrument: read size must be -1 or a non-negative value")
	ErrInvalidURI         = errors.New("instrument: invalid uri")
)

var (
	// ErrNotSupported the communicator has no such capability.
	ErrNotSupported = errors.New("instrument: operation not supported by this communicator")
	// ErrUnavailable the transport backend is absent.
	ErrUnavailable = errors.New("instrument: transport backend unavailable")
)

// AckError an acknowledgement read after a command did not match.
type AckError struct {
	Expected string
	Got      string
}

// Error implements error interface.
func (e *AckError) Error() string {
	return fmt.Sprintf("instrument: incorrect ack message received: got %q expected %q", e.Got, e.Expected)
}

// PromptError the prompt read after a command did not match.
type PromptError struct {
	Expected string
	Got      string
}

// Error implements error interface.
func (e *PromptError) Error() string {
	return fmt.Sprintf("instrument: incorrect prompt message received: got %q expected %q", e.Got, e.Expected)
}

// isTimeout reports whether err means the device stayed silent.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, serial.ErrTimeout) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
