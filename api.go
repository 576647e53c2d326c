/*
Package instrument provides communicators that normalize serial, socket,
GPIB adapter, VISA, USB-TMC, VXI-11, raw USB, device file and loopback
transports behind one Transport interface, and an Instrument base that
device drivers build on.
*/
package instrument

import (
	"time"
)

// Transport is one open channel to an instrument.
type Transport interface {
	// Address returns the transport specific address of the peer.
	Address() string
	// Terminator returns the string which ends every message.
	Terminator() string
	// SetTerminator changes the message terminator. Transports reject
	// terminators they can not express with ErrInvalidTerminator.
	SetTerminator(term string) error
	// ReadRaw reads size bytes, or up to the terminator (stripped) when size is -1.
	// A short read returns the bytes that did arrive together with an error
	// wrapping ErrTimeout.
	ReadRaw(size int) ([]byte, error)
	// WriteRaw writes b to the transport unchanged.
	WriteRaw(b []byte) error
	// SendCmd sends a command without waiting for a response.
	SendCmd(msg string) error
	// Query sends a command and reads the response, size as ReadRaw.
	Query(msg string, size int) (string, error)
	// Close releases the underlying handle, it may be called more than once.
	Close() error
}

// TimeoutController is implemented by transports with a native timeout.
type TimeoutController interface {
	Timeout() time.Duration
	SetTimeout(d time.Duration) error
}

// AddressSetter is implemented by transports whose address can change after open.
type AddressSetter interface {
	SetAddress(addr string) error
}

// InputFlusher is implemented by transports that can discard pending input.
type InputFlusher interface {
	FlushInput() error
}

// LogProvider RFC5424 log message levels only Debug and Error
type LogProvider interface {
	Errorf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}
