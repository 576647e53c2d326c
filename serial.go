package instrument

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

const (
	// SerialDefaultTimeout Serial Default timeout
	SerialDefaultTimeout = 3 * time.Second
	// SerialDefaultWriteTimeout Serial Default write timeout
	SerialDefaultWriteTimeout = 3 * time.Second
	// SerialDefaultBaudRate baud rate used by OpenSerial when none is given
	SerialDefaultBaudRate = 9600
)

// SerialOpener opens the native port described by a config.
type SerialOpener func(config *serial.Config) (io.ReadWriteCloser, error)

func openSerialPort(config *serial.Config) (io.ReadWriteCloser, error) {
	return serial.Open(config)
}

// SerialTransport implements Transport over a serial port.
type SerialTransport struct {
	// Serial port configuration.
	config       serial.Config
	writeTimeout time.Duration
	terminator   string
	open         SerialOpener

	mu   sync.Mutex
	port io.ReadWriteCloser
	// called once the port is closed, set by the SerialManager owning it
	onClose func(*SerialTransport)
}

// check SerialTransport implements underlying method
var (
	_ Transport         = (*SerialTransport)(nil)
	_ TimeoutController = (*SerialTransport)(nil)
	_ InputFlusher      = (*SerialTransport)(nil)
)

// NewSerialTransport opens port at baud, 8 data bits, no parity, 1 stop bit.
func NewSerialTransport(port string, baud int, opts ...SerialOption) (*SerialTransport, error) {
	sf := &SerialTransport{
		config: serial.Config{
			Address:  port,
			BaudRate: baud,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  SerialDefaultTimeout,
		},
		writeTimeout: SerialDefaultWriteTimeout,
		terminator:   "\n",
		open:         openSerialPort,
	}
	for _, opt := range opts {
		opt(sf)
	}
	if err := sf.Connect(); err != nil {
		return nil, err
	}
	return sf, nil
}

// Connect opens the port if it is not open yet.
func (sf *SerialTransport) Connect() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.isConnected() {
		return nil
	}
	return sf.connect()
}

// Caller must hold the mutex before calling this method.
func (sf *SerialTransport) connect() error {
	port, err := sf.open(&sf.config)
	if err != nil {
		return err
	}
	sf.port = port
	return nil
}

// IsConnected returns a bool signifying whether the port is open or not.
func (sf *SerialTransport) IsConnected() bool {
	sf.mu.Lock()
	b := sf.isConnected()
	sf.mu.Unlock()
	return b
}

// Caller must hold the mutex before calling this method.
func (sf *SerialTransport) isConnected() bool {
	return sf.port != nil
}

func (sf *SerialTransport) conn() (io.ReadWriteCloser, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if !sf.isConnected() {
		return nil, ErrClosedConnection
	}
	return sf.port, nil
}

// Config returns a copy of the port configuration.
func (sf *SerialTransport) Config() serial.Config {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.config
}

// Address implements Transport interface, it is the port name.
func (sf *SerialTransport) Address() string { return sf.config.Address }

// Terminator implements Transport interface.
func (sf *SerialTransport) Terminator() string { return sf.terminator }

// SetTerminator implements Transport interface, any string is accepted.
func (sf *SerialTransport) SetTerminator(term string) error {
	sf.terminator = term
	return nil
}

// Timeout implements TimeoutController interface.
func (sf *SerialTransport) Timeout() time.Duration {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.config.Timeout
}

// SetTimeout implements TimeoutController interface. The native port only
// takes a timeout when opened, so an open port is reopened.
func (sf *SerialTransport) SetTimeout(d time.Duration) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.config.Timeout == d {
		return nil
	}
	sf.config.Timeout = d
	if !sf.isConnected() {
		return nil
	}
	_ = sf.port.Close()
	sf.port = nil
	return sf.connect()
}

// WriteTimeout returns the write timeout.
func (sf *SerialTransport) WriteTimeout() time.Duration { return sf.writeTimeout }

// SetWriteTimeout sets the write timeout.
func (sf *SerialTransport) SetWriteTimeout(d time.Duration) { sf.writeTimeout = d }

// ReadRaw implements Transport interface.
func (sf *SerialTransport) ReadRaw(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	port, err := sf.conn()
	if err != nil {
		return nil, err
	}
	if size >= 0 {
		return readSize(port, size)
	}
	return readTerminated(port, sf.terminator)
}

// WriteRaw implements Transport interface. A write still pending after the
// write timeout fails with ErrTimeout, zero waits forever.
func (sf *SerialTransport) WriteRaw(b []byte) error {
	port, err := sf.conn()
	if err != nil {
		return err
	}
	if sf.writeTimeout <= 0 {
		_, err = port.Write(b)
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := port.Write(b)
		done <- err
	}()
	tm := time.NewTimer(sf.writeTimeout)
	defer tm.Stop()
	select {
	case err = <-done:
		return err
	case <-tm.C:
		return fmt.Errorf("%w: write of %d bytes to %s", ErrTimeout, len(b), sf.config.Address)
	}
}

// SendCmd implements Transport interface.
func (sf *SerialTransport) SendCmd(msg string) error {
	return sf.WriteRaw([]byte(msg + sf.terminator))
}

// Query implements Transport interface.
func (sf *SerialTransport) Query(msg string, size int) (string, error) {
	if err := sf.SendCmd(msg); err != nil {
		return "", err
	}
	b, err := sf.ReadRaw(size)
	return string(b), err
}

// FlushInput implements InputFlusher interface. Ports without a native
// input reset are drained until they time out.
func (sf *SerialTransport) FlushInput() error {
	port, err := sf.conn()
	if err != nil {
		return err
	}
	if r, ok := port.(interface{ ResetInputBuffer() error }); ok {
		return r.ResetInputBuffer()
	}
	if sf.Timeout() <= 0 {
		return nil
	}
	var buf [256]byte
	for {
		n, err := port.Read(buf[:])
		if err != nil {
			if isTimeout(err) || err == io.EOF {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// Close close current port, closing a closed port does nothing.
func (sf *SerialTransport) Close() error {
	var err error

	sf.mu.Lock()
	closed := sf.port != nil
	if closed {
		err = sf.port.Close()
		sf.port = nil
	}
	onClose := sf.onClose
	sf.mu.Unlock()
	if closed && onClose != nil {
		onClose(sf)
	}
	return err
}
