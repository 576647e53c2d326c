package instrument

import (
	"sync"
	"time"
)

const (
	// ManagedSerialDefaultBaudRate default baud rate of NewSerialConnection
	ManagedSerialDefaultBaudRate = 460800
)

// SerialManager keeps at most one live SerialTransport per port name, so
// instruments sharing a port (a GPIB adapter, a daisy chain) share a handle.
// Closing a managed transport removes it, the next open creates a new one.
type SerialManager struct {
	mu    sync.Mutex
	ports map[string]*SerialTransport
}

// DefaultSerialManager is used by NewSerialConnection and the Open helpers.
var DefaultSerialManager = NewSerialManager()

// NewSerialManager creates an empty registry.
func NewSerialManager() *SerialManager {
	return &SerialManager{ports: make(map[string]*SerialTransport)}
}

// GetOrCreate returns the live transport registered for port, or calls
// create and registers its result. Lookup and insert happen under one
// lock, concurrent callers for the same port get the same transport.
func (sf *SerialManager) GetOrCreate(port string, create func() (*SerialTransport, error)) (*SerialTransport, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if t, ok := sf.ports[port]; ok {
		if t.IsConnected() {
			return t, nil
		}
		delete(sf.ports, port)
	}
	t, err := create()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.onClose = sf.forget
	t.mu.Unlock()
	sf.ports[port] = t
	return t, nil
}

// Open returns the live transport for port, opening it with baud and opts
// when there is none.
func (sf *SerialManager) Open(port string, baud int, opts ...SerialOption) (*SerialTransport, error) {
	return sf.GetOrCreate(port, func() (*SerialTransport, error) {
		return NewSerialTransport(port, baud, opts...)
	})
}

// Lookup returns the transport registered for port.
func (sf *SerialManager) Lookup(port string) (*SerialTransport, bool) {
	sf.mu.Lock()
	t, ok := sf.ports[port]
	sf.mu.Unlock()
	return t, ok
}

// Release closes and unregisters the transport for port.
func (sf *SerialManager) Release(port string) error {
	t, ok := sf.Lookup(port)
	if !ok {
		return nil
	}
	return t.Close()
}

// Len returns the number of registered ports.
func (sf *SerialManager) Len() int {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return len(sf.ports)
}

func (sf *SerialManager) forget(t *SerialTransport) {
	sf.mu.Lock()
	if cur, ok := sf.ports[t.Address()]; ok && cur == t {
		delete(sf.ports, t.Address())
	}
	sf.mu.Unlock()
}

// NewSerialConnection returns the shared transport for port from
// DefaultSerialManager, opening it when there is no live one.
func NewSerialConnection(port string, baud int, timeout, writeTimeout time.Duration, opts ...SerialOption) (*SerialTransport, error) {
	if baud <= 0 {
		baud = ManagedSerialDefaultBaudRate
	}
	opts = append([]SerialOption{WithSerialTimeout(timeout), WithSerialWriteTimeout(writeTimeout)}, opts...)
	return DefaultSerialManager.Open(port, baud, opts...)
}
