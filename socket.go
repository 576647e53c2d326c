package instrument

import (
	"net"
	"sync"
	"time"
)

const (
	// TCPDefaultDialTimeout TCP Default connect timeout
	TCPDefaultDialTimeout = 5 * time.Second
	// window a flush waits for more pending input
	socketFlushWindow = 10 * time.Millisecond
)

// SocketTransport implements Transport over a stream socket.
type SocketTransport struct {
	address    string
	terminator string
	// Read & Write timeout, zero blocks forever
	timeout time.Duration

	mu sync.Mutex
	// TCP connection
	conn net.Conn
}

// check SocketTransport implements underlying method
var (
	_ Transport         = (*SocketTransport)(nil)
	_ TimeoutController = (*SocketTransport)(nil)
	_ InputFlusher      = (*SocketTransport)(nil)
)

// NewSocketTransport wraps an already connected socket.
func NewSocketTransport(conn net.Conn) *SocketTransport {
	address := ""
	if addr := conn.RemoteAddr(); addr != nil {
		address = addr.String()
	}
	return &SocketTransport{
		address:    address,
		terminator: "\n",
		conn:       conn,
	}
}

// DialSocket connects to address over TCP.
func DialSocket(address string, dialTimeout time.Duration) (*SocketTransport, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return NewSocketTransport(conn), nil
}

func (sf *SocketTransport) getConn() (net.Conn, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.conn == nil {
		return nil, ErrClosedConnection
	}
	return sf.conn, nil
}

func (sf *SocketTransport) deadline() time.Time {
	if sf.timeout > 0 {
		return time.Now().Add(sf.timeout)
	}
	return time.Time{}
}

// Address implements Transport interface, it is the remote host:port.
func (sf *SocketTransport) Address() string { return sf.address }

// Terminator implements Transport interface.
func (sf *SocketTransport) Terminator() string { return sf.terminator }

// SetTerminator implements Transport interface, any string is accepted.
func (sf *SocketTransport) SetTerminator(term string) error {
	sf.terminator = term
	return nil
}

// Timeout implements TimeoutController interface.
func (sf *SocketTransport) Timeout() time.Duration { return sf.timeout }

// SetTimeout implements TimeoutController interface.
func (sf *SocketTransport) SetTimeout(d time.Duration) error {
	sf.timeout = d
	return nil
}

// ReadRaw implements Transport interface.
func (sf *SocketTransport) ReadRaw(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	conn, err := sf.getConn()
	if err != nil {
		return nil, err
	}
	if err = conn.SetReadDeadline(sf.deadline()); err != nil {
		return nil, err
	}
	if size >= 0 {
		return readSize(conn, size)
	}
	return readTerminated(conn, sf.terminator)
}

// WriteRaw implements Transport interface.
func (sf *SocketTransport) WriteRaw(b []byte) error {
	conn, err := sf.getConn()
	if err != nil {
		return err
	}
	if err = conn.SetWriteDeadline(sf.deadline()); err != nil {
		return err
	}
	_, err = conn.Write(b)
	return err
}

// SendCmd implements Transport interface.
func (sf *SocketTransport) SendCmd(msg string) error {
	return sf.WriteRaw([]byte(msg + sf.terminator))
}

// Query implements Transport interface.
func (sf *SocketTransport) Query(msg string, size int) (string, error) {
	if err := sf.SendCmd(msg); err != nil {
		return "", err
	}
	b, err := sf.ReadRaw(size)
	return string(b), err
}

// FlushInput implements InputFlusher interface, it reads with a short
// deadline until nothing is pending and discards the data.
func (sf *SocketTransport) FlushInput() (err error) {
	conn, err := sf.getConn()
	if err != nil {
		return err
	}
	var b [512]byte
	for {
		if err = conn.SetReadDeadline(time.Now().Add(socketFlushWindow)); err != nil {
			return
		}
		// Timeout setting will be reset when reading
		var n int
		if n, err = conn.Read(b[:]); err != nil {
			// Ignore timeout error
			if netError, ok := err.(net.Error); ok && netError.Timeout() {
				err = nil
			}
			return
		}
		if n == 0 {
			return nil
		}
	}
}

// Close closes current connection.
func (sf *SocketTransport) Close() error {
	var err error
	sf.mu.Lock()
	if sf.conn != nil {
		err = sf.conn.Close()
		sf.conn = nil
	}
	sf.mu.Unlock()
	return err
}
