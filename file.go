package instrument

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"
)

// FileQueryDelay time the bus gets to answer before a file query reads.
const FileQueryDelay = 20 * time.Millisecond

// FileTransport implements Transport over a read/write handle, typically a
// device file such as /dev/usbtmc0 provided by a kernel driver.
type FileTransport struct {
	rw         io.ReadWriter
	name       string
	terminator string
	testing    bool
}

// check FileTransport implements underlying method
var (
	_ Transport    = (*FileTransport)(nil)
	_ InputFlusher = (*FileTransport)(nil)
)

// NewFileTransport wraps rw, name is used as the address.
func NewFileTransport(rw io.ReadWriter, name string) *FileTransport {
	return &FileTransport{rw: rw, name: name, terminator: "\n"}
}

// OpenFileTransport opens a device file for reading and writing.
func OpenFileTransport(name string) (*FileTransport, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return NewFileTransport(f, name), nil
}

// SetTesting skips the query delay, used when the handle is not a device.
func (sf *FileTransport) SetTesting(testing bool) { sf.testing = testing }

// Address implements Transport interface, it is the file name.
func (sf *FileTransport) Address() string {
	if sf.name != "" {
		return sf.name
	}
	if f, ok := sf.rw.(interface{ Name() string }); ok {
		return f.Name()
	}
	return ""
}

// Terminator implements Transport interface.
func (sf *FileTransport) Terminator() string { return sf.terminator }

// SetTerminator implements Transport interface, at most one character.
func (sf *FileTransport) SetTerminator(term string) error {
	if len(term) > 1 {
		return fmt.Errorf("%w: file terminator must be at most 1 character long", ErrInvalidTerminator)
	}
	sf.terminator = term
	return nil
}

// ReadRaw implements Transport interface, the end of the file ends a
// terminated read without error.
func (sf *FileTransport) ReadRaw(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	if size >= 0 {
		return readSize(sf.rw, size)
	}
	b, err := readTerminated(sf.rw, sf.terminator)
	if errors.Is(err, io.EOF) {
		return b, nil
	}
	return b, err
}

// WriteRaw implements Transport interface.
func (sf *FileTransport) WriteRaw(b []byte) error {
	_, err := sf.rw.Write(b)
	return err
}

// FlushInput implements InputFlusher interface, it flushes buffered writes
// of handles which buffer them.
func (sf *FileTransport) FlushInput() error {
	switch f := sf.rw.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Sync() error }:
		return f.Sync()
	}
	return nil
}

// Seek moves the read offset of a seekable handle.
func (sf *FileTransport) Seek(offset int64) error {
	s, ok := sf.rw.(io.Seeker)
	if !ok {
		return ErrNotSupported
	}
	_, err := s.Seek(offset, io.SeekStart)
	return err
}

// Tell returns the read offset of a seekable handle.
func (sf *FileTransport) Tell() (int64, error) {
	s, ok := sf.rw.(io.Seeker)
	if !ok {
		return 0, ErrNotSupported
	}
	return s.Seek(0, io.SeekCurrent)
}

// SendCmd implements Transport interface. A failing flush after the write
// does not fail the command.
func (sf *FileTransport) SendCmd(msg string) error {
	if err := sf.WriteRaw([]byte(msg + sf.terminator)); err != nil {
		return err
	}
	if f, ok := sf.rw.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	return nil
}

// Query implements Transport interface. The response is read byte by byte
// since some kernel drivers misbehave on larger reads. A timeout after part
// of the response arrived returns that part, a broken pipe means the
// driver lost the instrument.
func (sf *FileTransport) Query(msg string, size int) (string, error) {
	if err := sf.SendCmd(msg); err != nil {
		return "", err
	}
	if !sf.testing {
		time.Sleep(FileQueryDelay)
	}

	var b []byte
	var err error
	if size >= 0 {
		b, err = readSize(sf.rw, size)
	} else {
		b, err = readTerminated(sf.rw, sf.terminator)
	}
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return string(b), nil
	case errors.Is(err, syscall.EPIPE):
		return "", fmt.Errorf("%w when reading from %s; this probably indicates that the driver "+
			"providing the device file is unable to communicate with the instrument, "+
			"consider restarting the instrument", ErrBrokenPipe, sf.Address())
	case isTimeout(err) && len(b) > 0:
		return string(b), nil
	}
	return "", err
}

// Close implements Transport interface, close errors are ignored.
func (sf *FileTransport) Close() error {
	if c, ok := sf.rw.(io.Closer); ok {
		_ = c.Close()
	}
	return nil
}
