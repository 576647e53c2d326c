package instrument

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// readTerminated reads r one byte at a time until the data ends with term,
// and returns it with term stripped. An empty term reads until the stream
// stops yielding data (end of file, timeout or an empty read).
// When the stream stops before term the bytes read so far are returned with
// an error wrapping ErrTerminatorNotFound and, if any, the cause.
func readTerminated(r io.Reader, term string) ([]byte, error) {
	var b [1]byte

	buf := make([]byte, 0, 64)
	for {
		n, err := r.Read(b[:])
		if n > 0 {
			buf = append(buf, b[0])
			if term != "" && bytes.HasSuffix(buf, []byte(term)) {
				return buf[:len(buf)-len(term)], nil
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) && !isTimeout(err) {
			return buf, err
		}
		if term == "" {
			return buf, nil
		}
		if err != nil {
			return buf, fmt.Errorf("%w: %w", ErrTerminatorNotFound, err)
		}
		return buf, ErrTerminatorNotFound
	}
}

// readSize reads exactly size bytes from r. A short read caused by end of
// stream returns what arrived without error, a short read caused by a
// timeout returns what arrived with an error wrapping ErrTimeout.
func readSize(r io.Reader, size int) ([]byte, error) {
	if size < 0 {
		return nil, ErrInvalidSize
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return buf[:n], nil
	case isTimeout(err):
		return buf[:n], fmt.Errorf("%w: read %d of %d bytes", ErrTimeout, n, size)
	default:
		return buf[:n], err
	}
}

// checkSize validates a read size argument.
func checkSize(size int) error {
	if size < -1 {
		return ErrInvalidSize
	}
	return nil
}
