/*
Package usbtmc implements the bulk transfer side of the USB Test and
Measurement Class on top of gousb.

To send a message the payload is split into transfers of at most
MaxTransferSize bytes, each prefixed by a DEV_DEP_MSG_OUT header and
padded to a multiple of 4 bytes, the last one flagged end of message.

To receive a message a REQUEST_DEV_DEP_MSG_IN header is sent on the out
endpoint, then the DEV_DEP_MSG_IN transfer is read from the in endpoint,
repeated until the device flags end of message.
*/
package usbtmc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// message ids
const (
	msgDevDepMsgOut       = 0x01
	msgRequestDevDepMsgIn = 0x02
	msgDevDepMsgIn        = 0x02
)

const (
	headerSize = 12
	alignment  = 4
)

// bmTransferAttributes bits
const (
	attrEOM            byte = 0x01
	attrTermCharEnable byte = 0x02
)

const (
	// DefaultTimeout transfer timeout of a new device
	DefaultTimeout = 5 * time.Second
	// DefaultMaxTransferSize largest payload of one transfer
	DefaultMaxTransferSize = 1024 * 1024
)

// errors
var (
	ErrShortHeader = errors.New("usbtmc: response shorter than the bulk-in header")
	ErrBadResponse = errors.New("usbtmc: unexpected bulk-in response")
)

// BulkIn is the bulk in endpoint, *gousb.InEndpoint satisfies it.
type BulkIn interface {
	ReadContext(ctx context.Context, b []byte) (int, error)
}

// BulkOut is the bulk out endpoint, *gousb.OutEndpoint satisfies it.
type BulkOut interface {
	WriteContext(ctx context.Context, b []byte) (int, error)
}

// bTagGen generates the transfer tags, 1 to 255.
type bTagGen struct {
	sync.Mutex
	value byte
}

func (b *bTagGen) next() byte {
	b.Lock()
	defer b.Unlock()
	b.value++
	if b.value == 0 {
		b.value = 1
	}
	return b.value
}

// encBulkOutHeader creates the DEV_DEP_MSG_OUT header.
//
//	0     MsgID
//	1     bTag
//	2     bTagInverse
//	3     reserved
//	4-7   transfer size, LSB first
//	8     bmTransferAttributes, bit 0 EOM
//	9-11  reserved
func encBulkOutHeader(tag byte, size int, eom bool) [headerSize]byte {
	var out [headerSize]byte
	out[0] = msgDevDepMsgOut
	out[1] = tag
	out[2] = ^tag
	binary.LittleEndian.PutUint32(out[4:8], uint32(size))
	if eom {
		out[8] = attrEOM
	}
	return out
}

// encBulkInHeader creates the REQUEST_DEV_DEP_MSG_IN header, bytes 8 and 9
// carry the term char enable bit and the term char.
func encBulkInHeader(tag byte, size int, termChar byte, termCharEnabled bool) [headerSize]byte {
	var out [headerSize]byte
	out[0] = msgRequestDevDepMsgIn
	out[1] = tag
	out[2] = ^tag
	binary.LittleEndian.PutUint32(out[4:8], uint32(size))
	if termCharEnabled {
		out[8] = attrTermCharEnable
		out[9] = termChar
	}
	return out
}

// bulkInHeader is a decoded DEV_DEP_MSG_IN header.
type bulkInHeader struct {
	tag  byte
	size int
	eom  bool
}

func decBulkInHeader(b []byte) (bulkInHeader, error) {
	if len(b) < headerSize {
		return bulkInHeader{}, ErrShortHeader
	}
	if b[0] != msgDevDepMsgIn || b[2] != ^b[1] {
		return bulkInHeader{}, fmt.Errorf("%w: msgid %#02x btag %#02x/%#02x", ErrBadResponse, b[0], b[1], b[2])
	}
	return bulkInHeader{
		tag:  b[1],
		size: int(binary.LittleEndian.Uint32(b[4:8])),
		eom:  b[8]&attrEOM != 0,
	}, nil
}

func pad(b []byte) []byte {
	if residual := len(b) % alignment; residual > 0 {
		b = append(b, make([]byte, alignment-residual)...)
	}
	return b
}

// Device is a USBTMC instrument.
type Device struct {
	in    BulkIn
	out   BulkOut
	tag   bTagGen
	close func() error

	termChar        byte
	termCharEnabled bool
	timeout         time.Duration
	maxTransferSize int
}

// New creates a device on already claimed endpoints, close releases them.
func New(in BulkIn, out BulkOut, close func() error) *Device {
	return &Device{
		in:              in,
		out:             out,
		close:           close,
		termChar:        '\n',
		timeout:         DefaultTimeout,
		maxTransferSize: DefaultMaxTransferSize,
	}
}

// TermChar returns the character ending a message.
func (d *Device) TermChar() byte { return d.termChar }

// SetTermChar sets the character ending a message, read requests ask the
// device to stop on it.
func (d *Device) SetTermChar(c byte) {
	d.termChar = c
	d.termCharEnabled = true
}

// Timeout returns the transfer timeout.
func (d *Device) Timeout() time.Duration { return d.timeout }

// SetTimeout sets the transfer timeout, zero waits forever.
func (d *Device) SetTimeout(t time.Duration) { d.timeout = t }

// SetMaxTransferSize sets the largest payload of one transfer.
func (d *Device) SetMaxTransferSize(n int) {
	if n > 0 {
		d.maxTransferSize = n
	}
}

func (d *Device) context() (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(context.Background(), d.timeout)
	}
	return context.WithCancel(context.Background())
}

// Write sends b as one message.
func (d *Device) Write(b []byte) (int, error) {
	written := 0
	for {
		chunk := b
		eom := true
		if len(chunk) > d.maxTransferSize {
			chunk, eom = chunk[:d.maxTransferSize], false
		}
		hdr := encBulkOutHeader(d.tag.next(), len(chunk), eom)
		frame := pad(append(hdr[:], chunk...))

		ctx, cancel := d.context()
		_, err := d.out.WriteContext(ctx, frame)
		cancel()
		if err != nil {
			return written, err
		}
		written += len(chunk)
		b = b[len(chunk):]
		if eom {
			return written, nil
		}
	}
}

// ReadRaw reads n bytes, or a whole message when n is negative.
func (d *Device) ReadRaw(n int) ([]byte, error) {
	var msg []byte
	for n < 0 || len(msg) < n {
		want := d.maxTransferSize
		if n >= 0 && n-len(msg) < want {
			want = n - len(msg)
		}
		data, eom, err := d.transferIn(want)
		msg = append(msg, data...)
		if err != nil {
			return msg, err
		}
		if eom || len(data) == 0 {
			break
		}
	}
	return msg, nil
}

// transferIn runs one request/response exchange of at most size bytes.
func (d *Device) transferIn(size int) ([]byte, bool, error) {
	ctx, cancel := d.context()
	defer cancel()

	tag := d.tag.next()
	hdr := encBulkInHeader(tag, size, d.termChar, d.termCharEnabled)
	if _, err := d.out.WriteContext(ctx, hdr[:]); err != nil {
		return nil, false, err
	}

	buf := make([]byte, headerSize+size+alignment)
	n, err := d.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, false, err
	}
	h, err := decBulkInHeader(buf[:n])
	if err != nil {
		return nil, false, err
	}
	if h.tag != tag {
		return nil, false, fmt.Errorf("%w: btag %d, want %d", ErrBadResponse, h.tag, tag)
	}
	data := buf[headerSize:n]
	// the transfer may span several endpoint reads
	for len(data) < h.size {
		m, err := d.in.ReadContext(ctx, buf[n:])
		if err != nil {
			return data, false, err
		}
		if m == 0 {
			break
		}
		n += m
		data = buf[headerSize:n]
	}
	if len(data) > h.size {
		data = data[:h.size]
	}
	return data, h.eom, nil
}

// Ask writes msg and reads the response message without trailing line ends.
func (d *Device) Ask(msg string) (string, error) {
	if _, err := d.Write([]byte(msg)); err != nil {
		return "", err
	}
	b, err := d.ReadRaw(-1)
	return strings.TrimRight(string(b), "\r\n"), err
}

// Close releases the device.
func (d *Device) Close() error {
	if d.close == nil {
		return nil
	}
	err := d.close()
	d.close = nil
	return err
}
