package instrument

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// attempts without progress before a binary block read gives up
const binBlockTries = 3

// default decoding per data width, signed big endian
var binBlockFormats = map[int]string{
	1: ">b",
	2: ">h",
	4: ">i",
}

// BinBlockReadBytes reads a binary block, '#', one digit d, d digits giving
// the payload length, then the payload, and returns the payload.
func (sf *Instrument) BinBlockReadBytes() ([]byte, error) {
	sym, err := sf.comm.ReadRaw(1)
	if err != nil {
		return nil, err
	}
	if len(sym) != 1 || sym[0] != '#' {
		return nil, fmt.Errorf("%w: binary blocks start with '#', got %q", ErrInvalidBlock, sym)
	}
	d, err := sf.comm.ReadRaw(1)
	if err != nil {
		return nil, err
	}
	if len(d) != 1 || d[0] < '1' || d[0] > '9' {
		return nil, fmt.Errorf("%w: bad length digit count %q", ErrInvalidBlock, d)
	}
	cnt, err := sf.comm.ReadRaw(int(d[0] - '0'))
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(string(cnt))
	if err != nil || n < 0 || len(cnt) != int(d[0]-'0') {
		return nil, fmt.Errorf("%w: bad length %q", ErrInvalidBlock, cnt)
	}
	return sf.readBlock(n)
}

// readBlock reads n bytes, looping over short reads.
func (sf *Instrument) readBlock(n int) ([]byte, error) {
	data := make([]byte, 0, n)
	tries := binBlockTries
	for len(data) < n {
		b, err := sf.comm.ReadRaw(n - len(data))
		if err != nil && !isTimeout(err) {
			return data, err
		}
		if len(b) == 0 {
			if tries--; tries == 0 {
				return data, fmt.Errorf("%w: got %d, expected %d", ErrShortBlock, len(data), n)
			}
			continue
		}
		data = append(data, b...)
	}
	return data, nil
}

// BinBlockRead reads a binary block and decodes it as an array of numbers
// dataWidth (1, 2 or 4) bytes wide. format overrides the decoding, it is a
// byte order ('>', '!' big, '<' little, '=', '@' native, default native)
// followed by one of b B h H i I l L q Q f d.
func (sf *Instrument) BinBlockRead(dataWidth int, format string) ([]float64, error) {
	if format == "" {
		var ok bool
		if format, ok = binBlockFormats[dataWidth]; !ok {
			format = ">b"
		}
	}
	dec, err := parseBlockFormat(format)
	if err != nil {
		return nil, err
	}
	data, err := sf.BinBlockReadBytes()
	if err != nil {
		return nil, err
	}
	return dec.decode(data)
}

type blockDecoder struct {
	order binary.ByteOrder
	kind  byte
	width int
}

func parseBlockFormat(format string) (blockDecoder, error) {
	dec := blockDecoder{order: binary.NativeEndian}
	f := format
	if len(f) > 0 {
		switch f[0] {
		case '>', '!':
			dec.order, f = binary.BigEndian, f[1:]
		case '<':
			dec.order, f = binary.LittleEndian, f[1:]
		case '=', '@':
			f = f[1:]
		}
	}
	if len(f) != 1 {
		return dec, fmt.Errorf("instrument: invalid binary block format %q", format)
	}
	dec.kind = f[0]
	switch dec.kind {
	case 'b', 'B':
		dec.width = 1
	case 'h', 'H':
		dec.width = 2
	case 'i', 'I', 'l', 'L', 'f':
		dec.width = 4
	case 'q', 'Q', 'd':
		dec.width = 8
	default:
		return dec, fmt.Errorf("instrument: invalid binary block format %q", format)
	}
	return dec, nil
}

func (dec blockDecoder) decode(data []byte) ([]float64, error) {
	if len(data)%dec.width != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidBlock, len(data), dec.width)
	}
	out := make([]float64, 0, len(data)/dec.width)
	for i := 0; i < len(data); i += dec.width {
		b := data[i : i+dec.width]
		var v float64
		switch dec.kind {
		case 'b':
			v = float64(int8(b[0]))
		case 'B':
			v = float64(b[0])
		case 'h':
			v = float64(int16(dec.order.Uint16(b)))
		case 'H':
			v = float64(dec.order.Uint16(b))
		case 'i', 'l':
			v = float64(int32(dec.order.Uint32(b)))
		case 'I', 'L':
			v = float64(dec.order.Uint32(b))
		case 'q':
			v = float64(int64(dec.order.Uint64(b)))
		case 'Q':
			v = float64(dec.order.Uint64(b))
		case 'f':
			v = float64(math.Float32frombits(dec.order.Uint32(b)))
		case 'd':
			v = math.Float64frombits(dec.order.Uint64(b))
		}
		out = append(out, v)
	}
	return out, nil
}
