package wire

import (
	"encoding/binary"
	"math"

	"github.com/ajitpratap0/chnative/pkg/errors"
)

var (
	// ErrTruncated is returned when a read needs more bytes than remain.
	ErrTruncated = errors.New(errors.ErrorTypeMalformed, "unexpected end of buffer")
	// ErrMalformedVarint is returned when a varint does not terminate within
	// its 10 byte limit.
	ErrMalformedVarint = errors.New(errors.ErrorTypeMalformed, "varint exceeds 10 bytes without terminating")
)

// maxVarintLen is the longest legal encoding of a uint64: ceil(64/7) bytes.
const maxVarintLen = 10

// Reader consumes wire primitives from an in-memory buffer. The zero value is
// an empty reader; use NewReader to wrap a byte slice. Reads never mutate the
// underlying buffer.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of buf. The buffer is
// not copied; the caller must not mutate it while the reader is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many unread bytes are left.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Pos reports the current byte offset, for error context.
func (r *Reader) Pos() int {
	return r.off
}

// take returns the next n bytes without copying and advances the cursor.
func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// UVarint reads a variable-length unsigned integer.
func (r *Reader) UVarint() (uint64, error) {
	var v uint64
	for i := 0; i < maxVarintLen; i++ {
		if r.off >= len(r.buf) {
			return 0, ErrTruncated
		}
		b := r.buf[r.off]
		r.off++
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, ErrMalformedVarint
}

// UInt8 reads one byte.
func (r *Reader) UInt8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// UInt16 reads a little-endian uint16.
func (r *Reader) UInt16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// UInt32 reads a little-endian uint32.
func (r *Reader) UInt32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// UInt64 reads a little-endian uint64.
func (r *Reader) UInt64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Int8 reads one signed byte.
func (r *Reader) Int8() (int8, error) {
	v, err := r.UInt8()
	return int8(v), err
}

// Int16 reads a little-endian int16.
func (r *Reader) Int16() (int16, error) {
	v, err := r.UInt16()
	return int16(v), err
}

// Int32 reads a little-endian int32.
func (r *Reader) Int32() (int32, error) {
	v, err := r.UInt32()
	return int32(v), err
}

// Int64 reads a little-endian int64.
func (r *Reader) Int64() (int64, error) {
	v, err := r.UInt64()
	return int64(v), err
}

// Float32 reads a little-endian IEEE 754 float32.
func (r *Reader) Float32() (float32, error) {
	v, err := r.UInt32()
	return math.Float32frombits(v), err
}

// Float64 reads a little-endian IEEE 754 float64.
func (r *Reader) Float64() (float64, error) {
	v, err := r.UInt64()
	return math.Float64frombits(v), err
}

// Bool reads one byte, treating any nonzero value as true.
func (r *Reader) Bool() (bool, error) {
	v, err := r.UInt8()
	return v != 0, err
}

// Fixed returns the next n raw bytes. The returned slice aliases the reader's
// buffer and is only valid while the buffer is.
func (r *Reader) Fixed(n int) ([]byte, error) {
	return r.take(n)
}

// String reads a varint length prefix followed by that many raw bytes. The
// result is copied out of the buffer.
func (r *Reader) String() (string, error) {
	n, err := r.UVarint()
	if err != nil {
		return "", err
	}
	if n > uint64(r.Remaining()) {
		return "", ErrTruncated
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bytes reads a varint length prefix followed by that many raw bytes,
// returning an owned copy.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.UVarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, ErrTruncated
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
