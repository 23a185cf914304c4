package wire

import (
	"encoding/binary"
	"math"
)

// Writer accumulates wire primitives into an in-memory buffer. The zero value
// is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the accumulated buffer. The slice is owned by the writer and
// is invalidated by further writes or Reset.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len reports the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reset truncates the buffer for reuse.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// alloc extends the buffer by n bytes and returns the extension.
func (w *Writer) alloc(n int) []byte {
	l := len(w.buf)
	if cap(w.buf)-l < n {
		grown := make([]byte, l, 2*cap(w.buf)+n)
		copy(grown, w.buf)
		w.buf = grown
	}
	w.buf = w.buf[:l+n]
	return w.buf[l : l+n]
}

// UVarint writes v in the minimal number of varint bytes.
func (w *Writer) UVarint(v uint64) {
	for v >= 0x80 {
		w.buf = append(w.buf, byte(v)|0x80)
		v >>= 7
	}
	w.buf = append(w.buf, byte(v))
}

// UInt8 writes one byte.
func (w *Writer) UInt8(v uint8) {
	w.buf = append(w.buf, v)
}

// UInt16 writes a little-endian uint16.
func (w *Writer) UInt16(v uint16) {
	binary.LittleEndian.PutUint16(w.alloc(2), v)
}

// UInt32 writes a little-endian uint32.
func (w *Writer) UInt32(v uint32) {
	binary.LittleEndian.PutUint32(w.alloc(4), v)
}

// UInt64 writes a little-endian uint64.
func (w *Writer) UInt64(v uint64) {
	binary.LittleEndian.PutUint64(w.alloc(8), v)
}

// Int8 writes one signed byte.
func (w *Writer) Int8(v int8) {
	w.UInt8(uint8(v))
}

// Int16 writes a little-endian int16.
func (w *Writer) Int16(v int16) {
	w.UInt16(uint16(v))
}

// Int32 writes a little-endian int32.
func (w *Writer) Int32(v int32) {
	w.UInt32(uint32(v))
}

// Int64 writes a little-endian int64.
func (w *Writer) Int64(v int64) {
	w.UInt64(uint64(v))
}

// Float32 writes a little-endian IEEE 754 float32.
func (w *Writer) Float32(v float32) {
	w.UInt32(math.Float32bits(v))
}

// Float64 writes a little-endian IEEE 754 float64.
func (w *Writer) Float64(v float64) {
	w.UInt64(math.Float64bits(v))
}

// Bool writes one byte, 1 for true and 0 for false.
func (w *Writer) Bool(v bool) {
	if v {
		w.UInt8(1)
	} else {
		w.UInt8(0)
	}
}

// Fixed writes raw bytes with no prefix.
func (w *Writer) Fixed(b []byte) {
	w.buf = append(w.buf, b...)
}

// String writes a varint length prefix followed by the raw bytes of s.
func (w *Writer) String(s string) {
	w.UVarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// PutBytes writes a varint length prefix followed by b.
func (w *Writer) PutBytes(b []byte) {
	w.UVarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}
