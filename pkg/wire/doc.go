// Package wire implements the byte-level primitives of the ClickHouse native
// protocol: variable-length integers (7 payload bits per byte plus a
// continuation bit, at most 10 bytes), fixed-width little-endian integers and
// floats, and varint-length-prefixed byte strings.
//
// Reader and Writer are pure transforms over in-memory buffers with explicit
// cursor tracking. No I/O happens here; the transport layer hands the codec
// one decompressed block worth of bytes at a time.
//
// Strings are arbitrary byte sequences. No UTF-8 validation is performed at
// this layer; that is the caller's concern.
package wire
