// Package compress implements ClickHouse compressed frames: a CityHash128
// checksum, a method byte, the two size words, then the compressed payload.
// The checksum covers the 9 header bytes and the payload.
package compress

import (
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/chnative/internal/cityhash"
	"github.com/ajitpratap0/chnative/pkg/errors"
)

// Method identifies the compression algorithm of a frame.
type Method byte

const (
	None Method = 0x02
	LZ4  Method = 0x82
	ZSTD Method = 0x90
)

func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

const (
	checksumSize  = 16
	headerSize    = 9 // method byte + compressed size + uncompressed size
	frameOverhead = checksumSize + headerSize

	// maxBlockSize bounds the uncompressed size a frame may declare.
	maxBlockSize = 1 << 30
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1))
	zstdDecoder, _ = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxBlockSize))
)

// Frame compresses data into one complete frame.
func Frame(method Method, data []byte) ([]byte, error) {
	if len(data) > maxBlockSize {
		return nil, errors.Newf(errors.ErrorTypeValidation, "block of %d bytes exceeds the frame limit", len(data))
	}

	var payload []byte
	switch method {
	case None:
		payload = data
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		var c lz4.Compressor
		n, err := c.CompressBlock(data, buf)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "lz4 compression failed")
		}
		payload = buf[:n]
	case ZSTD:
		payload = zstdEncoder.EncodeAll(data, nil)
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported compression method 0x%02x", byte(method))
	}

	frame := make([]byte, frameOverhead+len(payload))
	frame[checksumSize] = byte(method)
	binary.LittleEndian.PutUint32(frame[checksumSize+1:], uint32(headerSize+len(payload)))
	binary.LittleEndian.PutUint32(frame[checksumSize+5:], uint32(len(data)))
	copy(frame[frameOverhead:], payload)

	sum := cityhash.Hash128(frame[checksumSize:])
	binary.LittleEndian.PutUint64(frame[0:], sum.Low)
	binary.LittleEndian.PutUint64(frame[8:], sum.High)
	return frame, nil
}

// Unframe verifies and decompresses one complete frame.
func Unframe(frame []byte) ([]byte, error) {
	if len(frame) < frameOverhead {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "frame of %d bytes is shorter than its header", len(frame))
	}
	want := cityhash.U128{
		Low:  binary.LittleEndian.Uint64(frame[0:]),
		High: binary.LittleEndian.Uint64(frame[8:]),
	}
	if got := cityhash.Hash128(frame[checksumSize:]); got != want {
		return nil, errors.New(errors.ErrorTypeMalformed, "frame checksum mismatch")
	}

	method := Method(frame[checksumSize])
	compressedSize := binary.LittleEndian.Uint32(frame[checksumSize+1:])
	uncompressedSize := binary.LittleEndian.Uint32(frame[checksumSize+5:])
	if int(compressedSize) != len(frame)-checksumSize {
		return nil, errors.Newf(errors.ErrorTypeMalformed,
			"frame declares %d compressed bytes, carries %d", compressedSize, len(frame)-checksumSize)
	}
	if uncompressedSize > maxBlockSize {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "implausible uncompressed size %d", uncompressedSize)
	}

	payload := frame[frameOverhead:]
	switch method {
	case None:
		if int(uncompressedSize) != len(payload) {
			return nil, errors.Newf(errors.ErrorTypeMalformed,
				"uncompressed frame declares %d bytes, carries %d", uncompressedSize, len(payload))
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case LZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeMalformed, "lz4 decompression failed")
		}
		if n != int(uncompressedSize) {
			return nil, errors.Newf(errors.ErrorTypeMalformed,
				"frame declares %d uncompressed bytes, yields %d", uncompressedSize, n)
		}
		return out, nil
	case ZSTD:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeMalformed, "zstd decompression failed")
		}
		if len(out) != int(uncompressedSize) {
			return nil, errors.Newf(errors.ErrorTypeMalformed,
				"frame declares %d uncompressed bytes, yields %d", uncompressedSize, len(out))
		}
		return out, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeMalformed, "unknown compression method 0x%02x", byte(method))
	}
}

// WriteBlock frames data and writes it to w.
func WriteBlock(w io.Writer, method Method, data []byte) error {
	frame, err := Frame(method, data)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "write compressed frame")
	}
	return nil
}

// ReadBlock reads exactly one frame from r and returns its decompressed
// payload.
func ReadBlock(r io.Reader) ([]byte, error) {
	header := make([]byte, frameOverhead)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "read frame header")
	}
	compressedSize := binary.LittleEndian.Uint32(header[checksumSize+1:])
	if compressedSize < headerSize || compressedSize > maxBlockSize {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "implausible compressed size %d", compressedSize)
	}
	frame := make([]byte, checksumSize+int(compressedSize))
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[frameOverhead:]); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "read frame payload")
	}
	return Unframe(frame)
}
