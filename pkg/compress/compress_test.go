package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chnative/pkg/errors"
)

func testPayloads() map[string][]byte {
	rng := rand.New(rand.NewSource(42))
	random := make([]byte, 8192)
	rng.Read(random)
	return map[string][]byte{
		"empty":        {},
		"tiny":         []byte("x"),
		"repetitive":   bytes.Repeat([]byte("clickhouse native protocol "), 512),
		"random":       random,
		"single block": make([]byte, 65536),
	}
}

func TestFrameRoundTrip(t *testing.T) {
	for _, method := range []Method{None, LZ4, ZSTD} {
		for name, data := range testPayloads() {
			if name == "empty" && method == LZ4 {
				// lz4 block framing has no representation for zero bytes;
				// real blocks always carry at least the block info preamble.
				continue
			}
			t.Run(method.String()+"/"+name, func(t *testing.T) {
				frame, err := Frame(method, data)
				require.NoError(t, err)

				got, err := Unframe(frame)
				require.NoError(t, err)
				assert.Equal(t, data, got)
			})
		}
	}
}

func TestFrameLayout(t *testing.T) {
	frame, err := Frame(LZ4, []byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, byte(0x82), frame[16], "method byte follows the checksum")
	compressedSize := uint32(frame[17]) | uint32(frame[18])<<8 | uint32(frame[19])<<16 | uint32(frame[20])<<24
	assert.Equal(t, len(frame)-16, int(compressedSize), "compressed size counts the 9 header bytes")
	uncompressedSize := uint32(frame[21]) | uint32(frame[22])<<8 | uint32(frame[23])<<16 | uint32(frame[24])<<24
	assert.Equal(t, uint32(5), uncompressedSize)
}

func TestUnframeDetectsCorruption(t *testing.T) {
	frame, err := Frame(ZSTD, bytes.Repeat([]byte("data"), 100))
	require.NoError(t, err)

	for _, pos := range []int{0, 8, 16, 17, 21, len(frame) - 1} {
		corrupted := append([]byte(nil), frame...)
		corrupted[pos] ^= 0xff
		_, err := Unframe(corrupted)
		require.Error(t, err, "flip at byte %d", pos)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMalformed), "flip at byte %d", pos)
	}
}

func TestUnframeRejectsShortInput(t *testing.T) {
	_, err := Unframe(make([]byte, 24))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformed))
}

func TestFrameRejectsUnknownMethod(t *testing.T) {
	_, err := Frame(Method(0x42), []byte("data"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestReadBlockStream(t *testing.T) {
	// Several frames back to back on one stream, mixed methods.
	var stream bytes.Buffer
	blocks := [][]byte{
		[]byte("first block"),
		bytes.Repeat([]byte("second "), 1000),
		{},
	}
	require.NoError(t, WriteBlock(&stream, LZ4, blocks[0]))
	require.NoError(t, WriteBlock(&stream, ZSTD, blocks[1]))
	require.NoError(t, WriteBlock(&stream, None, blocks[2]))

	for i, want := range blocks {
		got, err := ReadBlock(&stream)
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, want, got, "frame %d", i)
	}
	assert.Zero(t, stream.Len())
}

func TestReadBlockTruncatedStream(t *testing.T) {
	frame, err := Frame(LZ4, []byte("payload that will be cut off"))
	require.NoError(t, err)

	_, err = ReadBlock(bytes.NewReader(frame[:len(frame)-3]))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func BenchmarkFrame(b *testing.B) {
	data := bytes.Repeat([]byte("columnar data with repeating structure "), 2048)
	for _, method := range []Method{LZ4, ZSTD} {
		b.Run(method.String(), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				frame, err := Frame(method, data)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := Unframe(frame); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
