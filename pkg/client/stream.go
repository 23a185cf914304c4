package client

import (
	"bufio"
	"bytes"
	"encoding/binary"
	stderrors "errors"
	"io"
	"net"
	"time"

	"github.com/ajitpratap0/chnative/pkg/block"
	"github.com/ajitpratap0/chnative/pkg/column"
	"github.com/ajitpratap0/chnative/pkg/compress"
	"github.com/ajitpratap0/chnative/pkg/config"
	"github.com/ajitpratap0/chnative/pkg/errors"
	"github.com/ajitpratap0/chnative/pkg/metrics"
	"github.com/ajitpratap0/chnative/pkg/pool"
	"github.com/ajitpratap0/chnative/pkg/proto"
	"github.com/ajitpratap0/chnative/pkg/wire"
)

// maxStringSize bounds length-prefixed strings read off the stream.
const maxStringSize = 1 << 24

// maxFramesPerBlock bounds how many compressed frames one block may span.
const maxFramesPerBlock = 1 << 16

// defaultMaxBuffer caps read buffer growth when the config does not set a
// limit. Uncompressed blocks must fit in the buffer whole.
const defaultMaxBuffer = 1 << 26

// stream owns the buffered byte-level view of the connection.
type stream struct {
	conn      net.Conn
	br        *bufio.Reader
	timeouts  config.TimeoutConfig
	maxBuffer int
}

func newStream(conn net.Conn, timeouts config.TimeoutConfig, maxBuffer int) *stream {
	if maxBuffer <= 0 {
		maxBuffer = defaultMaxBuffer
	}
	return &stream{
		conn:      conn,
		br:        bufio.NewReaderSize(conn, 1<<16),
		timeouts:  timeouts,
		maxBuffer: maxBuffer,
	}
}

// send writes one complete packet.
func (s *stream) send(packet []byte) error {
	if s.timeouts.Write > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.timeouts.Write))
	}
	n, err := s.conn.Write(packet)
	metrics.BytesTotal.WithLabelValues("sent").Add(float64(n))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "write packet")
	}
	return nil
}

func (s *stream) readUVarint() (uint64, error) {
	if s.timeouts.Read > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.timeouts.Read))
	}
	v, err := binary.ReadUvarint(s.br)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConnection, "read varint")
	}
	return v, nil
}

func (s *stream) readFull(buf []byte) error {
	if s.timeouts.Read > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.timeouts.Read))
	}
	n, err := io.ReadFull(s.br, buf)
	metrics.BytesTotal.WithLabelValues("received").Add(float64(n))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "read packet body")
	}
	return nil
}

func (s *stream) readString() (string, error) {
	n, err := s.readUVarint()
	if err != nil {
		return "", err
	}
	if n > maxStringSize {
		return "", errors.Newf(errors.ErrorTypeMalformed, "implausible string length %d", n)
	}
	buf := make([]byte, n)
	if err := s.readFull(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// readSized pulls a fixed number of bytes and hands them to a wire reader.
func (s *stream) readSized(n int) (*wire.Reader, error) {
	buf := make([]byte, n)
	if err := s.readFull(buf); err != nil {
		return nil, err
	}
	return wire.NewReader(buf), nil
}

// decodePacket reads one unprefixed packet off the stream by decoding against
// the buffered window and asking for one more byte whenever the decode comes
// up short. Asking for exactly one byte past what is buffered keeps this from
// blocking on data that will never arrive; the buffer grows as needed up to
// the configured limit.
func (s *stream) decodePacket(what string, decode func(*wire.Reader) error) error {
	if s.timeouts.Read > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.timeouts.Read))
	}
	need := 1
	for {
		if need > s.br.Size() {
			if err := s.growBuffer(need); err != nil {
				return err
			}
		}
		if _, err := s.br.Peek(need); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "read "+what)
		}
		window, _ := s.br.Peek(s.br.Buffered())
		r := wire.NewReader(window)
		err := decode(r)
		if err == nil {
			if _, err := s.br.Discard(r.Pos()); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConnection, "consume "+what)
			}
			metrics.BytesTotal.WithLabelValues("received").Add(float64(r.Pos()))
			return nil
		}
		if !stderrors.Is(err, wire.ErrTruncated) {
			return err
		}
		need = s.br.Buffered() + 1
	}
}

// growBuffer replaces the read buffer with a larger one, carrying over the
// bytes already buffered.
func (s *stream) growBuffer(need int) error {
	if need > s.maxBuffer {
		return errors.Newf(errors.ErrorTypeCapability,
			"packet exceeds the %d byte read limit; raise connection.max_block_bytes or enable compression", s.maxBuffer)
	}
	size := s.br.Size() * 2
	for size < need {
		size *= 2
	}
	if size > s.maxBuffer {
		size = s.maxBuffer
	}
	carried, _ := s.br.Peek(s.br.Buffered())
	carried = append([]byte(nil), carried...)
	s.br = bufio.NewReaderSize(io.MultiReader(bytes.NewReader(carried), s.conn), size)
	return nil
}

func (s *stream) readServerHello() (*proto.ServerHelloPacket, error) {
	var p *proto.ServerHelloPacket
	err := s.decodePacket("server hello", func(r *wire.Reader) error {
		var derr error
		p, derr = proto.DecodeServerHello(r)
		return derr
	})
	return p, err
}

func (s *stream) readException() (*proto.Exception, error) {
	var e *proto.Exception
	err := s.decodePacket("exception", func(r *wire.Reader) error {
		var derr error
		e, derr = proto.DecodeException(r)
		return derr
	})
	return e, err
}

func (s *stream) readProgress(revision uint64) (*proto.Progress, error) {
	var p *proto.Progress
	err := s.decodePacket("progress", func(r *wire.Reader) error {
		var derr error
		p, derr = proto.DecodeProgress(r, revision)
		return derr
	})
	return p, err
}

func (s *stream) readProfileInfo() (*proto.ProfileInfo, error) {
	var p *proto.ProfileInfo
	err := s.decodePacket("profile info", func(r *wire.Reader) error {
		var derr error
		p, derr = proto.DecodeProfileInfo(r)
		return derr
	})
	return p, err
}

// readBlock reads one data block: the table name, then either raw bytes or a
// run of compressed frames. A block larger than one frame continues in the
// next frame, so decoding retries with more data on truncation.
func (s *stream) readBlock(revision uint64, compressed bool, state *column.DictionaryState) (*block.Block, error) {
	if revision >= proto.DBMS_MIN_REVISION_WITH_TEMPORARY_TABLES {
		if _, err := s.readString(); err != nil {
			return nil, err
		}
	}

	if !compressed {
		return s.readBlockRaw(revision, state)
	}

	payload, err := compress.ReadBlock(s.br)
	if err != nil {
		return nil, err
	}
	for frames := 1; ; frames++ {
		r := wire.NewReader(payload)
		b, err := block.Decode(r, revision, state)
		if err == nil {
			return b, nil
		}
		if !stderrors.Is(err, wire.ErrTruncated) || frames >= maxFramesPerBlock {
			return nil, err
		}
		next, err2 := compress.ReadBlock(s.br)
		if err2 != nil {
			return nil, err2
		}
		payload = append(payload, next...)
	}
}

// readBlockRaw decodes an uncompressed block, which has no length prefix.
func (s *stream) readBlockRaw(revision uint64, state *column.DictionaryState) (*block.Block, error) {
	var b *block.Block
	err := s.decodePacket("block", func(r *wire.Reader) error {
		var derr error
		b, derr = block.Decode(r, revision, state)
		return derr
	})
	return b, err
}

// writeBlock sends one data packet carrying b, framed when the connection
// negotiated compression.
func (s *stream) writeBlock(revision uint64, method compress.Method, compressed bool, b *block.Block) error {
	header := pool.GetWriter()
	defer pool.PutWriter(header)
	proto.EncodeDataHeader(header, revision, "")
	if err := s.send(header.Bytes()); err != nil {
		return err
	}

	body := pool.GetWriter()
	defer pool.PutWriter(body)
	if err := b.Encode(body, revision); err != nil {
		return err
	}
	if !compressed {
		return s.send(body.Bytes())
	}
	frame, err := compress.Frame(method, body.Bytes())
	if err != nil {
		return err
	}
	return s.send(frame)
}
