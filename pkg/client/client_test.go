package client

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chnative/pkg/block"
	"github.com/ajitpratap0/chnative/pkg/chtype"
	"github.com/ajitpratap0/chnative/pkg/column"
	"github.com/ajitpratap0/chnative/pkg/compress"
	"github.com/ajitpratap0/chnative/pkg/config"
	"github.com/ajitpratap0/chnative/pkg/errors"
	"github.com/ajitpratap0/chnative/pkg/proto"
	"github.com/ajitpratap0/chnative/pkg/wire"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Connection.Address = "pipe"
	cfg.Timeouts.Dial = time.Second
	cfg.Timeouts.Read = 5 * time.Second
	cfg.Timeouts.Write = 5 * time.Second
	cfg.Timeouts.Ping = 5 * time.Second
	return cfg
}

// fakeServer speaks the server side of the protocol over one half of a
// net.Pipe, reusing the client's stream helpers for reading.
type fakeServer struct {
	t *testing.T
	s *stream
}

func startServer(t *testing.T, script func(*fakeServer)) net.Conn {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	f := &fakeServer{t: t, s: newStream(serverConn, config.TimeoutConfig{}, 0)}
	go func() {
		defer serverConn.Close()
		f.acceptHello()
		script(f)
	}()
	return clientConn
}

func (f *fakeServer) acceptHello() {
	code, err := f.s.readUVarint()
	assert.NoError(f.t, err)
	assert.Equal(f.t, uint64(proto.ClientHello), code)
	_, _ = f.s.readString() // client name
	for i := 0; i < 3; i++ {
		_, _ = f.s.readUVarint() // version triple
	}
	for i := 0; i < 3; i++ {
		_, _ = f.s.readString() // database, username, password
	}

	w := wire.NewWriter(64)
	w.UVarint(proto.ServerHello)
	w.String("ClickHouse")
	w.UVarint(23)
	w.UVarint(8)
	w.UVarint(proto.ClientRevision)
	w.String("UTC")
	w.String("test-server")
	w.UVarint(2)
	f.write(w.Bytes())
}

func (f *fakeServer) write(b []byte) {
	_, err := f.s.conn.Write(b)
	assert.NoError(f.t, err)
}

// acceptQuery consumes a query packet plus the empty external-tables block
// and returns the query body.
func (f *fakeServer) acceptQuery() string {
	code, err := f.s.readUVarint()
	assert.NoError(f.t, err)
	assert.Equal(f.t, uint64(proto.ClientQuery), code)
	_, _ = f.s.readString() // query id
	f.s.readSized(1)        // query kind
	for i := 0; i < 3; i++ {
		f.s.readString() // initial user, query id, address
	}
	f.s.readSized(1) // interface
	for i := 0; i < 3; i++ {
		f.s.readString() // os user, hostname, client name
	}
	for i := 0; i < 3; i++ {
		f.s.readUVarint() // version triple
	}
	f.s.readString()  // quota key
	f.s.readUVarint() // patch
	otelFlag, _ := f.s.readSized(1)
	if v, _ := otelFlag.UInt8(); v == 1 {
		traceCtx, _ := f.s.readSized(24) // trace id + span id
		_ = traceCtx
		f.s.readString() // tracestate
		f.s.readSized(1) // flags
	}
	for {
		key, _ := f.s.readString()
		if key == "" {
			break
		}
		f.s.readUVarint() // flags
		f.s.readString()  // value
	}
	f.s.readString()  // interserver secret
	f.s.readUVarint() // stage
	compression, err := f.s.readUVarint()
	assert.NoError(f.t, err)
	body, err := f.s.readString()
	assert.NoError(f.t, err)

	f.acceptBlock(compression == proto.CompressionEnabled)
	return body
}

// acceptBlock consumes one data packet from the client.
func (f *fakeServer) acceptBlock(compressed bool) *block.Block {
	code, err := f.s.readUVarint()
	assert.NoError(f.t, err)
	assert.Equal(f.t, uint64(proto.ClientData), code)
	if !compressed {
		b, err := f.s.readBlock(proto.ClientRevision, false, column.NewDictionaryState())
		assert.NoError(f.t, err)
		return b
	}
	f.s.readString() // table name
	payload, err := compress.ReadBlock(f.s.br)
	assert.NoError(f.t, err)
	b, err := block.Decode(wire.NewReader(payload), proto.ClientRevision, column.NewDictionaryState())
	assert.NoError(f.t, err)
	return b
}

func (f *fakeServer) sendBlock(b *block.Block) {
	w := wire.NewWriter(16)
	w.UVarint(proto.ServerData)
	w.String("")
	f.write(w.Bytes())

	body := wire.NewWriter(256)
	assert.NoError(f.t, b.Encode(body, proto.ClientRevision))
	frame, err := compress.Frame(compress.LZ4, body.Bytes())
	assert.NoError(f.t, err)
	f.write(frame)
}

func (f *fakeServer) sendBlockRaw(b *block.Block) {
	w := wire.NewWriter(4096)
	w.UVarint(proto.ServerData)
	w.String("")
	assert.NoError(f.t, b.Encode(w, proto.ClientRevision))
	f.write(w.Bytes())
}

func (f *fakeServer) sendProgress(rows, bytes uint64) {
	w := wire.NewWriter(32)
	w.UVarint(proto.ServerProgress)
	w.UVarint(rows)
	w.UVarint(bytes)
	w.UVarint(0)
	w.UVarint(0)
	w.UVarint(0)
	f.write(w.Bytes())
}

func (f *fakeServer) sendProfileInfo(rows uint64) {
	w := wire.NewWriter(32)
	w.UVarint(proto.ServerProfileInfo)
	w.UVarint(rows)
	w.UVarint(1)
	w.UVarint(rows * 8)
	w.UVarint(0)
	w.UVarint(0)
	w.UVarint(0)
	f.write(w.Bytes())
}

func (f *fakeServer) sendException(code int32, message string) {
	w := wire.NewWriter(128)
	w.UVarint(proto.ServerException)
	w.Int32(code)
	w.String("DB::Exception")
	w.String(message)
	w.String("")
	w.UInt8(0)
	f.write(w.Bytes())
}

func (f *fakeServer) sendEndOfStream() {
	w := wire.NewWriter(1)
	w.UVarint(proto.ServerEndOfStream)
	f.write(w.Bytes())
}

func mustType(t *testing.T, s string) chtype.Type {
	t.Helper()
	typ, err := chtype.Parse(s)
	require.NoError(t, err)
	return typ
}

func dataBlock(t *testing.T, ids []uint64, names []string) *block.Block {
	t.Helper()
	b := block.New()
	idVals := make([]column.Value, len(ids))
	for i, v := range ids {
		idVals[i] = v
	}
	nameVals := make([]column.Value, len(names))
	for i, v := range names {
		nameVals[i] = v
	}
	require.NoError(t, b.AppendColumn("id", mustType(t, "UInt64"), idVals))
	require.NoError(t, b.AppendColumn("name", mustType(t, "LowCardinality(String)"), nameVals))
	return b
}

func TestHandshake(t *testing.T) {
	conn := startServer(t, func(f *fakeServer) {})
	c, err := NewWithConn(conn, testConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "ClickHouse", c.Server().Name)
	assert.Equal(t, "UTC", c.Server().Timezone)
	assert.Equal(t, uint64(proto.ClientRevision), c.Revision())
}

func TestHandshakeRejected(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	go func() {
		defer serverConn.Close()
		s := newStream(serverConn, config.TimeoutConfig{}, 0)
		s.readUVarint()
		s.readString()
		for i := 0; i < 3; i++ {
			s.readUVarint()
		}
		for i := 0; i < 3; i++ {
			s.readString()
		}
		w := wire.NewWriter(128)
		w.UVarint(proto.ServerException)
		w.Int32(516)
		w.String("DB::Exception")
		w.String("Authentication failed")
		w.String("")
		w.UInt8(0)
		serverConn.Write(w.Bytes())
	}()

	_, err := NewWithConn(clientConn, testConfig())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeServer))
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestPing(t *testing.T) {
	conn := startServer(t, func(f *fakeServer) {
		code, err := f.s.readUVarint()
		assert.NoError(f.t, err)
		assert.Equal(f.t, uint64(proto.ClientPing), code)
		w := wire.NewWriter(1)
		w.UVarint(proto.ServerPong)
		f.write(w.Bytes())
	})
	c, err := NewWithConn(conn, testConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.Ping(context.Background()))
}

func TestQueryStreamsRows(t *testing.T) {
	conn := startServer(t, func(f *fakeServer) {
		body := f.acceptQuery()
		assert.Equal(f.t, "SELECT id, name FROM events", body)

		f.sendBlock(dataBlock(f.t, nil, nil)) // schema-only block
		f.sendBlock(dataBlock(f.t, []uint64{1, 2}, []string{"a", "b"}))
		f.sendProgress(2, 128)
		f.sendBlock(dataBlock(f.t, []uint64{3}, []string{"a"}))
		f.sendProfileInfo(3)
		f.sendEndOfStream()
	})
	c, err := NewWithConn(conn, testConfig())
	require.NoError(t, err)
	defer c.Close()

	rows, err := c.Query(context.Background(), "SELECT id, name FROM events")
	require.NoError(t, err)

	var ids []uint64
	var names []string
	for rows.Next() {
		ids = append(ids, rows.Value(0).(uint64))
		names = append(names, rows.Value(1).(string))
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())

	assert.Equal(t, []uint64{1, 2, 3}, ids)
	assert.Equal(t, []string{"a", "b", "a"}, names)
	assert.Equal(t, []string{"id", "name"}, rows.Columns())
	assert.Equal(t, uint64(2), rows.Progress().Rows)
	require.NotNil(t, rows.Profile())
	assert.Equal(t, uint64(3), rows.Profile().Rows)
}

func TestQueryServerException(t *testing.T) {
	conn := startServer(t, func(f *fakeServer) {
		f.acceptQuery()
		f.sendException(60, "Table default.missing does not exist")
	})
	c, err := NewWithConn(conn, testConfig())
	require.NoError(t, err)
	defer c.Close()

	rows, err := c.Query(context.Background(), "SELECT * FROM missing")
	require.NoError(t, err)

	assert.False(t, rows.Next())
	require.Error(t, rows.Err())
	assert.True(t, errors.IsType(rows.Err(), errors.ErrorTypeServer))
	assert.Contains(t, rows.Err().Error(), "does not exist")
}

// A block exceeding the initial 64 KiB read buffer must still decode when the
// connection runs without compression.
func TestQueryLargeUncompressedBlock(t *testing.T) {
	const rowCount = 8192
	big := block.New()
	vals := make([]column.Value, rowCount)
	for i := range vals {
		vals[i] = fmt.Sprintf("payload-%08d-%08d", i, i*7)
	}
	require.NoError(t, big.AppendColumn("payload", mustType(t, "String"), vals))

	conn := startServer(t, func(f *fakeServer) {
		f.acceptQuery()
		f.sendBlockRaw(big)
		f.sendEndOfStream()
	})
	cfg := testConfig()
	cfg.Compression.Enabled = false
	c, err := NewWithConn(conn, cfg)
	require.NoError(t, err)
	defer c.Close()

	rows, err := c.Query(context.Background(), "SELECT payload FROM events")
	require.NoError(t, err)

	var got int
	for rows.Next() {
		if got == 0 {
			assert.Equal(t, "payload-00000000-00000000", rows.Value(0).(string))
		}
		got++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, rowCount, got)
}

// A server exception chain deeper than the decoder allows must surface as a
// malformed-packet error instead of recursing without bound.
func TestQueryRunawayExceptionNesting(t *testing.T) {
	conn := startServer(t, func(f *fakeServer) {
		f.acceptQuery()
		w := wire.NewWriter(4096)
		w.UVarint(proto.ServerException)
		for i := 0; i < 70; i++ {
			w.Int32(60)
			w.String("DB::Exception")
			w.String("level")
			w.String("")
			w.UInt8(1)
		}
		w.Int32(60)
		w.String("DB::Exception")
		w.String("bottom")
		w.String("")
		w.UInt8(0)
		f.write(w.Bytes())
	})
	c, err := NewWithConn(conn, testConfig())
	require.NoError(t, err)
	defer c.Close()

	rows, err := c.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)

	assert.False(t, rows.Next())
	require.Error(t, rows.Err())
	assert.Contains(t, rows.Err().Error(), "nesting too deep")
}

func TestInsert(t *testing.T) {
	received := make(chan *block.Block, 1)
	conn := startServer(t, func(f *fakeServer) {
		body := f.acceptQuery()
		assert.Equal(f.t, "INSERT INTO events (id, name) VALUES", body)

		// sample block advertising the schema
		f.sendBlock(dataBlock(f.t, nil, nil))

		data := f.acceptBlock(true)
		received <- data
		terminator := f.acceptBlock(true)
		assert.Equal(f.t, 0, terminator.Rows())

		f.sendEndOfStream()
	})
	c, err := NewWithConn(conn, testConfig())
	require.NoError(t, err)
	defer c.Close()

	data := dataBlock(t, []uint64{10, 20}, []string{"x", "y"})
	require.NoError(t, c.Insert(context.Background(), "INSERT INTO events (id, name) VALUES", data))

	got := <-received
	require.Len(t, got.Columns, 2)
	assert.Equal(t, 2, got.Rows())
	assert.Equal(t, uint64(10), got.Columns[0].Data[0])
	assert.Equal(t, "y", got.Columns[1].Data[1])
}

func TestQueryAfterClose(t *testing.T) {
	conn := startServer(t, func(f *fakeServer) {})
	c, err := NewWithConn(conn, testConfig())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}
