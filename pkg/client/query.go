package client

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/chnative/pkg/block"
	"github.com/ajitpratap0/chnative/pkg/column"
	"github.com/ajitpratap0/chnative/pkg/errors"
	"github.com/ajitpratap0/chnative/pkg/metrics"
	"github.com/ajitpratap0/chnative/pkg/pool"
	"github.com/ajitpratap0/chnative/pkg/proto"
)

func (c *Client) compressed() bool {
	return c.cfg.Compression.Enabled
}

func (c *Client) sendQuery(ctx context.Context, body string) (trace.Span, error) {
	span := trace.SpanFromContext(ctx)
	var querySpan trace.Span
	if c.cfg.Observability.EnableTracing {
		_, querySpan = c.tracer.Start(ctx, "query",
			trace.WithAttributes(attribute.String("db.statement", body)))
		span = querySpan
	}

	compression := uint64(proto.CompressionDisabled)
	if c.compressed() {
		compression = proto.CompressionEnabled
	}
	packet := &proto.QueryPacket{
		QueryID:     uuid.NewString(),
		Info:        c.clientInfo(),
		Settings:    c.querySettings(),
		Stage:       proto.StageComplete,
		Compression: compression,
		Body:        body,
		Span:        span.SpanContext(),
	}
	w := pool.GetWriter()
	defer pool.PutWriter(w)
	packet.Encode(w, c.revision)
	if err := c.stream.send(w.Bytes()); err != nil {
		return querySpan, err
	}

	// The query packet is followed by an empty block signalling that no
	// external tables follow.
	empty := block.New()
	if err := c.stream.writeBlock(c.revision, c.method, c.compressed(), empty); err != nil {
		return querySpan, err
	}
	c.log.Debug("query sent",
		zap.String("query_id", packet.QueryID),
		zap.Int("settings", len(packet.Settings)))
	return querySpan, nil
}

// Rows streams the result blocks of one query. Iterate with Next/Value or
// drain whole blocks with NextBlock for columnar consumers.
type Rows struct {
	client *Client
	state  *column.DictionaryState
	span   trace.Span
	timer  *metrics.Timer

	current *block.Block
	row     int
	names   []string

	progress proto.Progress
	profile  *proto.ProfileInfo
	err      error
	done     bool
}

// Query runs a SELECT and returns an iterator over its result rows. The
// iterator must be drained or closed before the connection is reused.
func (c *Client) Query(ctx context.Context, query string) (*Rows, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeConnection, "client is closed")
	}
	c.mu.Unlock()

	span, err := c.sendQuery(ctx, query)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("select", "failure").Inc()
		if span != nil {
			span.End()
		}
		return nil, err
	}
	return &Rows{
		client: c,
		state:  column.NewDictionaryState(),
		span:   span,
		timer:  metrics.NewTimer("select"),
	}, nil
}

// NextBlock fetches the next non-empty data block, or nil at end of stream.
func (r *Rows) NextBlock() (*block.Block, error) {
	if r.err != nil {
		return nil, r.err
	}
	for !r.done {
		code, err := r.client.stream.readUVarint()
		if err != nil {
			return nil, r.fail(err)
		}
		switch code {
		case proto.ServerData:
			b, err := r.client.stream.readBlock(r.client.revision, r.client.compressed(), r.state)
			if err != nil {
				return nil, r.fail(err)
			}
			if b.Rows() == 0 && len(b.Columns) == 0 {
				continue
			}
			metrics.BlocksTotal.WithLabelValues("received").Inc()
			metrics.RowsTotal.WithLabelValues("received").Add(float64(b.Rows()))
			if r.names == nil {
				for _, col := range b.Columns {
					r.names = append(r.names, col.Name)
				}
			}
			if b.Rows() == 0 {
				// Schema-only block; keep the column names and move on.
				continue
			}
			return b, nil
		case proto.ServerProgress:
			p, err := r.client.stream.readProgress(r.client.revision)
			if err != nil {
				return nil, r.fail(err)
			}
			r.progress.Rows += p.Rows
			r.progress.Bytes += p.Bytes
			if p.TotalRows > r.progress.TotalRows {
				r.progress.TotalRows = p.TotalRows
			}
		case proto.ServerProfileInfo:
			p, err := r.client.stream.readProfileInfo()
			if err != nil {
				return nil, r.fail(err)
			}
			r.profile = p
		case proto.ServerTotals, proto.ServerExtremes:
			if _, err := r.client.stream.readBlock(r.client.revision, r.client.compressed(), r.state); err != nil {
				return nil, r.fail(err)
			}
		case proto.ServerLog:
			// Server logs are shipped as an uncompressed block.
			if _, err := r.client.stream.readBlock(r.client.revision, false, column.NewDictionaryState()); err != nil {
				return nil, r.fail(err)
			}
		case proto.ServerException:
			e, err := r.client.stream.readException()
			if err != nil {
				return nil, r.fail(err)
			}
			metrics.ServerExceptions.WithLabelValues(strconv.Itoa(int(e.Code))).Inc()
			return nil, r.fail(e.AsError())
		case proto.ServerEndOfStream:
			r.finish(nil)
			return nil, nil
		default:
			return nil, r.fail(errors.Newf(errors.ErrorTypeProtocol, "unexpected packet %d in result stream", code))
		}
	}
	return nil, nil
}

// Next advances to the next row, fetching blocks as needed. It returns false
// at end of stream or on error; check Err afterwards.
func (r *Rows) Next() bool {
	if r.err != nil {
		return false
	}
	if r.current != nil && r.row+1 < r.current.Rows() {
		r.row++
		return true
	}
	b, err := r.NextBlock()
	if err != nil || b == nil {
		return false
	}
	r.current = b
	r.row = 0
	return true
}

// Columns returns the result column names, available after the first block.
func (r *Rows) Columns() []string {
	return r.names
}

// Value returns the current row's value in column i.
func (r *Rows) Value(i int) column.Value {
	return r.current.Columns[i].Data[r.row]
}

// Progress returns the accumulated server progress.
func (r *Rows) Progress() proto.Progress {
	return r.progress
}

// Profile returns the server's profile info, if the stream carried one.
func (r *Rows) Profile() *proto.ProfileInfo {
	return r.profile
}

// Err returns the first error encountered while streaming.
func (r *Rows) Err() error {
	return r.err
}

// Close drains the remaining stream so the connection can be reused.
func (r *Rows) Close() error {
	for !r.done {
		if _, err := r.NextBlock(); err != nil {
			return err
		}
	}
	return r.err
}

func (r *Rows) fail(err error) error {
	if r.err == nil {
		r.finish(err)
	}
	return r.err
}

func (r *Rows) finish(err error) {
	r.err = err
	r.done = true
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.QueriesTotal.WithLabelValues("select", status).Inc()
	d := r.timer.Stop()
	if r.span != nil {
		if err != nil {
			r.span.SetStatus(codes.Error, err.Error())
		}
		r.span.End()
	}
	r.client.log.Debug("query finished",
		zap.Duration("elapsed", d),
		zap.Uint64("rows_read", r.progress.Rows),
		zap.Error(err))
}

// Insert appends one block of rows to a table. The statement must be an
// INSERT without inline values, e.g. "INSERT INTO t (a, b) VALUES"; the
// block supplies the data.
func (c *Client) Insert(ctx context.Context, query string, data *block.Block) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrorTypeConnection, "client is closed")
	}
	c.mu.Unlock()

	timer := metrics.NewTimer("insert")
	defer timer.Stop()

	span, err := c.sendQuery(ctx, query)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("insert", "failure").Inc()
		if span != nil {
			span.End()
		}
		return err
	}
	err = c.insertStream(data)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.QueriesTotal.WithLabelValues("insert", status).Inc()
	if span != nil {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	return err
}

func (c *Client) insertStream(data *block.Block) error {
	state := column.NewDictionaryState()
	sentData := false
	for {
		code, err := c.stream.readUVarint()
		if err != nil {
			return err
		}
		switch code {
		case proto.ServerData:
			// The first data packet is the table's sample block describing
			// the expected schema.
			sample, err := c.stream.readBlock(c.revision, c.compressed(), state)
			if err != nil {
				return err
			}
			if sentData {
				continue
			}
			if len(sample.Columns) > 0 && len(sample.Columns) != len(data.Columns) {
				return errors.Newf(errors.ErrorTypeValidation,
					"insert block has %d columns, table expects %d", len(data.Columns), len(sample.Columns))
			}
			if err := c.stream.writeBlock(c.revision, c.method, c.compressed(), data); err != nil {
				return err
			}
			metrics.BlocksTotal.WithLabelValues("sent").Inc()
			metrics.RowsTotal.WithLabelValues("sent").Add(float64(data.Rows()))
			// An empty block terminates the insert stream.
			if err := c.stream.writeBlock(c.revision, c.method, c.compressed(), block.New()); err != nil {
				return err
			}
			sentData = true
		case proto.ServerProgress:
			if _, err := c.stream.readProgress(c.revision); err != nil {
				return err
			}
		case proto.ServerLog:
			if _, err := c.stream.readBlock(c.revision, false, column.NewDictionaryState()); err != nil {
				return err
			}
		case proto.ServerException:
			e, err := c.stream.readException()
			if err != nil {
				return err
			}
			metrics.ServerExceptions.WithLabelValues(strconv.Itoa(int(e.Code))).Inc()
			return e.AsError()
		case proto.ServerEndOfStream:
			if !sentData {
				return errors.New(errors.ErrorTypeProtocol, "stream ended before the server requested data")
			}
			return nil
		default:
			return errors.Newf(errors.ErrorTypeProtocol, "unexpected packet %d during insert", code)
		}
	}
}
