// Package client implements a ClickHouse native TCP protocol client: the
// handshake, queries with streamed result blocks, columnar inserts, and
// pings. One Client owns one connection; it is safe for sequential use only.
package client

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/chnative/pkg/compress"
	"github.com/ajitpratap0/chnative/pkg/config"
	"github.com/ajitpratap0/chnative/pkg/errors"
	"github.com/ajitpratap0/chnative/pkg/logger"
	"github.com/ajitpratap0/chnative/pkg/metrics"
	"github.com/ajitpratap0/chnative/pkg/proto"
	"github.com/ajitpratap0/chnative/pkg/wire"
)

const (
	clientVersionMajor = 1
	clientVersionMinor = 0
)

// Client is one native protocol connection after a successful handshake.
type Client struct {
	cfg      *config.Config
	conn     net.Conn
	stream   *stream
	server   *proto.ServerHelloPacket
	revision uint64
	method   compress.Method
	log      *zap.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	closed bool
}

// Connect dials the configured address and performs the handshake, retrying
// transient failures per the reliability settings.
func Connect(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid client config")
	}

	var lastErr error
	delay := cfg.Reliability.RetryDelay
	for attempt := 0; attempt <= cfg.Reliability.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "connect cancelled")
			}
			delay = time.Duration(float64(delay) * cfg.Reliability.RetryMultiplier)
			if delay > cfg.Reliability.MaxRetryDelay {
				delay = cfg.Reliability.MaxRetryDelay
			}
		}

		c, err := connectOnce(ctx, cfg)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			return nil, err
		}
		logger.Get().Warn("connection attempt failed",
			zap.String("addr", cfg.Connection.Address),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

func connectOnce(ctx context.Context, cfg *config.Config) (*Client, error) {
	dialer := net.Dialer{Timeout: cfg.Timeouts.Dial}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Connection.Address)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "dial "+cfg.Connection.Address)
	}
	c, err := NewWithConn(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewWithConn performs the handshake over an existing connection. The client
// takes ownership of conn.
func NewWithConn(conn net.Conn, cfg *config.Config) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		conn:   conn,
		stream: newStream(conn, cfg.Timeouts, cfg.Connection.MaxBlockBytes),
		log: logger.Get().With(
			zap.String("addr", cfg.Connection.Address),
			zap.String("database", cfg.Connection.Database)),
		tracer: otel.Tracer("chnative/client"),
		method: compress.None,
	}
	if cfg.Compression.Enabled {
		switch cfg.Compression.Method {
		case "zstd":
			c.method = compress.ZSTD
		default:
			c.method = compress.LZ4
		}
	}
	if err := c.handshake(); err != nil {
		return nil, err
	}
	metrics.ActiveConnections.Inc()
	return c, nil
}

func (c *Client) handshake() error {
	hello := &proto.ClientHelloPacket{
		ClientName:   c.cfg.Connection.ClientName,
		VersionMajor: clientVersionMajor,
		VersionMinor: clientVersionMinor,
		Revision:     proto.ClientRevision,
		Database:     c.cfg.Connection.Database,
		Username:     c.cfg.Connection.Username,
		Password:     c.cfg.Connection.Password,
	}
	w := wire.NewWriter(128)
	hello.Encode(w)
	if err := c.stream.send(w.Bytes()); err != nil {
		return err
	}

	code, err := c.stream.readUVarint()
	if err != nil {
		return err
	}
	switch code {
	case proto.ServerHello:
		server, err := c.stream.readServerHello()
		if err != nil {
			return err
		}
		c.server = server
		c.revision = min(server.Revision, proto.ClientRevision)
		c.log.Debug("handshake complete",
			zap.String("server", server.Name),
			zap.Uint64("revision", c.revision),
			zap.String("timezone", server.Timezone))
		return nil
	case proto.ServerException:
		e, err := c.stream.readException()
		if err != nil {
			return err
		}
		return e.AsError()
	default:
		return errors.Newf(errors.ErrorTypeProtocol, "unexpected packet %d during handshake", code)
	}
}

// Server returns the server's handshake information.
func (c *Client) Server() *proto.ServerHelloPacket {
	return c.server
}

// Revision returns the negotiated protocol revision.
func (c *Client) Revision() uint64 {
	return c.revision
}

// Ping checks connection liveness.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New(errors.ErrorTypeConnection, "client is closed")
	}

	timer := metrics.NewTimer("ping")
	defer timer.Stop()

	deadline := time.Now().Add(c.cfg.Timeouts.Ping)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetDeadline(deadline)
	defer c.conn.SetDeadline(time.Time{})

	w := wire.NewWriter(1)
	proto.EncodePing(w)
	if err := c.stream.send(w.Bytes()); err != nil {
		metrics.QueriesTotal.WithLabelValues("ping", "failure").Inc()
		return err
	}

	for {
		code, err := c.stream.readUVarint()
		if err != nil {
			metrics.QueriesTotal.WithLabelValues("ping", "failure").Inc()
			return err
		}
		switch code {
		case proto.ServerPong:
			metrics.QueriesTotal.WithLabelValues("ping", "success").Inc()
			return nil
		case proto.ServerProgress:
			// Late progress from a previous query; skip and keep waiting.
			if _, err := c.stream.readProgress(c.revision); err != nil {
				return err
			}
		case proto.ServerException:
			e, err := c.stream.readException()
			if err != nil {
				return err
			}
			metrics.QueriesTotal.WithLabelValues("ping", "failure").Inc()
			return e.AsError()
		default:
			return errors.Newf(errors.ErrorTypeProtocol, "unexpected packet %d waiting for pong", code)
		}
	}
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	metrics.ActiveConnections.Dec()
	return c.conn.Close()
}

func (c *Client) querySettings() []proto.Setting {
	settings := make([]proto.Setting, 0, len(c.cfg.Settings))
	for k, v := range c.cfg.Settings {
		settings = append(settings, proto.Setting{Key: k, Value: v})
	}
	return settings
}

func (c *Client) clientInfo() proto.ClientInfo {
	hostname, _ := os.Hostname()
	return proto.ClientInfo{
		QueryKind:    proto.InitialQuery,
		OSUser:       os.Getenv("USER"),
		Hostname:     hostname,
		ClientName:   c.cfg.Connection.ClientName,
		VersionMajor: clientVersionMajor,
		VersionMinor: clientVersionMinor,
		Revision:     proto.ClientRevision,
	}
}
