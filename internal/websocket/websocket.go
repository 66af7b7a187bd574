// Package websocket wraps gorilla/websocket with the small surface the
// bot swarm needs: one persistent text-frame connection per bot with
// deadline-aware reads and per-connection counters.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned for operations on a connection that was
// never established or has been closed.
var ErrNotConnected = fmt.Errorf("websocket: not connected")

// Metrics captures per-connection counters.
type Metrics struct {
	ConnectedAt      time.Time
	ConnectDuration  time.Duration
	MessagesSent     int64
	MessagesReceived int64
	BytesSent        int64
	BytesReceived    int64
}

// Config configures a Conn.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MaxMessageSize   int64
}

// Conn is a single client connection. At most one goroutine may read
// and one may write at a time, matching gorilla's concurrency contract.
type Conn struct {
	url     string
	headers http.Header
	dialer  *websocket.Dialer

	writeTimeout time.Duration
	maxMsgSize   int64

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	metrics Metrics
}

// New creates an unconnected Conn.
func New(cfg Config) *Conn {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 512 * 1024
	}

	return &Conn{
		url:     cfg.URL,
		headers: cfg.Headers,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		writeTimeout: cfg.WriteTimeout,
		maxMsgSize:   cfg.MaxMessageSize,
	}
}

// Connect establishes the connection. It may be called once.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("websocket: already connected")
	}
	if c.closed {
		return fmt.Errorf("websocket: connection already closed")
	}

	start := time.Now()
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket: dial %s: status %d: %w", c.url, resp.StatusCode, err)
		}
		return fmt.Errorf("websocket: dial %s: %w", c.url, err)
	}

	conn.SetReadLimit(c.maxMsgSize)
	c.conn = conn
	c.metrics.ConnectedAt = time.Now()
	c.metrics.ConnectDuration = time.Since(start)
	return nil
}

// Send writes one text frame.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket: write: %w", err)
	}

	c.metrics.MessagesSent++
	c.metrics.BytesSent += int64(len(data))
	return nil
}

// Receive blocks until the next frame arrives, the deadline passes, or
// the connection is closed. A zero deadline blocks indefinitely until
// Close unblocks the read.
func (c *Conn) Receive(deadline time.Time) ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil, ErrNotConnected
	}

	_ = conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("websocket: read: %w", err)
	}

	c.mu.Lock()
	c.metrics.MessagesReceived++
	c.metrics.BytesReceived += int64(len(data))
	c.mu.Unlock()

	return data, nil
}

// Close sends a close frame and tears down the connection, unblocking
// any pending Receive. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}

	frameErr := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(2*time.Second),
	)
	closeErr := c.conn.Close()
	c.conn = nil

	if frameErr != nil {
		return frameErr
	}
	return closeErr
}

// Metrics returns a snapshot of the connection counters.
func (c *Conn) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// IsCloseError reports whether err stems from the peer closing the
// connection, as opposed to a local timeout or protocol failure.
func IsCloseError(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
