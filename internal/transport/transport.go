// Package transport wraps gorilla/websocket behind the small message-oriented
// interface the bus and the hub need.
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a message-oriented, full-duplex connection carrying text frames.
// ReadMessage must only be called from one goroutine; WriteMessage and Close
// are safe for concurrent use.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
	RemoteAddr() string
}

// Dialer opens client connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// ErrClosed is returned by WriteMessage after Close.
var ErrClosed = errors.New("transport: connection closed")

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultWriteTimeout     = 10 * time.Second
)

// WebSocketDialer dials websocket endpoints.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// NewWebSocketDialer returns a dialer; zero durations select defaults.
func NewWebSocketDialer(handshakeTimeout, writeTimeout time.Duration) *WebSocketDialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &WebSocketDialer{HandshakeTimeout: handshakeTimeout, WriteTimeout: writeTimeout}
}

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(conn, d.WriteTimeout), nil
}

// Upgrader accepts server-side connections. Browser pages are served from the
// HTTP port and connect to the next port up, so the origin never matches the
// websocket host and is not checked.
type Upgrader struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

func NewUpgrader(writeTimeout time.Duration) *Upgrader {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Upgrader{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
	}
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (Conn, error) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(conn, u.writeTimeout), nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex // serializes writes; gorilla allows one concurrent writer
	closed bool
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

// ReadMessage returns the next text frame, skipping binary frames.
func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// IsNormalClose reports whether err is an orderly close of the peer or of our
// own side, as opposed to a transport failure.
func IsNormalClose(err error) bool {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
