package bus

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/robotweb/nsbus/internal/transport"
)

// fakeConn is an in-memory transport.Conn. Frames pushed with deliver are
// returned by ReadMessage; writes are decoded and recorded.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}

	mu       sync.Mutex
	written  []Message
	closed   bool
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	m, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	c.written = append(c.written, m)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// countControl counts system messages of msgType carrying namespace.
func (c *fakeConn) countControl(msgType, namespace string) int {
	n := 0
	for _, m := range c.messages() {
		if m.Namespace() == SystemNamespace && m.Type() == msgType && m.Payload() == namespace {
			n++
		}
	}
	return n
}

func (c *fakeConn) deliver(t *testing.T, namespace, msgType, payload string) {
	t.Helper()
	m, err := NewMessage(namespace, msgType, payload)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	data, err := EncodeFrame(m)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	c.inbound <- data
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

var errDialRefused = errors.New("connection refused")

func newTestBroker(t *testing.T) (*Broker, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	b := NewBroker("ws://robot.local:8081/", d)
	t.Cleanup(func() { _ = b.Close() })
	return b, d
}

// openBroker opens b and waits until the connection is usable.
func openBroker(t *testing.T, b *Broker, d *fakeDialer) *fakeConn {
	t.Helper()
	b.Open()
	waitFor(t, "connection open", b.Connected)
	return d.last()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// counter is a goroutine-safe invocation counter with the last payload seen.
type counter struct {
	mu      sync.Mutex
	n       int
	payload string
}

func (c *counter) handler() *Handler {
	return NewHandler(func(m Message) {
		c.mu.Lock()
		c.n++
		c.payload = m.Payload()
		c.mu.Unlock()
	})
}

func (c *counter) listener() *Listener {
	return NewListener(func() {
		c.mu.Lock()
		c.n++
		c.mu.Unlock()
	})
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *counter) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload
}
