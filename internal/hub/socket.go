package hub

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/robotweb/nsbus/internal/bus"
	"github.com/robotweb/nsbus/internal/transport"
)

// Socket is one accepted client connection.
type Socket struct {
	id      string
	conn    transport.Conn
	metrics *Metrics
}

func newSocket(conn transport.Conn, metrics *Metrics) *Socket {
	return &Socket{id: uuid.NewString(), conn: conn, metrics: metrics}
}

func (s *Socket) ID() string         { return s.id }
func (s *Socket) RemoteAddr() string { return s.conn.RemoteAddr() }

// Send writes m to the client. System namespace messages only ever travel
// from client to server and are refused.
func (s *Socket) Send(m bus.Message) error {
	if m.Namespace() == bus.SystemNamespace {
		return ErrSystemMessage
	}
	data, err := bus.EncodeFrame(m)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := s.conn.WriteMessage(data); err != nil {
		return fmt.Errorf("send to %s: %w", s, err)
	}
	s.metrics.FramesSent.Inc()
	return nil
}

func (s *Socket) Close() error { return s.conn.Close() }

func (s *Socket) String() string {
	return fmt.Sprintf("socket %s (%s)", s.id[:8], s.conn.RemoteAddr())
}
