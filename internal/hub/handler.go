package hub

import (
	"log/slog"

	"github.com/robotweb/nsbus/internal/bus"
)

// NamespaceHandler serves one namespace on the hub. Callbacks run on the
// receiving socket's read goroutine.
type NamespaceHandler interface {
	Namespace() string
	OnMessage(m bus.Message, s *Socket)
	OnSubscribe(s *Socket)
	OnUnsubscribe(s *Socket)
}

// BaseHandler implements NamespaceHandler with no-op callbacks. Embed it and
// override what you need.
type BaseHandler struct {
	namespace string
}

func NewBaseHandler(namespace string) BaseHandler { return BaseHandler{namespace: namespace} }

func (h BaseHandler) Namespace() string              { return h.namespace }
func (h BaseHandler) OnMessage(bus.Message, *Socket) {}
func (h BaseHandler) OnSubscribe(*Socket)            {}
func (h BaseHandler) OnUnsubscribe(*Socket)          {}

// broadcastOnlyHandler accepts subscribers but has nothing to do with
// inbound messages.
type broadcastOnlyHandler struct {
	BaseHandler
}

func (h broadcastOnlyHandler) OnMessage(m bus.Message, s *Socket) {
	slog.Warn("hub: message received on broadcast-only namespace",
		"namespace", h.namespace, "type", m.Type(), "socket", s.String(), "payload", m.Preview())
}

// RelayHandler rebroadcasts every inbound message to all subscribers of its
// namespace, the sender included.
type RelayHandler struct {
	BaseHandler
	hub *Hub
}

func NewRelayHandler(h *Hub, namespace string) *RelayHandler {
	return &RelayHandler{BaseHandler: NewBaseHandler(namespace), hub: h}
}

func (r *RelayHandler) OnMessage(m bus.Message, s *Socket) {
	if _, err := r.hub.Broadcast(r.namespace, m); err != nil {
		slog.Warn("hub: relay failed", "namespace", r.namespace, "socket", s.String(), "err", err)
	}
}
