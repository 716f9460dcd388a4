// Package hub is the server side of the namespace bus: it accepts websocket
// clients, tracks which namespaces each one subscribed to through the system
// namespace, and routes inbound messages to registered namespace handlers.
package hub

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/robotweb/nsbus/internal/bus"
	"github.com/robotweb/nsbus/internal/transport"
)

var (
	ErrInvalidNamespace    = errors.New("hub: namespace must be non-empty and trimmed")
	ErrReservedNamespace   = errors.New("hub: namespace system is reserved")
	ErrNamespaceRegistered = errors.New("hub: namespace already has a handler")
	ErrUnknownNamespace    = errors.New("hub: namespace not registered")
	ErrNamespaceMismatch   = errors.New("hub: message addressed to a different namespace")
	ErrSystemMessage       = errors.New("hub: system namespace messages only travel client to server")
)

// Hub manages namespace handlers and their subscribed sockets.
type Hub struct {
	upgrader *transport.Upgrader
	metrics  *Metrics

	mu          sync.RWMutex
	handlers    map[string]NamespaceHandler
	subscribers map[string]map[*Socket]struct{}
}

func New(upgrader *transport.Upgrader, metrics *Metrics) *Hub {
	return &Hub{
		upgrader:    upgrader,
		metrics:     metrics,
		handlers:    make(map[string]NamespaceHandler),
		subscribers: make(map[string]map[*Socket]struct{}),
	}
}

// RegisterNamespaceHandler installs handler for its namespace. A
// broadcast-only namespace may be upgraded to a full handler; any other
// existing registration is an error.
func (h *Hub) RegisterNamespaceHandler(handler NamespaceHandler) error {
	if err := h.register(handler); err != nil {
		return err
	}
	slog.Debug("hub: registered namespace handler", "namespace", handler.Namespace())
	return nil
}

// RegisterBroadcastOnly makes namespace subscribable without a handler for
// inbound messages.
func (h *Hub) RegisterBroadcastOnly(namespace string) error {
	if err := h.register(broadcastOnlyHandler{NewBaseHandler(namespace)}); err != nil {
		return err
	}
	slog.Debug("hub: registered broadcast-only namespace", "namespace", namespace)
	return nil
}

func (h *Hub) register(handler NamespaceHandler) error {
	ns := handler.Namespace()
	if ns == "" || strings.TrimSpace(ns) != ns {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	}
	if ns == bus.SystemNamespace {
		return ErrReservedNamespace
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.handlers[ns]; ok {
		if _, broadcastOnly := existing.(broadcastOnlyHandler); !broadcastOnly {
			return fmt.Errorf("%w: %q", ErrNamespaceRegistered, ns)
		}
	}
	h.handlers[ns] = handler
	if _, ok := h.subscribers[ns]; !ok {
		h.subscribers[ns] = make(map[*Socket]struct{})
	}
	return nil
}

// Broadcast sends m to every socket subscribed to namespace and returns how
// many sockets it was written to.
func (h *Hub) Broadcast(namespace string, m bus.Message) (int, error) {
	if namespace != m.Namespace() {
		return 0, fmt.Errorf("%w: %q != %q", ErrNamespaceMismatch, namespace, m.Namespace())
	}

	h.mu.RLock()
	subs, ok := h.subscribers[namespace]
	sockets := slices.Collect(maps.Keys(subs))
	h.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNamespace, namespace)
	}

	sent := 0
	for _, s := range sockets {
		if err := s.Send(m); err != nil {
			slog.Warn("hub: broadcast send failed", "namespace", namespace, "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// SubscriberCount returns the number of sockets subscribed to namespace.
func (h *Hub) SubscriberCount(namespace string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[namespace])
}

// Namespaces returns the registered namespaces in sorted order.
func (h *Hub) Namespaces() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Sorted(maps.Keys(h.handlers))
}

// ServeHTTP upgrades the request and serves the socket until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r)
	if err != nil {
		slog.Warn("hub: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s := newSocket(conn, h.metrics)
	h.metrics.Sockets.Inc()
	slog.Debug("hub: socket opened", "socket", s.String())

	defer func() {
		h.onClose(s)
		_ = conn.Close()
		h.metrics.Sockets.Dec()
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !transport.IsNormalClose(err) {
				slog.Warn("hub: socket error", "socket", s.String(), "err", err)
			}
			return
		}
		h.metrics.FramesReceived.Inc()
		h.onMessage(s, data)
	}
}

func (h *Hub) onMessage(s *Socket, data []byte) {
	m, err := bus.DecodeFrame(data)
	if err != nil {
		h.metrics.MalformedFrames.Inc()
		slog.Warn("hub: malformed frame", "socket", s.String(), "err", err)
		return
	}

	if m.Namespace() == bus.SystemNamespace {
		h.handleSystem(s, m)
		return
	}

	h.mu.RLock()
	handler, ok := h.handlers[m.Namespace()]
	h.mu.RUnlock()
	if !ok {
		slog.Warn("hub: message for unregistered namespace", "namespace", m.Namespace(), "socket", s.String())
		return
	}
	handler.OnMessage(m, s)
}

func (h *Hub) handleSystem(s *Socket, m bus.Message) {
	switch m.Type() {
	case bus.TypeSubscribeToNamespace:
		h.subscribe(s, m.Payload())
	case bus.TypeUnsubscribeFromNamespace:
		h.unsubscribe(s, m.Payload())
	default:
		slog.Warn("hub: unknown system message", "type", m.Type(), "socket", s.String())
	}
}

// subscribe is idempotent; OnSubscribe runs only when s was newly added.
func (h *Hub) subscribe(s *Socket, namespace string) {
	h.mu.Lock()
	handler, ok := h.handlers[namespace]
	if !ok {
		h.mu.Unlock()
		slog.Error("hub: cannot subscribe, no handler registered", "namespace", namespace, "socket", s.String())
		return
	}
	subs := h.subscribers[namespace]
	if _, dup := subs[s]; dup {
		h.mu.Unlock()
		return
	}
	subs[s] = struct{}{}
	h.metrics.Subscribers.WithLabelValues(namespace).Set(float64(len(subs)))
	h.mu.Unlock()

	handler.OnSubscribe(s)
	slog.Debug("hub: subscribed", "namespace", namespace, "socket", s.String())
}

// unsubscribe is idempotent; OnUnsubscribe runs only when s was removed.
func (h *Hub) unsubscribe(s *Socket, namespace string) {
	h.mu.Lock()
	handler, ok := h.handlers[namespace]
	if !ok {
		h.mu.Unlock()
		slog.Error("hub: cannot unsubscribe, no handler registered", "namespace", namespace, "socket", s.String())
		return
	}
	subs := h.subscribers[namespace]
	if _, present := subs[s]; !present {
		h.mu.Unlock()
		return
	}
	delete(subs, s)
	h.metrics.Subscribers.WithLabelValues(namespace).Set(float64(len(subs)))
	h.mu.Unlock()

	handler.OnUnsubscribe(s)
	slog.Debug("hub: unsubscribed", "namespace", namespace, "socket", s.String())
}

func (h *Hub) onClose(s *Socket) {
	for _, ns := range h.Namespaces() {
		h.unsubscribe(s, ns)
	}
	slog.Debug("hub: socket closed", "socket", s.String())
}
