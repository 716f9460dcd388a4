package bus

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/robotweb/nsbus/internal/transport"
)

type connState int

const (
	stateConnecting connState = iota
	stateOpen
)

func (s connState) String() string {
	if s == stateOpen {
		return "open"
	}
	return "connecting"
}

// connection is one physical connection attempt. A nil Broker.conn means the
// bus is closed; otherwise the connection is connecting or open.
type connection struct {
	id    uint64
	conn  transport.Conn // nil until the dial completes
	state connState
}

// Broker is the process-wide state shared by every Consumer: the namespace
// registry, the single backend connection and the connection state listeners.
// Create one at startup with NewBroker and Close it at shutdown.
type Broker struct {
	endpoint string
	dialer   transport.Dialer

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	namespaces   map[string]*namespaceEntry // every entry has at least one subscriber
	conn         *connection
	nextConnID   uint64
	onConnect    *orderedSet[*Listener]
	onDisconnect *orderedSet[*Listener]
	closed       bool

	logMessages atomic.Bool
	logDebug    atomic.Bool
}

// NewBroker creates a Broker that connects to endpoint through dialer. No
// connection is made until Open or OnLivenessSuccess is called.
func NewBroker(endpoint string, dialer transport.Dialer) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		endpoint:     endpoint,
		dialer:       dialer,
		ctx:          ctx,
		cancel:       cancel,
		namespaces:   make(map[string]*namespaceEntry),
		onConnect:    newOrderedSet[*Listener](),
		onDisconnect: newOrderedSet[*Listener](),
	}
}

func (b *Broker) Endpoint() string { return b.endpoint }

// SetLogMessages toggles logging of every inbound and outbound message.
func (b *Broker) SetLogMessages(on bool) { b.logMessages.Store(on) }

// SetLogDebug toggles internal debug logging.
func (b *Broker) SetLogDebug(on bool) { b.logDebug.Store(on) }

func (b *Broker) debug(msg string, args ...any) {
	if b.logDebug.Load() {
		slog.Info(msg, args...)
	}
}

// Connected reports whether the connection is open.
func (b *Broker) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectedLocked()
}

func (b *Broker) connectedLocked() bool {
	return b.conn != nil && b.conn.state == stateOpen
}

// SubscriberCount returns the number of consumers subscribed to namespace.
func (b *Broker) SubscriberCount(namespace string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.namespaces[namespace]; ok {
		return e.subscribers
	}
	return 0
}

// Namespaces returns the registered namespaces in sorted order.
func (b *Broker) Namespaces() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Sorted(maps.Keys(b.namespaces))
}

// Open starts connecting to the backend. It is a no-op while a connection is
// connecting or open, and after Close.
func (b *Broker) Open() {
	b.mu.Lock()
	if b.closed || b.conn != nil {
		b.mu.Unlock()
		return
	}
	b.nextConnID++
	c := &connection{id: b.nextConnID, state: stateConnecting}
	b.conn = c
	b.mu.Unlock()

	b.debug("bus: connecting", "endpoint", b.endpoint, "conn", c.id)
	go b.run(c)
}

// OnLivenessSuccess opens the connection if any namespace is still wanted.
func (b *Broker) OnLivenessSuccess() {
	b.mu.Lock()
	wanted := false
	for _, e := range b.namespaces {
		if e.subscribers > 0 {
			wanted = true
			break
		}
	}
	b.mu.Unlock()

	if wanted {
		b.Open()
	}
}

// OnLivenessFailure treats a connection that still looks alive as closed.
func (b *Broker) OnLivenessFailure() {
	b.mu.Lock()
	c := b.conn
	b.mu.Unlock()

	if c != nil {
		b.debug("bus: liveness check failed, dropping connection", "conn", c.id)
		b.closeConnection(c)
	}
}

// Close drops the connection and prevents any further Open.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	c := b.conn
	b.mu.Unlock()

	b.cancel()
	if c != nil {
		b.closeConnection(c)
	}
	return nil
}

func (b *Broker) run(c *connection) {
	conn, err := b.dialer.Dial(b.ctx, b.endpoint)
	if err != nil {
		if b.ctx.Err() == nil {
			slog.Warn("bus: dial failed", "endpoint", b.endpoint, "err", err)
		}
		b.closeConnection(c)
		return
	}
	if !b.onOpen(c, conn) {
		return
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !transport.IsNormalClose(err) {
				slog.Warn("bus: connection error", "endpoint", b.endpoint, "err", err)
			}
			b.closeConnection(c)
			return
		}
		b.onFrame(data)
	}
}

// onOpen re-subscribes every registered namespace before the connection is
// marked open, so no application message can overtake the subscriptions.
func (b *Broker) onOpen(c *connection, conn transport.Conn) bool {
	b.mu.Lock()
	if b.conn != c {
		// Superseded by a liveness failure or Close while dialing.
		b.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	for _, ns := range slices.Sorted(maps.Keys(b.namespaces)) {
		if !b.writeLocked(c, controlMessage(TypeSubscribeToNamespace, ns)) {
			b.mu.Unlock()
			b.closeConnection(c)
			return false
		}
	}
	c.state = stateOpen
	listeners := b.onConnect.snapshot()
	b.mu.Unlock()

	slog.Info("bus: connected", "endpoint", b.endpoint, "conn", c.id)
	b.notify(listeners, b.onConnect)
	return true
}

// closeConnection clears the connection handle and notifies disconnection
// listeners. Stale connections are ignored.
func (b *Broker) closeConnection(c *connection) {
	b.mu.Lock()
	if b.conn != c {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	conn := c.conn
	listeners := b.onDisconnect.snapshot()
	b.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	slog.Info("bus: connection closed", "endpoint", b.endpoint, "conn", c.id)
	b.notify(listeners, b.onDisconnect)
}

// notify calls each listener that is still registered in set.
func (b *Broker) notify(listeners []*Listener, set *orderedSet[*Listener]) {
	for _, l := range listeners {
		b.mu.Lock()
		still := set.has(l)
		b.mu.Unlock()
		if still {
			l.fn()
		}
	}
}

func (b *Broker) onFrame(data []byte) {
	m, err := DecodeFrame(data)
	if err != nil {
		slog.Warn("bus: dropping inbound frame", "err", err)
		return
	}
	if b.logMessages.Load() {
		slog.Info("bus: received message", "namespace", m.namespace, "type", m.msgType, "payload", m.Preview())
	}
	if m.namespace == SystemNamespace {
		return
	}

	b.mu.Lock()
	entry, ok := b.namespaces[m.namespace]
	if !ok {
		b.mu.Unlock()
		return
	}
	handlers := entry.handlers.snapshot()
	var typed []*Handler
	if set, ok := entry.typeHandlers[m.msgType]; ok {
		typed = set.snapshot()
	}
	b.mu.Unlock()

	b.dispatch(m, "", handlers)
	b.dispatch(m, m.msgType, typed)
}

// dispatch re-checks registration before every call: a handler may retire
// its own consumer, or another one, mid fan-out.
func (b *Broker) dispatch(m Message, msgType string, handlers []*Handler) {
	for _, h := range handlers {
		b.mu.Lock()
		entry, ok := b.namespaces[m.namespace]
		still := ok && entry.isRegistered(msgType, h)
		b.mu.Unlock()
		if still {
			h.fn(m)
		}
	}
}

// sendLocked writes m on the open connection. Transport failures are logged
// and surface only through the close path.
func (b *Broker) sendLocked(m Message) error {
	if !b.connectedLocked() {
		return ErrNotConnected
	}
	b.writeLocked(b.conn, m)
	return nil
}

// writeLocked reports whether m was written. On a write failure the
// connection is closed, which ends its read loop.
func (b *Broker) writeLocked(c *connection, m Message) bool {
	data, err := EncodeFrame(m)
	if err != nil {
		slog.Error("bus: encode frame", "namespace", m.namespace, "type", m.msgType, "err", err)
		return false
	}
	if b.logMessages.Load() {
		slog.Info("bus: sending message", "namespace", m.namespace, "type", m.msgType, "payload", m.Preview())
	}
	if err := c.conn.WriteMessage(data); err != nil {
		slog.Warn("bus: write failed, closing connection", "endpoint", b.endpoint, "conn", c.id, "err", err)
		_ = c.conn.Close()
		return false
	}
	return true
}

func (b *Broker) subscribeLocked(namespace string) {
	if e, ok := b.namespaces[namespace]; ok {
		e.subscribers++
		return
	}
	b.namespaces[namespace] = newNamespaceEntry()
	// When not connected the subscription is sent by onOpen instead.
	if b.connectedLocked() {
		_ = b.sendLocked(controlMessage(TypeSubscribeToNamespace, namespace))
	}
	b.debug("bus: namespace registered", "namespace", namespace)
}

// removeConsumerLocked subtracts exactly what c added to the shared state.
func (b *Broker) removeConsumerLocked(c *Consumer) {
	for ns, local := range c.namespaces {
		entry, ok := b.namespaces[ns]
		if !ok {
			continue
		}
		entry.subtract(local)
		if !entry.release() {
			continue
		}
		delete(b.namespaces, ns)
		if b.connectedLocked() {
			_ = b.sendLocked(controlMessage(TypeUnsubscribeFromNamespace, ns))
		}
		b.debug("bus: namespace released", "namespace", ns)
	}
	for _, l := range c.onConnect.items {
		b.onConnect.remove(l)
	}
	for _, l := range c.onDisconnect.items {
		b.onDisconnect.remove(l)
	}
}

func (b *Broker) registryStateLocked() map[string]int {
	state := make(map[string]int, len(b.namespaces))
	for ns, e := range b.namespaces {
		state[ns] = e.subscribers
	}
	return state
}
