package bus

import "fmt"

// Consumer is one independent UI surface's view of the shared Broker. It
// records everything it adds so Finish can subtract exactly that, leaving
// other consumers' subscriptions on the same namespaces untouched.
//
// Do not register the same Handler or Listener on two consumers: Finish on
// either one removes it from the shared registry.
type Consumer struct {
	broker *Broker

	// guarded by broker.mu
	namespaces   map[string]*namespaceEntry
	onConnect    *orderedSet[*Listener]
	onDisconnect *orderedSet[*Listener]
	finished     bool
}

// NewConsumer returns a Consumer attached to b.
func (b *Broker) NewConsumer() *Consumer {
	return &Consumer{
		broker:       b,
		namespaces:   make(map[string]*namespaceEntry),
		onConnect:    newOrderedSet[*Listener](),
		onDisconnect: newOrderedSet[*Listener](),
	}
}

// SubscribeToNamespace makes namespace eligible for handlers and sends.
// Subscribing twice from the same consumer is a no-op.
func (c *Consumer) SubscribeToNamespace(namespace string) error {
	if namespace == "" {
		return ErrEmptyNamespace
	}
	if namespace == SystemNamespace {
		return ErrSystemNamespace
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.finished {
		return ErrConsumerFinished
	}
	if _, ok := c.namespaces[namespace]; ok {
		return nil
	}
	c.namespaces[namespace] = newNamespaceEntry()
	b.subscribeLocked(namespace)
	return nil
}

// RegisterNamespaceHandler calls h for every message received on namespace.
func (c *Consumer) RegisterNamespaceHandler(namespace string, h *Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	local, global, err := c.entriesLocked(namespace)
	if err != nil {
		return err
	}
	local.handlers.add(h)
	global.handlers.add(h)
	return nil
}

// RegisterTypeHandler calls h for every message of msgType received on
// namespace.
func (c *Consumer) RegisterTypeHandler(namespace, msgType string, h *Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	if msgType == "" {
		return ErrEmptyType
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	local, global, err := c.entriesLocked(namespace)
	if err != nil {
		return err
	}
	local.addTypeHandler(msgType, h)
	global.addTypeHandler(msgType, h)
	return nil
}

func (c *Consumer) entriesLocked(namespace string) (local, global *namespaceEntry, err error) {
	if c.finished {
		return nil, nil, ErrConsumerFinished
	}
	local, ok := c.namespaces[namespace]
	if !ok {
		return nil, nil, fmt.Errorf("%w: subscribe to %q before registering a handler", ErrNotSubscribed, namespace)
	}
	global, ok = c.broker.namespaces[namespace]
	if !ok {
		// A local subscription always holds a global reference.
		return nil, nil, fmt.Errorf("%w: %q missing from registry", ErrNotSubscribed, namespace)
	}
	return local, global, nil
}

// RegisterConnectionStateListeners registers listeners for connection open
// and close. If the connection is already open, onConnect is called before
// this method returns. Either listener may be nil.
func (c *Consumer) RegisterConnectionStateListeners(onConnect, onDisconnect *Listener) error {
	b := c.broker
	b.mu.Lock()
	if c.finished {
		b.mu.Unlock()
		return ErrConsumerFinished
	}
	if onConnect != nil {
		c.onConnect.add(onConnect)
		b.onConnect.add(onConnect)
	}
	if onDisconnect != nil {
		c.onDisconnect.add(onDisconnect)
		b.onDisconnect.add(onDisconnect)
	}
	connected := b.connectedLocked()
	b.mu.Unlock()

	if connected && onConnect != nil {
		onConnect.fn()
	}
	return nil
}

// SendMessage transmits m. The consumer must have subscribed to the message's
// namespace, which may not be the system namespace, and the connection must
// be open.
func (c *Consumer) SendMessage(m Message) error {
	if m.namespace == SystemNamespace {
		return ErrSystemNamespace
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.finished {
		return ErrConsumerFinished
	}
	if _, ok := c.namespaces[m.namespace]; !ok {
		return fmt.Errorf("%w: subscribe to %q before sending to it", ErrNotSubscribed, m.namespace)
	}
	return b.sendLocked(m)
}

// Finish removes this consumer's subscriptions, handlers and listeners from
// the broker. It is safe to call more than once.
func (c *Consumer) Finish() {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.finished {
		return
	}
	c.finished = true
	b.removeConsumerLocked(c)

	c.namespaces = make(map[string]*namespaceEntry)
	c.onConnect = newOrderedSet[*Listener]()
	c.onDisconnect = newOrderedSet[*Listener]()

	if b.logDebug.Load() {
		b.debug("bus: consumer finished", "registry", b.registryStateLocked(),
			"connectionListeners", b.onConnect.len(), "disconnectionListeners", b.onDisconnect.len())
	}
}
