package bus

// Handler receives inbound messages. Handlers are compared by pointer, so
// registering the same *Handler twice is a no-op.
type Handler struct {
	fn func(Message)
}

// NewHandler wraps fn as a Handler.
func NewHandler(fn func(Message)) *Handler {
	return &Handler{fn: fn}
}

// Listener is notified of connection state changes. Like Handler it has
// pointer identity.
type Listener struct {
	fn func()
}

// NewListener wraps fn as a Listener.
func NewListener(fn func()) *Listener {
	return &Listener{fn: fn}
}

// orderedSet keeps insertion order so dispatch is deterministic.
type orderedSet[T comparable] struct {
	items []T
	index map[T]struct{}
}

func newOrderedSet[T comparable]() *orderedSet[T] {
	return &orderedSet[T]{index: make(map[T]struct{})}
}

func (s *orderedSet[T]) add(v T) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *orderedSet[T]) remove(v T) bool {
	if _, ok := s.index[v]; !ok {
		return false
	}
	delete(s.index, v)
	for i, item := range s.items {
		if item == v {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return true
}

func (s *orderedSet[T]) has(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *orderedSet[T]) len() int { return len(s.items) }

// snapshot returns a copy safe to iterate after the lock is released.
func (s *orderedSet[T]) snapshot() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// namespaceEntry is the per-namespace registry record. The same shape is used
// for a consumer's local shadow, where subscribers is unused.
type namespaceEntry struct {
	handlers     *orderedSet[*Handler]
	typeHandlers map[string]*orderedSet[*Handler]
	subscribers  int
}

func newNamespaceEntry() *namespaceEntry {
	return &namespaceEntry{
		handlers:     newOrderedSet[*Handler](),
		typeHandlers: make(map[string]*orderedSet[*Handler]),
		subscribers:  1,
	}
}

func (e *namespaceEntry) addTypeHandler(msgType string, h *Handler) {
	set, ok := e.typeHandlers[msgType]
	if !ok {
		set = newOrderedSet[*Handler]()
		e.typeHandlers[msgType] = set
	}
	set.add(h)
}

// subtract removes every handler recorded in local from e.
func (e *namespaceEntry) subtract(local *namespaceEntry) {
	for _, h := range local.handlers.items {
		e.handlers.remove(h)
	}
	for msgType, set := range local.typeHandlers {
		global, ok := e.typeHandlers[msgType]
		if !ok {
			continue
		}
		for _, h := range set.items {
			global.remove(h)
		}
		if global.len() == 0 {
			delete(e.typeHandlers, msgType)
		}
	}
}

// release decrements the subscriber count, saturating at zero, and reports
// whether the entry is now unreferenced.
func (e *namespaceEntry) release() bool {
	if e.subscribers > 0 {
		e.subscribers--
	}
	return e.subscribers == 0
}

// isRegistered reports whether h is still registered for msgType, or as a
// namespace handler when msgType is empty.
func (e *namespaceEntry) isRegistered(msgType string, h *Handler) bool {
	if msgType == "" {
		return e.handlers.has(h)
	}
	set, ok := e.typeHandlers[msgType]
	return ok && set.has(h)
}
