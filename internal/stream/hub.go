// internal/stream/hub.go
package stream

import "sync"

// Publisher is the write side of the change stream. The store publishes one
// RowEvent per persisted insert/update; sessions subscribe by recipient.
type Publisher interface {
	Publish(recipientID string, ev RowEvent)
}

// Hub keeps in-memory row-event subscribers grouped by recipient.
// It is process-local; the Bridge extends it across instances.
// Internally it uses sync.Map to minimise lock contention.
type Hub struct {
	// subscribers maps recipient id -> *sync.Map representing a set of channels.
	subscribers sync.Map // map[string]*sync.Map
	buffer      int

	// closeMu serializes channel close against in-flight publishes. A
	// subscriber may unsubscribe while Publish is mid-Range over the same
	// recipient set; without the lock the send could hit a freshly closed
	// channel and panic.
	closeMu sync.RWMutex
}

// NewHub constructs a Hub. buffer is the per-subscriber channel depth; values
// below 1 fall back to a small default.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{buffer: buffer}
}

// Subscribe registers a recipient-scoped subscriber and returns a channel
// plus an unsubscribe function that should be called on session teardown.
func (h *Hub) Subscribe(recipientID string) (<-chan RowEvent, func()) {
	ch := make(chan RowEvent, h.buffer)

	// Lazily create the inner set for this recipient.
	v, _ := h.subscribers.LoadOrStore(recipientID, &sync.Map{})
	inner := v.(*sync.Map)
	inner.Store(ch, struct{}{})

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.closeMu.Lock()
			inner.Delete(ch)
			close(ch)
			h.closeMu.Unlock()
		})
	}

	return ch, unsubscribe
}

// Publish sends an event to all subscribers of the given recipient.
// Slow consumers are skipped to avoid blocking producer code.
func (h *Hub) Publish(recipientID string, ev RowEvent) {
	v, ok := h.subscribers.Load(recipientID)
	if !ok {
		return
	}
	inner := v.(*sync.Map)

	h.closeMu.RLock()
	defer h.closeMu.RUnlock()
	inner.Range(func(key, _ interface{}) bool {
		ch, ok := key.(chan RowEvent)
		if !ok {
			return true
		}
		select {
		case ch <- ev:
		default:
			// drop if subscriber is slow
		}
		return true
	})
}
