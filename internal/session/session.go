// internal/session/session.go
package session

import (
	"context"
	"sort"
	"sync"

	"cityreport-notifications/internal/common/logger"
	"cityreport-notifications/internal/common/metrics"
	"cityreport-notifications/internal/models"
	"cityreport-notifications/internal/stream"
)

// State is the session lifecycle state. Reconciling is only observable from
// inside an apply step; callers see Loading until the bulk load completes and
// Ready afterwards.
type State string

const (
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateReconciling State = "reconciling"
	StateStopped     State = "stopped"
)

// Store is the durable collection the session converges on. Only the
// operations the session issues are required.
type Store interface {
	ListForRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// Subscriber hands out recipient-scoped row event channels.
type Subscriber interface {
	Subscribe(recipientID string) (<-chan stream.RowEvent, func())
}

// Session reconciles three sources of truth for one connected recipient: the
// bulk load snapshot, the live row-event stream and locally originated
// optimistic mutations. All three flow through one mutex-serialized apply
// path so reconciliation never observes torn state. Sessions for the same
// recipient in different tabs are fully independent; each converges on the
// store on its own.
type Session struct {
	recipientID string
	store       Store
	subscriber  Subscriber
	logger      logger.Logger
	loadLimit   int

	mu          sync.Mutex
	state       State
	items       []models.Notification // CreatedAt descending, unique by ID
	unread      int
	unsubscribe func()
	pumpDone    chan struct{}
}

func New(recipientID string, store Store, subscriber Subscriber, loadLimit int, log logger.Logger) *Session {
	return &Session{
		recipientID: recipientID,
		store:       store,
		subscriber:  subscriber,
		loadLimit:   loadLimit,
		logger: log.WithFields(map[string]interface{}{
			"component":   "notification-session",
			"recipientId": recipientID,
		}),
		state:    StateLoading,
		pumpDone: make(chan struct{}),
	}
}

// Start subscribes to the stream and performs the bulk load. The subscription
// is keyed only on the recipient id and opens before the load so no event is
// missed; the insert reconciliation is idempotent, so rows delivered by both
// the load and the stream land once.
func (s *Session) Start(ctx context.Context) {
	ch, unsubscribe := s.subscriber.Subscribe(s.recipientID)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	go s.pump(ch)
	metrics.SessionsActive.Inc()

	s.Load(ctx)
}

// Load performs the bulk load and moves the session to Ready. A failed load
// degrades to an empty Ready list rather than blocking the session. Callers
// that run their own event loop (the SSE transport) use Load without Start
// and feed events through Apply.
func (s *Session) Load(ctx context.Context) {
	loaded, err := s.store.ListForRecipient(ctx, s.recipientID, s.loadLimit)
	if err != nil {
		s.logger.WithError(err).Warn("bulk load failed, starting with empty list", nil)
		loaded = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range loaded {
		s.insertLocked(n)
	}
	s.state = StateReady
}

// Stop tears the session down: it unsubscribes from the stream and discards
// in-memory state. The store remains the durable source of truth.
func (s *Session) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	alreadyStopped := s.state == StateStopped
	s.state = StateStopped
	s.items = nil
	s.unread = 0
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if unsubscribe != nil && !alreadyStopped {
		<-s.pumpDone
		metrics.SessionsActive.Dec()
	}
}

func (s *Session) pump(ch <-chan stream.RowEvent) {
	defer close(s.pumpDone)
	for ev := range ch {
		s.Apply(ev)
	}
}

// Apply reconciles one stream event. Exported so transports that receive row
// events out of band (tests included) share the same serialized path the
// pump uses.
func (s *Session) Apply(ev stream.RowEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}

	prev := s.state
	s.state = StateReconciling
	switch ev.Kind {
	case stream.EventInsert:
		s.insertLocked(ev.Notification)
	case stream.EventUpdate:
		s.updateLocked(ev.Notification)
	}
	// A session still loading stays in Loading until Start finishes.
	s.state = prev
	metrics.StreamEventsApplied.WithLabelValues(string(ev.Kind)).Inc()
}

// insertLocked adds the notification unless its id is already known, keeping
// items sorted by CreatedAt descending. The stream delivers newest-first in
// practice but arrival order is not assumed.
func (s *Session) insertLocked(n models.Notification) {
	if s.indexOfLocked(n.ID) >= 0 {
		return
	}

	at := sort.Search(len(s.items), func(i int) bool {
		return s.items[i].CreatedAt.Before(n.CreatedAt)
	})
	s.items = append(s.items, models.Notification{})
	copy(s.items[at+1:], s.items[at:])
	s.items[at] = n

	if !n.Read {
		s.unread++
	}
}

// updateLocked replaces the matching item by id and adjusts the unread
// counter from the read-flag delta. An update whose target has not arrived
// yet is treated as an insert. A true-to-false reversal is honored as a
// legitimate external event and re-increments the counter.
func (s *Session) updateLocked(n models.Notification) {
	idx := s.indexOfLocked(n.ID)
	if idx < 0 {
		s.insertLocked(n)
		return
	}

	prev := s.items[idx]
	s.items[idx] = n

	if !prev.Read && n.Read {
		if s.unread > 0 {
			s.unread--
		}
	} else if prev.Read && !n.Read {
		s.unread++
	}
}

// MarkRead optimistically flips the local read flag before the store
// confirms the write. The store call is fire-and-forget: a failure is logged
// and counted but never rolled back, an availability-over-consistency choice
// kept from the source system.
func (s *Session) MarkRead(id string) {
	s.mu.Lock()
	if idx := s.indexOfLocked(id); idx >= 0 && !s.items[idx].Read {
		s.items[idx].Read = true
		if s.unread > 0 {
			s.unread--
		}
	}
	s.mu.Unlock()

	go func() {
		if _, err := s.store.MarkRead(context.Background(), id); err != nil {
			metrics.OptimisticWriteFailures.Inc()
			s.logger.WithError(err).Warn("mark-read store write failed, local state kept", map[string]interface{}{
				"notificationId": id,
			})
		}
	}()
}

// MarkAllRead optimistically marks every item read and zeroes the counter.
func (s *Session) MarkAllRead() {
	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
	s.mu.Unlock()

	go func() {
		if _, err := s.store.MarkAllRead(context.Background(), s.recipientID); err != nil {
			metrics.OptimisticWriteFailures.Inc()
			s.logger.WithError(err).Warn("mark-all-read store write failed, local state kept", nil)
		}
	}()
}

// Delete optimistically removes the item.
func (s *Session) Delete(id string) {
	s.mu.Lock()
	if idx := s.indexOfLocked(id); idx >= 0 {
		if !s.items[idx].Read && s.unread > 0 {
			s.unread--
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	s.mu.Unlock()

	go func() {
		if err := s.store.Delete(context.Background(), id); err != nil {
			metrics.OptimisticWriteFailures.Inc()
			s.logger.WithError(err).Warn("delete store write failed, local state kept", map[string]interface{}{
				"notificationId": id,
			})
		}
	}()
}

// Items returns a copy of the ordered notification list.
func (s *Session) Items() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// UnreadCount returns the incrementally maintained unread counter. It always
// equals the number of unread items.
func (s *Session) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) indexOfLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
