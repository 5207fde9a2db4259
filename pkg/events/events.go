package events

import (
	"sync"
	"time"

	"github.com/cuemby/storagecore/pkg/engine"
	"github.com/google/uuid"
)

// HostAttributesChanged is delivered to subscribers whenever a write
// actually changes a host's attributes.
type HostAttributesChanged struct {
	ID        string
	Host      string
	Timestamp time.Time
}

// Notifier fans HostAttributesChanged out to subscribers. It implements
// engine.EventSink, so it plugs into engine.Config.Events directly.
// Delivery is best-effort: a subscriber whose buffer is full misses the
// event instead of stalling the engine's write path.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]chan HostAttributesChanged
	nextID int
	closed bool
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan HostAttributesChanged)}
}

// Subscription is one subscriber's handle: receive on C, call Cancel to
// stop receiving. C is closed by Cancel and by Notifier.Close.
type Subscription struct {
	C <-chan HostAttributesChanged

	n  *Notifier
	id int
}

// Subscribe registers a new subscriber with a channel buffer of the given
// size. Subscribing to a closed Notifier yields an already-closed channel.
func (n *Notifier) Subscribe(buffer int) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan HostAttributesChanged, buffer)
	if n.closed {
		close(ch)
		return &Subscription{C: ch, n: n, id: -1}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	return &Subscription{C: ch, n: n, id: id}
}

// Cancel removes the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()

	if ch, ok := s.n.subs[s.id]; ok {
		delete(s.n.subs, s.id)
		close(ch)
	}
}

// Post implements engine.EventSink. The event is stamped with a unique ID
// and the current time, then offered to every subscriber with buffer room.
func (n *Notifier) Post(e engine.Event) {
	if e.Type != engine.HostAttributesChanged {
		return
	}
	event := HostAttributesChanged{
		ID:        uuid.NewString(),
		Host:      e.Host,
		Timestamp: time.Now(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes every subscriber channel and drops further posts.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}

// SubscriberCount reports the number of active subscriptions.
func (n *Notifier) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
