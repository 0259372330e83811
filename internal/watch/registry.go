package watch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic names the slice of a user's state an event belongs to.
type Topic string

const (
	TopicAccess       Topic = "access"
	TopicSubscription Topic = "subscription"
	TopicReputation   Topic = "reputation"
)

// Event is one change notification delivered to in-process watchers.
type Event struct {
	UserID uuid.UUID `json:"user_id"`
	Topic  Topic     `json:"topic"`
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
}

const defaultBuffer = 16

type watcher struct {
	events chan Event
}

// Registry fans change events out to in-process watchers keyed by user.
// Delivery is best-effort: a watcher that stops draining its channel loses
// events instead of blocking publishers.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*watcher]struct{}
	closed bool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uuid.UUID]map[*watcher]struct{})}
}

// Subscribe registers a watcher for the user's events. The returned cancel
// function unregisters the watcher and closes the channel; it is safe to
// call more than once.
func (r *Registry) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	w := &watcher{events: make(chan Event, defaultBuffer)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(w.events)
		return w.events, func() {}
	}
	if r.rooms[userID] == nil {
		r.rooms[userID] = make(map[*watcher]struct{})
	}
	r.rooms[userID][w] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if room, ok := r.rooms[userID]; ok {
				if _, live := room[w]; live {
					delete(room, w)
					close(w.events)
					if len(room) == 0 {
						delete(r.rooms, userID)
					}
				}
			}
		})
	}
	return w.events, cancel
}

// Publish delivers the event to every watcher of event.UserID. Watchers
// with a full buffer are skipped.
func (r *Registry) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	for w := range r.rooms[event.UserID] {
		select {
		case w.events <- event:
		default:
		}
	}
}

// Close shuts the registry down and closes every watcher channel.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for userID, room := range r.rooms {
		for w := range room {
			close(w.events)
		}
		delete(r.rooms, userID)
	}
}
