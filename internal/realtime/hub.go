// Package realtime implements the in-process connection registry used for
// best-effort push delivery. Durability comes from the persisted notification
// row; a push to an absent or slow subscriber is simply dropped.
package realtime

import (
	"sync"

	"example.com/clubhub/internal/domain"
	"example.com/clubhub/internal/observability"
)

const subscriberBuffer = 16

// Hub is the connection registry. It is constructed once, injected where
// pushes originate, and torn down with Close.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan domain.Notification
	nextID int
	closed bool
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan domain.Notification)}
}

// Subscribe registers a channel scoped to the user. The returned cancel
// function removes the subscription and closes the channel; it is safe to
// call more than once.
func (h *Hub) Subscribe(userID string) (<-chan domain.Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.Notification, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan domain.Notification)
	}
	h.subs[userID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if chans, ok := h.subs[userID]; ok {
				if _, live := chans[id]; live {
					delete(chans, id)
					close(ch)
					if len(chans) == 0 {
						delete(h.subs, userID)
					}
				}
			}
		})
	}
	return ch, cancel
}

// Publish pushes to every subscription of the user without blocking. Events
// for absent or backed-up subscribers are dropped.
func (h *Hub) Publish(userID string, n domain.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chans := h.subs[userID]
	if len(chans) == 0 {
		observability.RecordRealtimeDrop()
		return
	}
	for _, ch := range chans {
		select {
		case ch <- n:
		default:
			observability.RecordRealtimeDrop()
		}
	}
}

// Close tears the registry down and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for userID, chans := range h.subs {
		for id, ch := range chans {
			close(ch)
			delete(chans, id)
		}
		delete(h.subs, userID)
	}
}
