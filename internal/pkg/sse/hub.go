package sse

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one message on a subscriber's stream.
type Event struct {
	ID   string
	Type string
	Data interface{}
	At   time.Time
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Data: data,
		At:   time.Now().UTC(),
	}
}

// Key scopes a stream to one user of one company.
func Key(companyID, userID string) string {
	return companyID + ":" + userID
}

// Hub fans events out to the open streams of each key.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	bufferSize  int
	dropped     uint64
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		bufferSize:  10,
	}
}

// Subscribe registers a stream for key and returns its channel and cleanup function.
func (h *Hub) Subscribe(key string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.bufferSize)

	if h.subscribers[key] == nil {
		h.subscribers[key] = make(map[chan Event]struct{})
	}
	h.subscribers[key][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[key], ch)
			close(ch)
			if len(h.subscribers[key]) == 0 {
				delete(h.subscribers, key)
			}
		})
	}

	return ch, cleanup
}

// Publish delivers event to every stream of key. Slow streams whose buffer is
// full miss the event; clients resynchronize on their next read.
func (h *Hub) Publish(key string, event Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.subscribers[key] {
		select {
		case ch <- event:
			delivered++
		default:
			h.dropped++
		}
	}
	return delivered
}

func (h *Hub) SubscriberCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[key])
}

// TotalSubscribers returns the number of open streams across all keys.
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}

// Dropped returns how many deliveries were skipped because a stream was full.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
