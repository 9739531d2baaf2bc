package broadcast

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Event statuses, emitted in pipeline step order for one invocation.
const (
	StatusStarted    = "started"
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusAnalyzing  = "analyzing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Event is one progress update for a video analysis invocation. Events from
// concurrent invocations share the hub; consumers correlate by InvocationID.
type Event struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	InvocationID string `json:"invocation_id,omitempty"`
}

const subscriberBuffer = 16

// Hub fans events out to every currently connected subscriber. There is no
// replay: a subscriber never sees events published before it connected.
// Publishing never blocks; a subscriber whose buffer is full misses the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscriber]struct{})}
}

// Subscriber receives published events until Close is called.
type Subscriber struct {
	hub  *Hub
	ch   chan Event
	once sync.Once
}

// Events returns the subscriber's receive channel. It is closed by Close.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Close removes the subscriber from the hub and closes its channel.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{hub: h, ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish delivers evt to all current subscribers, best effort.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- evt:
		default:
			log.Warn().
				Str("status", evt.Status).
				Str("invocation_id", evt.InvocationID).
				Msg("subscriber buffer full, dropping event")
		}
	}
}

// SubscriberCount reports how many clients are currently connected.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
