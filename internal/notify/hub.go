package notify

import (
	"context"
	"log/slog"
	"sync"

	"clinicdesk/backend/internal/domain"
)

const defaultSubscriberBuffer = 16

// Hub fans events out to in-process subscribers such as server-sent event
// streams. A subscriber whose buffer is full misses the event; Notify never
// blocks on a slow reader.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan domain.AppointmentEvent
	nextID int
	closed bool
	log    *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		subs: map[int]chan domain.AppointmentEvent{},
		log:  log.With(slog.String("component", "notify.hub")),
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan domain.AppointmentEvent, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan domain.AppointmentEvent, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

func (h *Hub) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Warn(
				"subscriber buffer full, dropping event",
				slog.Int("subscriber", id),
				slog.String("kind", string(ev.Kind)),
				slog.String("appointment_id", ev.Appointment.ID),
			)
		}
	}
	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later subscriptions receive a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
