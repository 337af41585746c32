package controller

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"salesdesk/metrics"
)

// ChangeEvent tells subscribers which cached entity to invalidate.
type ChangeEvent struct {
	Entity string    `json:"entity"`
	Action string    `json:"action"` // created, updated, deleted, cleared, imported
	ID     uint      `json:"id,omitempty"`
	At     time.Time `json:"at"`
}

// EventPublisher is implemented by EventHub. Controllers publish only after a
// successful write.
type EventPublisher interface {
	Publish(entity, action string, id uint)
}

func publish(p EventPublisher, entity, action string, id uint) {
	if p != nil {
		p.Publish(entity, action, id)
	}
}

type subscriber struct {
	send chan ChangeEvent
}

// EventHub fans change events out to websocket subscribers. A single goroutine
// (Run) owns the subscriber set.
type EventHub struct {
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan ChangeEvent
	done       chan struct{}
	log        *logrus.Entry
}

func NewEventHub(logger *logrus.Entry) *EventHub {
	return &EventHub{
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan ChangeEvent, 64),
		done:       make(chan struct{}),
		log:        logger,
	}
}

// Run delivers events until ctx is cancelled, then closes every subscriber.
func (h *EventHub) Run(ctx context.Context) {
	subs := make(map[*subscriber]bool)
	defer func() {
		for s := range subs {
			close(s.send)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			subs[s] = true
		case s := <-h.unregister:
			if subs[s] {
				delete(subs, s)
				close(s.send)
			}
		case ev := <-h.broadcast:
			for s := range subs {
				select {
				case s.send <- ev:
				default:
					// slow consumer; it will resync on reconnect
					delete(subs, s)
					close(s.send)
				}
			}
		}
	}
}

// Publish queues an event without blocking the request.
func (h *EventHub) Publish(entity, action string, id uint) {
	ev := ChangeEvent{Entity: entity, Action: action, ID: id, At: time.Now().UTC()}
	select {
	case h.broadcast <- ev:
		metrics.EventsPublished.WithLabelValues(entity).Inc()
	case <-h.done:
	default:
		h.log.WithField("entity", entity).Warn("Event queue full, dropping event")
	}
}

// Subscribe registers a new subscriber. The returned cancel func unregisters it.
func (h *EventHub) Subscribe() (<-chan ChangeEvent, func()) {
	s := &subscriber{send: make(chan ChangeEvent, 16)}
	select {
	case h.register <- s:
	case <-h.done:
		close(s.send)
		return s.send, func() {}
	}
	return s.send, func() {
		select {
		case h.unregister <- s:
		case <-h.done:
		}
	}
}

// HandleWebSocket streams change events to a connected client until either
// side goes away.
func (h *EventHub) HandleWebSocket(c *websocket.Conn) {
	defer c.Close()

	events, cancel := h.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				h.log.WithError(err).Debug("Error writing event")
				return
			}
		}
	}
}
