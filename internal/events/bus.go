// internal/events/bus.go

// Package events is the process-local fan-out point for notification
// lifecycle events. Delivery is synchronous and best-effort: there is
// no persistence and no cross-process guarantee. Subscribers drive
// advisory features only (a live UI badge); durable state is always
// re-derivable from the notifications table.
package events

import (
	"sync"

	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/models"
)

// Type identifies the event kind.
type Type string

const (
	TypeNotificationCreated Type = "notification.created"
	TypeNotificationRead    Type = "notification.read"
)

// Event carries the full notification row the event is about.
type Event struct {
	Type         Type
	Notification models.Notification
}

// Handler receives published events. Handlers run on the publisher's
// goroutine and should return quickly.
type Handler func(Event)

// Bus is an explicit observer registry. A subscriber not registered at
// emission time simply misses the event.
type Bus struct {
	log logger.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
}

// NewBus creates an empty bus.
func NewBus(log logger.Logger) *Bus {
	return &Bus{
		log:  log,
		subs: map[int]Handler{},
	}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to every current subscriber. A panicking
// subscriber is logged and isolated; it never propagates to the caller,
// so a publish after a committed write cannot undo that write.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ev, h)
	}
}

func (b *Bus) deliver(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event subscriber panicked", map[string]interface{}{
				"event": string(ev.Type),
				"panic": r,
			})
		}
	}()
	h(ev)
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
