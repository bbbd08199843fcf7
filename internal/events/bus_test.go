// internal/events/bus_test.go
package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/models"
)

func testEvent() Event {
	return Event{
		Type: TypeNotificationCreated,
		Notification: models.Notification{
			ID:     42,
			UserID: "user-1",
			Type:   models.TypeMessage,
			Title:  "hello",
		},
	}
}

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(logger.NewNoOpLogger())

	var first, second []Event
	bus.Subscribe(func(ev Event) { first = append(first, ev) })
	bus.Subscribe(func(ev Event) { second = append(second, ev) })

	bus.Publish(testEvent())

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, TypeNotificationCreated, first[0].Type)
	assert.Equal(t, int64(42), first[0].Notification.ID)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(logger.NewNoOpLogger())

	received := 0
	unsubscribe := bus.Subscribe(func(Event) { received++ })

	bus.Publish(testEvent())
	assert.Equal(t, 1, received)
	assert.Equal(t, 1, bus.SubscriberCount())

	unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Publish(testEvent())
	assert.Equal(t, 1, received, "unsubscribed handler must not receive further events")
}

func TestBus_PanickingSubscriberIsIsolated(t *testing.T) {
	bus := NewBus(logger.NewNoOpLogger())

	received := 0
	bus.Subscribe(func(Event) { panic("subscriber bug") })
	bus.Subscribe(func(Event) { received++ })

	assert.NotPanics(t, func() {
		bus.Publish(testEvent())
	})
	assert.Equal(t, 1, received, "healthy subscriber still receives the event")
}

func TestBus_PublishWithNoSubscribers(t *testing.T) {
	bus := NewBus(logger.NewNoOpLogger())

	assert.NotPanics(t, func() {
		bus.Publish(testEvent())
	})
	assert.Equal(t, 0, bus.SubscriberCount())
}
