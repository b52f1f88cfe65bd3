package live

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chat-sync-service/internal/models"
)

func TestPublishRoomsReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	var first, second int

	cancel1 := hub.SubscribeRooms("alice", func(rooms []models.ChatRoom) { first += len(rooms) })
	cancel2 := hub.SubscribeRooms("alice", func(rooms []models.ChatRoom) { second += len(rooms) })
	defer cancel1()
	defer cancel2()

	hub.PublishRooms("alice", []models.ChatRoom{{ID: "room1"}, {ID: "room2"}})

	assert.Equal(t, 2, first)
	assert.Equal(t, 2, second)
}

func TestPublishRoomsIgnoresOtherUsers(t *testing.T) {
	hub := NewHub()
	var calls int

	cancel := hub.SubscribeRooms("alice", func([]models.ChatRoom) { calls++ })
	defer cancel()

	hub.PublishRooms("bob", []models.ChatRoom{{ID: "room1"}})

	assert.Zero(t, calls)
	assert.False(t, hub.HasRoomSubscribers("bob"))
	assert.True(t, hub.HasRoomSubscribers("alice"))
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	var calls int

	cancel := hub.SubscribeRooms("alice", func([]models.ChatRoom) { calls++ })

	hub.PublishRooms("alice", nil)
	cancel()
	hub.PublishRooms("alice", nil)

	assert.Equal(t, 1, calls)
	assert.False(t, hub.HasRoomSubscribers("alice"))
}

func TestCancelIsIdempotent(t *testing.T) {
	hub := NewHub()

	cancel := hub.SubscribeRooms("alice", func([]models.ChatRoom) {})
	cancel()
	cancel()

	assert.False(t, hub.HasRoomSubscribers("alice"))
}

func TestMessageSubscriptionsAreScopedToRoom(t *testing.T) {
	hub := NewHub()
	var got []models.Message

	cancel := hub.SubscribeMessages("room1", func(msgs []models.Message) { got = msgs })
	defer cancel()

	hub.PublishMessages("room2", []models.Message{{ID: "m1"}})
	assert.Nil(t, got)

	hub.PublishMessages("room1", []models.Message{{ID: "m1"}, {ID: "m2"}})
	assert.Len(t, got, 2)
}
