// Package live implements the push half of the query duality: a registry of
// long-lived subscribers that receive a full fresh snapshot whenever a
// matching record changes.
package live

import (
	"sync"

	"github.com/google/uuid"

	"chat-sync-service/internal/models"
	"chat-sync-service/internal/observability"
)

// RoomListFunc receives the full ordered room list for a user.
type RoomListFunc func([]models.ChatRoom)

// MessageListFunc receives the full ordered message list for a room.
type MessageListFunc func([]models.Message)

// Hub maintains active subscriptions.
type Hub struct {
	mu          sync.RWMutex
	roomSubs    map[string]map[string]RoomListFunc
	messageSubs map[string]map[string]MessageListFunc
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		roomSubs:    make(map[string]map[string]RoomListFunc),
		messageSubs: make(map[string]map[string]MessageListFunc),
	}
}

// SubscribeRooms registers fn for the user's room list. The returned cancel
// releases the registration; fn is never invoked after cancel returns.
// fn must not subscribe or cancel from inside the callback.
func (h *Hub) SubscribeRooms(userID string, fn RoomListFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.roomSubs[userID]; !ok {
		h.roomSubs[userID] = make(map[string]RoomListFunc)
	}
	subID := uuid.NewString()
	h.roomSubs[userID][subID] = fn
	observability.IncSubscriptions("rooms")

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.roomSubs[userID]; ok {
			if _, exists := subs[subID]; exists {
				delete(subs, subID)
				observability.DecSubscriptions("rooms")
			}
			if len(subs) == 0 {
				delete(h.roomSubs, userID)
			}
		}
	}
}

// SubscribeMessages registers fn for a room's message list.
func (h *Hub) SubscribeMessages(roomID string, fn MessageListFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.messageSubs[roomID]; !ok {
		h.messageSubs[roomID] = make(map[string]MessageListFunc)
	}
	subID := uuid.NewString()
	h.messageSubs[roomID][subID] = fn
	observability.IncSubscriptions("messages")

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.messageSubs[roomID]; ok {
			if _, exists := subs[subID]; exists {
				delete(subs, subID)
				observability.DecSubscriptions("messages")
			}
			if len(subs) == 0 {
				delete(h.messageSubs, roomID)
			}
		}
	}
}

// HasRoomSubscribers reports whether anyone listens to the user's room list.
func (h *Hub) HasRoomSubscribers(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.roomSubs[userID]) > 0
}

// HasMessageSubscribers reports whether anyone listens to the room.
func (h *Hub) HasMessageSubscribers(roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messageSubs[roomID]) > 0
}

// PublishRooms fans a fresh room-list snapshot out to the user's
// subscribers. Callbacks run synchronously under the registry lock so a
// completed cancel is a hard guarantee.
func (h *Hub) PublishRooms(userID string, rooms []models.ChatRoom) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.roomSubs[userID] {
		fn(rooms)
		observability.IncSubscriptionEvent("rooms")
	}
}

// PublishMessages fans a fresh message-list snapshot out to the room's
// subscribers.
func (h *Hub) PublishMessages(roomID string, msgs []models.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.messageSubs[roomID] {
		fn(msgs)
		observability.IncSubscriptionEvent("messages")
	}
}
