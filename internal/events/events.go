// Package events defines the broker-facing event contracts shared by the
// sync service (producer) and the trigger listener (consumer).
package events

import "time"

// Routing keys on the chat topic exchange.
const (
	MessageCreatedKey = "chat.message.created"
)

// MessageCreated is published after a message row lands. The trigger
// listener reacts to it by dispatching a push notification; this is the
// database-trigger-shaped delivery path. Both it and the client-invoked
// relay call may fire for the same message, so consumers must tolerate
// duplicate delivery.
type MessageCreated struct {
	MessageID  string    `json:"message_id"`
	ChatRoomID string    `json:"chat_room_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
