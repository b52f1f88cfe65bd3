package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Message is a chat message. Rows are immutable after insert except for the
// is_read and deleted flags.
type Message struct {
	ID             string         `db:"id" json:"id"`
	ChatRoomID     string         `db:"chat_room_id" json:"chat_room_id"`
	SenderID       string         `db:"sender_id" json:"sender_id"`
	ReceiverID     string         `db:"receiver_id" json:"receiver_id"`
	Content        string         `db:"content" json:"content"`
	IsRead         bool           `db:"is_read" json:"is_read"`
	Deleted        bool           `db:"deleted" json:"deleted"`
	ReplyTo        sql.NullString `db:"reply_to" json:"reply_to,omitempty"`
	AttachmentURL  sql.NullString `db:"attachment_url" json:"attachment_url,omitempty"`
	AttachmentType sql.NullString `db:"attachment_type" json:"attachment_type,omitempty"`
	Reactions      pq.StringArray `db:"reactions" json:"reactions"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// RoomEvent is emitted to live room-list subscribers.
type RoomEvent struct {
	Type  string     `json:"type"`
	Rooms []ChatRoom `json:"rooms"`
}

// MessageEvent is emitted to live message subscribers.
type MessageEvent struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}
