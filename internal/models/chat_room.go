package models

import (
	"database/sql"
	"time"
)

// ChatRoom is the persistent pairing of exactly two users. The participant
// pair is stored sorted so (a,b) and (b,a) resolve to the same row.
type ChatRoom struct {
	ID                  string         `db:"id" json:"id"`
	User1ID             string         `db:"user1_id" json:"user1_id"`
	User2ID             string         `db:"user2_id" json:"user2_id"`
	LastMessage         string         `db:"last_message" json:"last_message"`
	LastMessageAt       sql.NullTime   `db:"last_message_at" json:"last_message_at,omitempty"`
	LastMessageSenderID sql.NullString `db:"last_message_sender_id" json:"last_message_sender_id,omitempty"`
	UnreadUser1         int            `db:"unread_user1" json:"unread_user1"`
	UnreadUser2         int            `db:"unread_user2" json:"unread_user2"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID is one of the two room members.
func (r ChatRoom) HasParticipant(userID string) bool {
	return r.User1ID == userID || r.User2ID == userID
}

// OtherParticipant returns the member that is not userID.
func (r ChatRoom) OtherParticipant(userID string) string {
	if r.User1ID == userID {
		return r.User2ID
	}
	return r.User1ID
}

// UnreadFor returns the unread counter belonging to userID.
func (r ChatRoom) UnreadFor(userID string) int {
	if r.User1ID == userID {
		return r.UnreadUser1
	}
	return r.UnreadUser2
}
