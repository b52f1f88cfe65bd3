package models

import (
	"database/sql"
	"time"
)

// User is a directory entry for a registered account.
type User struct {
	ID          string         `db:"id" json:"id"`
	DisplayName string         `db:"display_name" json:"display_name"`
	Online      bool           `db:"online" json:"online"`
	LastSeen    time.Time      `db:"last_seen" json:"last_seen"`
	FCMToken    sql.NullString `db:"fcm_token" json:"-"`
	AvatarURL   string         `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
