package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-sync-service/internal/models"
)

var ErrRoomNotFound = errors.New("chat room not found")

// ChatRoomRepository abstracts chat room persistence.
type ChatRoomRepository interface {
	FindOrCreateRoom(ctx context.Context, userID, otherID string) (models.ChatRoom, error)
	GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error)
	UpdateSummary(ctx context.Context, roomID string, msg models.Message) error
	ResetUnread(ctx context.Context, roomID, userID string) error
	DeleteRoom(ctx context.Context, roomID string) error
}

// ChatRoomRepo is a sqlx implementation of ChatRoomRepository.
type ChatRoomRepo struct {
	db *sqlx.DB
}

// NewChatRoomRepo constructs a ChatRoomRepo.
func NewChatRoomRepo(db *sqlx.DB) *ChatRoomRepo {
	return &ChatRoomRepo{db: db}
}

const roomColumns = `id, user1_id, user2_id, last_message, last_message_at,
    last_message_sender_id, unread_user1, unread_user2, created_at`

// FindOrCreateRoom resolves the room for an unordered pair, creating it on
// first contact. The pair is stored sorted under a unique constraint, so two
// near-simultaneous first messages converge on one row: the loser of the
// insert race re-reads the winner's row.
func (r *ChatRoomRepo) FindOrCreateRoom(ctx context.Context, userID, otherID string) (models.ChatRoom, error) {
	if userID == otherID {
		return models.ChatRoom{}, errors.New("cannot create room with self")
	}
	user1, user2 := userID, otherID
	if user2 < user1 {
		user1, user2 = user2, user1
	}

	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_rooms (id, user1_id, user2_id) VALUES ($1, $2, $3)
         ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
         RETURNING `+roomColumns,
		uuid.NewString(), user1, user2).StructScan(&room)
	return room, err
}

// GetRoom fetches a room by id.
func (r *ChatRoomRepo) GetRoom(ctx context.Context, roomID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room,
		`SELECT `+roomColumns+` FROM chat_rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// ListRoomsForUser returns the user's rooms, most recent message first.
// Rooms that never saw a message sort last.
func (r *ChatRoomRepo) ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	rooms := []models.ChatRoom{}
	err := r.db.SelectContext(ctx, &rooms,
		`SELECT `+roomColumns+` FROM chat_rooms
         WHERE user1_id=$1 OR user2_id=$1
         ORDER BY last_message_at DESC NULLS LAST, created_at DESC`, userID)
	return rooms, err
}

// UpdateSummary denormalizes the latest message onto the room and bumps the
// receiver's unread counter. Separate write from the message insert.
func (r *ChatRoomRepo) UpdateSummary(ctx context.Context, roomID string, msg models.Message) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_rooms SET
            last_message=$2,
            last_message_at=$3,
            last_message_sender_id=$4,
            unread_user1 = unread_user1 + CASE WHEN user1_id=$5 THEN 1 ELSE 0 END,
            unread_user2 = unread_user2 + CASE WHEN user2_id=$5 THEN 1 ELSE 0 END
         WHERE id=$1`,
		roomID, msg.Content, msg.CreatedAt, msg.SenderID, msg.ReceiverID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// ResetUnread zeroes the unread counter belonging to userID.
func (r *ChatRoomRepo) ResetUnread(ctx context.Context, roomID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_rooms SET
            unread_user1 = CASE WHEN user1_id=$2 THEN 0 ELSE unread_user1 END,
            unread_user2 = CASE WHEN user2_id=$2 THEN 0 ELSE unread_user2 END
         WHERE id=$1`, roomID, userID)
	return err
}

// DeleteRoom removes the room; messages go with it via ON DELETE CASCADE.
func (r *ChatRoomRepo) DeleteRoom(ctx context.Context, roomID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_rooms WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}
