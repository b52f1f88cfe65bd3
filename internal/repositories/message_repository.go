package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-sync-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	ListMessagesForRoom(ctx context.Context, roomID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	MarkAllRead(ctx context.Context, roomID, receiverID string) (int, error)
	SoftDelete(ctx context.Context, messageID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, chat_room_id, sender_id, receiver_id, content,
    is_read, deleted, reply_to, attachment_url, attachment_type, reactions, created_at`

// CreateMessage stores a message; id and server timestamp are assigned here.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var stored models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (id, chat_room_id, sender_id, receiver_id, content,
            reply_to, attachment_url, attachment_type)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         RETURNING `+messageColumns,
		uuid.NewString(), msg.ChatRoomID, msg.SenderID, msg.ReceiverID, msg.Content,
		msg.ReplyTo, msg.AttachmentURL, msg.AttachmentType).StructScan(&stored)
	return stored, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessagesForRoom returns non-deleted messages in timestamp order.
func (r *MessageRepo) ListMessagesForRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE chat_room_id=$1 AND deleted = FALSE
         ORDER BY created_at ASC, id ASC`, roomID)
	return msgs, err
}

// MarkRead sets is_read on one message.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkAllRead flags every unread message in the room addressed to receiverID
// and reports how many rows changed. Messages addressed to the other
// participant are untouched.
func (r *MessageRepo) MarkAllRead(ctx context.Context, roomID, receiverID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE
         WHERE chat_room_id=$1 AND receiver_id=$2 AND is_read = FALSE`, roomID, receiverID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// SoftDelete marks a message deleted without removing the row.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted = TRUE WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
