package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-sync-service/internal/models"
)

var ErrRequestNotFound = errors.New("friend request not found")

// FriendRequestRepository abstracts friend request persistence.
type FriendRequestRepository interface {
	CreateRequest(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error)
	GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
	ListPendingForUser(ctx context.Context, receiverID string) ([]models.FriendRequest, error)
	UpdateStatus(ctx context.Context, requestID, status string) error
}

// FriendRequestRepo is a sqlx implementation of FriendRequestRepository.
type FriendRequestRepo struct {
	db *sqlx.DB
}

// NewFriendRequestRepo constructs a FriendRequestRepo.
func NewFriendRequestRepo(db *sqlx.DB) *FriendRequestRepo {
	return &FriendRequestRepo{db: db}
}

// CreateRequest inserts a pending request. Duplicate requests between the
// same pair are not prevented.
func (r *FriendRequestRepo) CreateRequest(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO friend_requests (id, sender_id, receiver_id) VALUES ($1, $2, $3)
         RETURNING id, sender_id, receiver_id, status, created_at`,
		uuid.NewString(), senderID, receiverID).StructScan(&req)
	return req, err
}

// GetRequest fetches a request by id.
func (r *FriendRequestRepo) GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT id, sender_id, receiver_id, status, created_at FROM friend_requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrRequestNotFound
	}
	return req, err
}

// ListPendingForUser returns pending requests addressed to the user, newest
// first.
func (r *FriendRequestRepo) ListPendingForUser(ctx context.Context, receiverID string) ([]models.FriendRequest, error) {
	reqs := []models.FriendRequest{}
	err := r.db.SelectContext(ctx, &reqs,
		`SELECT id, sender_id, receiver_id, status, created_at FROM friend_requests
         WHERE receiver_id=$1 AND status=$2
         ORDER BY created_at DESC`, receiverID, models.FriendRequestPending)
	return reqs, err
}

// UpdateStatus moves a request out of pending. Transitions are guarded at
// the service layer; the row keeps its final status forever.
func (r *FriendRequestRepo) UpdateStatus(ctx context.Context, requestID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE friend_requests SET status=$2 WHERE id=$1`, requestID, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRequestNotFound
	}
	return nil
}
