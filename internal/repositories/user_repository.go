package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-sync-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts directory-store access for users.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetToken(ctx context.Context, userID string) (string, error)
	SetToken(ctx context.Context, userID string, token string) error
	UpdatePresence(ctx context.Context, userID string, online bool) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, display_name, online, last_seen, fcm_token, avatar_url, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// CreateUser inserts a directory entry.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (id, display_name, avatar_url) VALUES ($1, $2, $3)
         RETURNING id, display_name, online, last_seen, fcm_token, avatar_url, created_at`,
		user.ID, user.DisplayName, user.AvatarURL).StructScan(&user)
	return user, err
}

// GetToken returns the stored push token. An absent token is ErrUserNotFound
// only when the user row itself is missing; a user without a token returns
// an empty string.
func (r *UserRepo) GetToken(ctx context.Context, userID string) (string, error) {
	var token sql.NullString
	err := r.db.GetContext(ctx, &token, `SELECT fcm_token FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return token.String, nil
}

// SetToken overwrites the push token unconditionally (last writer wins).
func (r *UserRepo) SetToken(ctx context.Context, userID string, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET fcm_token=$2 WHERE id=$1`, userID, token)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePresence sets the online flag and refreshes last_seen.
func (r *UserRepo) UpdatePresence(ctx context.Context, userID string, online bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET online=$2, last_seen=$3 WHERE id=$1`, userID, online, time.Now().UTC())
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
