package db

import (
	"context"
	"fmt"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/google/uuid"
)

// CreateUser inserts a new user. A taken nickname yields store.ErrConflict.
func (t *Tx) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, nickname, password_hash, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := t.tx.QueryRowContext(
		ctx, query,
		user.ID, user.Nickname, user.PasswordHash, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return translate(err, fmt.Sprintf("create user %q", user.Nickname))
}

// GetUser retrieves a user by their ID.
func (t *Tx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, nickname, password_hash, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Nickname, &user.PasswordHash, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("get user %s", id))
	}

	return user, nil
}

// GetUserByNickname retrieves a user by their nickname.
func (t *Tx) GetUserByNickname(ctx context.Context, nickname string) (*models.User, error) {
	query := `
		SELECT id, nickname, password_hash, is_active, created_at, updated_at
		FROM users
		WHERE nickname = $1
	`

	user := &models.User{}
	err := t.tx.QueryRowContext(ctx, query, nickname).Scan(
		&user.ID, &user.Nickname, &user.PasswordHash, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("get user %q", nickname))
	}

	return user, nil
}
