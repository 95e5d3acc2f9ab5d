package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UserStore handles user-related database operations.
type UserStore struct {
	db *Database
}

// NewUserStore creates a new user store.
func NewUserStore(db *Database) *UserStore {
	return &UserStore{db: db}
}

// UpsertUser creates the user or replaces the stored token, returning the user.
func (s *UserStore) UpsertUser(ctx context.Context, login, token string) (*User, error) {
	query := `
		INSERT INTO users (github_login, github_token)
		VALUES (?, ?)
		ON CONFLICT(github_login) DO UPDATE SET
			github_token = excluded.github_token,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, login, token); err != nil {
		return nil, fmt.Errorf("failed to upsert user %s: %w", login, err)
	}
	return s.GetUserByLogin(ctx, login)
}

// GetUser returns the user with the given id.
func (s *UserStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &u, nil
}

// GetUserByLogin returns the user with the given GitHub login.
func (s *UserStore) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE github_login = ?`, login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", login, err)
	}
	return &u, nil
}
