package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RepoStore handles repository registrations.
type RepoStore struct {
	db *Database
}

// NewRepoStore creates a new repository store.
func NewRepoStore(db *Database) *RepoStore {
	return &RepoStore{db: db}
}

// SaveRepo creates or updates the registration keyed by GitHub repository id
// and marks it connected.
func (s *RepoStore) SaveRepo(ctx context.Context, r *Repo) (*Repo, error) {
	query := `
		INSERT INTO repos (github_repo_id, owner, name, webhook_secret, user_id, connected, hook_id)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(github_repo_id) DO UPDATE SET
			owner = excluded.owner,
			name = excluded.name,
			webhook_secret = excluded.webhook_secret,
			user_id = excluded.user_id,
			connected = 1,
			hook_id = excluded.hook_id
	`
	_, err := s.db.ExecContext(ctx, query, r.GitHubRepoID, r.Owner, r.Name, r.WebhookSecret, r.UserID, r.HookID)
	if err != nil {
		return nil, fmt.Errorf("failed to save repo %s: %w", r.FullName(), err)
	}
	return s.GetRepoByGitHubID(ctx, r.GitHubRepoID)
}

// GetRepoByGitHubID returns the registration for a GitHub repository id,
// connected or not.
func (s *RepoStore) GetRepoByGitHubID(ctx context.Context, githubRepoID string) (*Repo, error) {
	var r Repo
	err := s.db.GetContext(ctx, &r, `SELECT * FROM repos WHERE github_repo_id = ?`, githubRepoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repo %s: %w", githubRepoID, err)
	}
	return &r, nil
}

// GetRepo returns the registration for owner/name.
func (s *RepoStore) GetRepo(ctx context.Context, owner, name string) (*Repo, error) {
	var r Repo
	err := s.db.GetContext(ctx, &r, `SELECT * FROM repos WHERE owner = ? AND name = ?`, owner, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repo %s/%s: %w", owner, name, err)
	}
	return &r, nil
}

// SetRepoConnected flips the connected flag. Disconnecting also clears the
// stored hook id.
func (s *RepoStore) SetRepoConnected(ctx context.Context, id int64, connected bool) error {
	query := `UPDATE repos SET connected = ? WHERE id = ?`
	if !connected {
		query = `UPDATE repos SET connected = ?, hook_id = 0 WHERE id = ?`
	}
	result, err := s.db.ExecContext(ctx, query, connected, id)
	if err != nil {
		return fmt.Errorf("failed to update repo %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRepos returns all registrations ordered by owner and name.
func (s *RepoStore) ListRepos(ctx context.Context) ([]Repo, error) {
	var repos []Repo
	if err := s.db.SelectContext(ctx, &repos, `SELECT * FROM repos ORDER BY owner, name`); err != nil {
		return nil, fmt.Errorf("failed to list repos: %w", err)
	}
	return repos, nil
}
