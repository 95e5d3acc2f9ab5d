// Package storage provides database operations and data models.
package storage

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Paribesh01/pullpal/internal/review"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// User owns connected repositories and the GitHub token used on their behalf.
type User struct {
	ID          int64     `db:"id"`
	GitHubLogin string    `db:"github_login"`
	GitHubToken string    `db:"github_token"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Repo is a repository registered for automated review.
type Repo struct {
	ID            int64     `db:"id"`
	GitHubRepoID  string    `db:"github_repo_id"`
	Owner         string    `db:"owner"`
	Name          string    `db:"name"`
	WebhookSecret string    `db:"webhook_secret"`
	UserID        int64     `db:"user_id"`
	Connected     bool      `db:"connected"`
	HookID        int64     `db:"hook_id"` // 0 when the hook was installed by hand
	CreatedAt     time.Time `db:"created_at"`
}

// FullName returns owner/name.
func (r Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

// Review is the audit record of one processed pull request event.
type Review struct {
	ID         int64       `db:"id"`
	RepoID     int64       `db:"repo_id"`
	PRNumber   int         `db:"pr_number"`
	HeadSHA    string      `db:"head_sha"`
	DeliveryID string      `db:"delivery_id"`
	Summary    string      `db:"summary"`
	AIFeedback CommentList `db:"ai_feedback"`
	CreatedAt  time.Time   `db:"created_at"`
}

// CommentList stores review comments as a JSON array column.
type CommentList []review.Comment

// Value implements driver.Valuer.
func (l CommentList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]review.Comment(l))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comments: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *CommentList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = CommentList{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type %T for comment list", src)
	}

	var comments []review.Comment
	if err := json.Unmarshal(data, &comments); err != nil {
		return fmt.Errorf("failed to unmarshal comments: %w", err)
	}
	if comments == nil {
		comments = []review.Comment{}
	}
	*l = comments
	return nil
}
