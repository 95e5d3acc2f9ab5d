package storage

import (
	"context"
	"fmt"
)

// ReviewStore records completed review runs.
type ReviewStore struct {
	db *Database
}

// NewReviewStore creates a new review store.
func NewReviewStore(db *Database) *ReviewStore {
	return &ReviewStore{db: db}
}

// CreateReview inserts the record and sets its ID and CreatedAt.
func (s *ReviewStore) CreateReview(ctx context.Context, r *Review) error {
	query := `
		INSERT INTO reviews (repo_id, pr_number, head_sha, delivery_id, summary, ai_feedback)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, r.RepoID, r.PRNumber, r.HeadSHA, r.DeliveryID, r.Summary, r.AIFeedback)
	if err != nil {
		return fmt.Errorf("failed to create review for PR #%d: %w", r.PRNumber, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id

	return s.db.GetContext(ctx, &r.CreatedAt, `SELECT created_at FROM reviews WHERE id = ?`, id)
}

// HasReviewForCommit reports whether a review already exists for the given
// head commit of a pull request.
func (s *ReviewStore) HasReviewForCommit(ctx context.Context, repoID int64, prNumber int, headSHA string) (bool, error) {
	if headSHA == "" {
		return false, nil
	}
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM reviews WHERE repo_id = ? AND pr_number = ? AND head_sha = ?)`
	if err := s.db.GetContext(ctx, &exists, query, repoID, prNumber, headSHA); err != nil {
		return false, fmt.Errorf("failed to check reviews for PR #%d: %w", prNumber, err)
	}
	return exists, nil
}

// ListReviews returns the most recent reviews for a repository, newest first.
// A prNumber of 0 matches every pull request.
func (s *ReviewStore) ListReviews(ctx context.Context, repoID int64, prNumber, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = 50
	}

	var reviews []Review
	var err error
	if prNumber > 0 {
		query := `SELECT * FROM reviews WHERE repo_id = ? AND pr_number = ? ORDER BY id DESC LIMIT ?`
		err = s.db.SelectContext(ctx, &reviews, query, repoID, prNumber, limit)
	} else {
		query := `SELECT * FROM reviews WHERE repo_id = ? ORDER BY id DESC LIMIT ?`
		err = s.db.SelectContext(ctx, &reviews, query, repoID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}
