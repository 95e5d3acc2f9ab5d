package storage

import (
	"context"
	"fmt"
)

// DeliveryStore tracks webhook deliveries that have already started a run.
type DeliveryStore struct {
	db *Database
}

// NewDeliveryStore creates a new delivery store.
func NewDeliveryStore(db *Database) *DeliveryStore {
	return &DeliveryStore{db: db}
}

// ClaimDelivery atomically records a delivery id. It returns false if the id
// was already claimed.
func (s *DeliveryStore) ClaimDelivery(ctx context.Context, deliveryID string, repoID int64, prNumber int) (bool, error) {
	query := `INSERT OR IGNORE INTO deliveries (delivery_id, repo_id, pr_number) VALUES (?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query, deliveryID, repoID, prNumber)
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery %s: %w", deliveryID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// ReleaseDelivery forgets a claimed delivery so a redelivery can run again.
func (s *DeliveryStore) ReleaseDelivery(ctx context.Context, deliveryID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE delivery_id = ?`, deliveryID); err != nil {
		return fmt.Errorf("failed to release delivery %s: %w", deliveryID, err)
	}
	return nil
}

// CleanupDeliveries removes claims older than the given number of days and
// returns how many were removed.
func (s *DeliveryStore) CleanupDeliveries(ctx context.Context, days int) (int64, error) {
	query := `DELETE FROM deliveries WHERE created_at < datetime('now', ?)`
	result, err := s.db.ExecContext(ctx, query, fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up deliveries: %w", err)
	}
	return result.RowsAffected()
}
