package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Consumer names used to scope processed events.
const (
	ConsumerNotifications = "notifications"
	ConsumerVendorStats   = "vendor_stats"
)

// PostgresProcessedEventRepository records events one consumer has handled so
// redeliveries are skipped.
type PostgresProcessedEventRepository struct {
	consumer string
}

func NewPostgresProcessedEventRepository(consumer string) *PostgresProcessedEventRepository {
	return &PostgresProcessedEventRepository{consumer: consumer}
}

func (r *PostgresProcessedEventRepository) MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, eventType string) error {
	query := `INSERT INTO processed_events (consumer, event_id, event_type) VALUES ($1, $2, $3)`
	_, err := tx.Exec(ctx, query, r.consumer, eventID, eventType)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *PostgresProcessedEventRepository) IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE consumer = $1 AND event_id = $2`
	var exists int
	err := tx.QueryRow(ctx, query, r.consumer, eventID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return true, nil
}
