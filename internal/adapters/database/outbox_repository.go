package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgevents "github.com/dirtsid3r/cellflip/pkg/events"
)

// PostgresOutboxRepository implements the writer and relay sides of the outbox.
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// SaveEvent writes the event in the caller's transaction, so it commits or
// rolls back with the state change it describes.
func (r *PostgresOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *pkgevents.OutboxEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, status, created_at)
		VALUES (@id, @event_type, @aggregate_id, @payload, @status::outbox_status, @created_at)
	`, pgx.NamedArgs{
		"id":           event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
		"payload":      event.Payload,
		"status":       event.Status,
		"created_at":   event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ClaimPending locks up to limit pending events, oldest first. Rows another
// relay already holds are skipped.
func (r *PostgresOutboxRepository) ClaimPending(ctx context.Context, tx pgx.Tx, limit int) ([]*pkgevents.OutboxEvent, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, aggregate_id, payload, status, created_at, processed_at
		FROM outbox_events
		WHERE status = 'pending'::outbox_status
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending events: %w", err)
	}
	claimed, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pkgevents.OutboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending events: %w", err)
	}
	return claimed, nil
}

// MarkPublished flips a claimed batch to published in one statement.
func (r *PostgresOutboxRepository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'published'::outbox_status, processed_at = $2
		WHERE id = ANY($1)
	`, ids, at)
	if err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}
	if int(tag.RowsAffected()) != len(ids) {
		return fmt.Errorf("marked %d of %d outbox events", tag.RowsAffected(), len(ids))
	}
	return nil
}

// CountPending reports the relay backlog.
func (r *PostgresOutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE status = 'pending'::outbox_status`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return n, nil
}
