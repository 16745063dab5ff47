package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dirtsid3r/cellflip/internal/domain/otp"
)

// PostgresGateRepository implements otp.Repository on confirmation_gates.
type PostgresGateRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresGateRepository(pool *pgxpool.Pool) *PostgresGateRepository {
	return &PostgresGateRepository{pool: pool}
}

func (r *PostgresGateRepository) CreateGate(ctx context.Context, tx pgx.Tx, gate *otp.Gate) error {
	query := `
		INSERT INTO confirmation_gates (id, phone, purpose, transaction_id, amount, code_hash,
			status, attempts, expires_at, verified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := tx.Exec(ctx, query,
		gate.ID,
		gate.Phone,
		gate.Purpose,
		gate.TransactionID,
		gate.Amount,
		gate.CodeHash,
		gate.Status,
		gate.Attempts,
		gate.ExpiresAt,
		gate.VerifiedAt,
		gate.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert gate: %w", err)
	}
	return nil
}

func (r *PostgresGateRepository) GetGateForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*otp.Gate, error) {
	query := `
		SELECT id, phone, purpose, transaction_id, amount, code_hash, status, attempts,
			expires_at, verified_at, created_at
		FROM confirmation_gates
		WHERE id = $1
		FOR UPDATE
	`
	var g otp.Gate
	err := tx.QueryRow(ctx, query, id).Scan(
		&g.ID,
		&g.Phone,
		&g.Purpose,
		&g.TransactionID,
		&g.Amount,
		&g.CodeHash,
		&g.Status,
		&g.Attempts,
		&g.ExpiresAt,
		&g.VerifiedAt,
		&g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, otp.ErrGateNotFound
		}
		return nil, fmt.Errorf("failed to get gate: %w", err)
	}
	return &g, nil
}

func (r *PostgresGateRepository) UpdateGate(ctx context.Context, tx pgx.Tx, gate *otp.Gate) error {
	query := `
		UPDATE confirmation_gates
		SET status = $1, attempts = $2, verified_at = $3
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, gate.Status, gate.Attempts, gate.VerifiedAt, gate.ID)
	if err != nil {
		return fmt.Errorf("failed to update gate: %w", err)
	}
	if result.RowsAffected() == 0 {
		return otp.ErrGateNotFound
	}
	return nil
}

// ExpireIssued supersedes outstanding codes for the binding. A nil transaction
// ID matches only gates issued without one.
func (r *PostgresGateRepository) ExpireIssued(ctx context.Context, tx pgx.Tx, b otp.Binding) (int64, error) {
	query := `
		UPDATE confirmation_gates
		SET status = 'EXPIRED'
		WHERE phone = $1 AND purpose = $2
			AND transaction_id IS NOT DISTINCT FROM $3
			AND status = 'ISSUED'
	`
	result, err := tx.Exec(ctx, query, b.Phone, b.Purpose, b.TransactionID)
	if err != nil {
		return 0, fmt.Errorf("failed to expire gates: %w", err)
	}
	return result.RowsAffected(), nil
}
