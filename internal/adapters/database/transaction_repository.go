package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
	"github.com/dirtsid3r/cellflip/internal/domain/transactions"
	pkgdb "github.com/dirtsid3r/cellflip/pkg/database"
)

const transactionColumns = `
	id, listing_id, bid_id, client_id, vendor_id, agent_id, bid_amount, phase, status, stage,
	pickup_scheduled_at, identity_check, inspection, deductions, total_deductions, final_offer,
	offer_gate_id, vendor_gate_id, completion_gate_id, handover_photo_key, dispute_reason,
	created_at, updated_at`

// PostgresTransactionRepository persists transactions and their settlements.
// Verification artifacts are stored as JSONB.
type PostgresTransactionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTransactionRepository(pool *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{pool: pool}
}

func (r *PostgresTransactionRepository) CreateTransaction(ctx context.Context, tx pgx.Tx, t *transactions.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23)`
	_, err := tx.Exec(ctx, query,
		t.ID,
		t.ListingID,
		t.BidID,
		t.ClientID,
		t.VendorID,
		t.AgentID,
		t.BidAmount,
		t.Phase,
		t.Status,
		t.Stage,
		t.PickupScheduledAt,
		t.Identity,
		t.Inspection,
		t.Deductions,
		t.TotalDeductions,
		t.FinalOffer,
		t.OfferGateID,
		t.VendorGateID,
		t.CompletionGateID,
		t.HandoverPhotoKey,
		t.DisputeReason,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *PostgresTransactionRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*transactions.Transaction, error) {
	return r.getTransaction(ctx, r.pool, id, false)
}

func (r *PostgresTransactionRepository) GetTransactionForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*transactions.Transaction, error) {
	return r.getTransaction(ctx, tx, id, true)
}

func (r *PostgresTransactionRepository) getTransaction(ctx context.Context, db pkgdb.DBTX, id uuid.UUID, forUpdate bool) (*transactions.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	t, err := scanTransaction(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transactions.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *PostgresTransactionRepository) UpdateTransaction(ctx context.Context, tx pgx.Tx, t *transactions.Transaction) error {
	query := `
		UPDATE transactions
		SET agent_id = $1, phase = $2, status = $3, stage = $4, pickup_scheduled_at = $5,
			identity_check = $6, inspection = $7, deductions = $8, total_deductions = $9,
			final_offer = $10, offer_gate_id = $11, vendor_gate_id = $12, completion_gate_id = $13,
			handover_photo_key = $14, dispute_reason = $15, updated_at = $16
		WHERE id = $17
	`
	result, err := tx.Exec(ctx, query,
		t.AgentID,
		t.Phase,
		t.Status,
		t.Stage,
		t.PickupScheduledAt,
		t.Identity,
		t.Inspection,
		t.Deductions,
		t.TotalDeductions,
		t.FinalOffer,
		t.OfferGateID,
		t.VendorGateID,
		t.CompletionGateID,
		t.HandoverPhotoKey,
		t.DisputeReason,
		t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return transactions.ErrTransactionNotFound
	}
	return nil
}

func (r *PostgresTransactionRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*transactions.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE client_id = $1 OR vendor_id = $1 OR agent_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	result := []*transactions.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return result, nil
}

// SaveSettlement inserts the settlement. The primary key on transaction_id
// rejects a second settlement for the same transaction.
func (r *PostgresTransactionRepository) SaveSettlement(ctx context.Context, tx pgx.Tx, s *settlement.Settlement) error {
	query := `
		INSERT INTO settlements (transaction_id, final_offer, client_payout, agent_commission,
			platform_fee, vendor_charge, payment_method, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Exec(ctx, query,
		s.TransactionID,
		s.FinalOffer,
		s.ClientPayout,
		s.AgentCommission,
		s.PlatformFee,
		s.VendorCharge,
		s.PaymentMethod,
		s.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

func (r *PostgresTransactionRepository) GetSettlement(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID) (*settlement.Settlement, error) {
	query := `
		SELECT transaction_id, final_offer, client_payout, agent_commission, platform_fee,
			vendor_charge, payment_method, settled_at
		FROM settlements
		WHERE transaction_id = $1
	`
	var s settlement.Settlement
	err := tx.QueryRow(ctx, query, transactionID).Scan(
		&s.TransactionID,
		&s.FinalOffer,
		&s.ClientPayout,
		&s.AgentCommission,
		&s.PlatformFee,
		&s.VendorCharge,
		&s.PaymentMethod,
		&s.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transactions.ErrSettlementNotFound
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return &s, nil
}

func scanTransaction(row pgx.Row) (*transactions.Transaction, error) {
	var t transactions.Transaction
	if err := row.Scan(
		&t.ID,
		&t.ListingID,
		&t.BidID,
		&t.ClientID,
		&t.VendorID,
		&t.AgentID,
		&t.BidAmount,
		&t.Phase,
		&t.Status,
		&t.Stage,
		&t.PickupScheduledAt,
		&t.Identity,
		&t.Inspection,
		&t.Deductions,
		&t.TotalDeductions,
		&t.FinalOffer,
		&t.OfferGateID,
		&t.VendorGateID,
		&t.CompletionGateID,
		&t.HandoverPhotoKey,
		&t.DisputeReason,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
