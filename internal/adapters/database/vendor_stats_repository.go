package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dirtsid3r/cellflip/internal/domain/vendorstats"
)

type PostgresVendorStatsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresVendorStatsRepository(pool *pgxpool.Pool) *PostgresVendorStatsRepository {
	return &PostgresVendorStatsRepository{pool: pool}
}

func (r *PostgresVendorStatsRepository) RecordBid(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount int64, at time.Time) error {
	query := `
		INSERT INTO vendor_stats (vendor_id, total_bids, total_amount_bid, last_bid_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (vendor_id) DO UPDATE SET
			total_bids = vendor_stats.total_bids + 1,
			total_amount_bid = vendor_stats.total_amount_bid + EXCLUDED.total_amount_bid,
			last_bid_at = GREATEST(vendor_stats.last_bid_at, EXCLUDED.last_bid_at),
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, vendorID, amount, at); err != nil {
		return fmt.Errorf("failed to record bid: %w", err)
	}
	return nil
}

func (r *PostgresVendorStatsRepository) RecordWin(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) error {
	query := `
		INSERT INTO vendor_stats (vendor_id, won_bids)
		VALUES ($1, 1)
		ON CONFLICT (vendor_id) DO UPDATE SET
			won_bids = vendor_stats.won_bids + 1,
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, vendorID); err != nil {
		return fmt.Errorf("failed to record win: %w", err)
	}
	return nil
}

func (r *PostgresVendorStatsRepository) RecordSpend(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount int64) error {
	query := `
		INSERT INTO vendor_stats (vendor_id, total_spent)
		VALUES ($1, $2)
		ON CONFLICT (vendor_id) DO UPDATE SET
			total_spent = vendor_stats.total_spent + EXCLUDED.total_spent,
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, vendorID, amount); err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}
	return nil
}

func (r *PostgresVendorStatsRepository) GetVendorStats(ctx context.Context, vendorID uuid.UUID) (*vendorstats.VendorStats, error) {
	query := `
		SELECT vendor_id, total_bids, total_amount_bid, won_bids, total_spent, last_bid_at, updated_at
		FROM vendor_stats
		WHERE vendor_id = $1
	`
	var s vendorstats.VendorStats
	err := r.pool.QueryRow(ctx, query, vendorID).Scan(
		&s.VendorID,
		&s.TotalBids,
		&s.TotalAmountBid,
		&s.WonBids,
		&s.TotalSpent,
		&s.LastBidAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vendor stats: %w", err)
	}
	return &s, nil
}
