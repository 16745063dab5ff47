package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dirtsid3r/cellflip/internal/domain/bids"
)

const bidColumns = `id, listing_id, vendor_id, amount, status, created_at, updated_at`

// PostgresBidRepository implements bids.Repository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid saves a bid within a transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (` + bidColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ListingID,
		bid.VendorID,
		bid.Amount,
		bid.Status,
		bid.CreatedAt,
		bid.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func (r *PostgresBidRepository) UpdateBidStatus(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, status bids.Status) error {
	result, err := tx.Exec(ctx, `UPDATE bids SET status = $1, updated_at = NOW() WHERE id = $2`, status, bidID)
	if err != nil {
		return fmt.Errorf("failed to update bid status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bid not found")
	}
	return nil
}

func (r *PostgresBidRepository) MarkOutbid(ctx context.Context, tx pgx.Tx, listingID, keep uuid.UUID) (int64, error) {
	query := `
		UPDATE bids
		SET status = 'outbid', updated_at = NOW()
		WHERE listing_id = $1 AND id <> $2 AND status = 'active'
	`
	result, err := tx.Exec(ctx, query, listingID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to mark bids outbid: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresBidRepository) SettleOthers(ctx context.Context, tx pgx.Tx, listingID, winner uuid.UUID, status bids.Status) (int64, error) {
	query := `
		UPDATE bids
		SET status = $1, updated_at = NOW()
		WHERE listing_id = $2 AND id <> $3 AND status IN ('active', 'outbid')
	`
	result, err := tx.Exec(ctx, query, status, listingID, winner)
	if err != nil {
		return 0, fmt.Errorf("failed to settle bids: %w", err)
	}
	return result.RowsAffected(), nil
}

// HighestBid picks the winner: highest amount, earliest placement on ties.
func (r *PostgresBidRepository) HighestBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE listing_id = $1 AND status IN ('active', 'outbid')
		ORDER BY amount DESC, created_at ASC
		LIMIT 1
	`
	bid, err := scanBid(tx.QueryRow(ctx, query, listingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bids.ErrNoBids
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return bid, nil
}

// GetBidsByListingID retrieves all bids for a listing, highest first
func (r *PostgresBidRepository) GetBidsByListingID(ctx context.Context, listingID uuid.UUID) ([]*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE listing_id = $1
		ORDER BY amount DESC, created_at ASC
	`
	return r.queryBids(ctx, query, listingID)
}

// GetBidsByVendorID retrieves a vendor's bids, newest first
func (r *PostgresBidRepository) GetBidsByVendorID(ctx context.Context, vendorID uuid.UUID) ([]*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE vendor_id = $1
		ORDER BY created_at DESC
	`
	return r.queryBids(ctx, query, vendorID)
}

func (r *PostgresBidRepository) queryBids(ctx context.Context, query string, arg any) ([]*bids.Bid, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	result := []*bids.Bid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}

func scanBid(row pgx.Row) (*bids.Bid, error) {
	var bid bids.Bid
	if err := row.Scan(
		&bid.ID,
		&bid.ListingID,
		&bid.VendorID,
		&bid.Amount,
		&bid.Status,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &bid, nil
}
