package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	pkgdb "github.com/dirtsid3r/cellflip/pkg/database"
)

const listingColumns = `
	id, client_id, brand, model, variant, color, condition, description, asking_price, imeis,
	has_warranty, warranty_expiry, has_box, has_charger, has_bill, battery_health,
	pickup_line, pickup_city, pickup_pincode, pickup_latitude, pickup_longitude,
	photo_keys, status, rejection_reason, cancellation_reason, current_highest_bid,
	accepted_bid_id, approved_at, bidding_ends_at, created_at, updated_at`

// PostgresListingRepository implements the listing ports using pgx
type PostgresListingRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresListingRepository creates a new PostgreSQL listing repository
func NewPostgresListingRepository(pool *pgxpool.Pool) *PostgresListingRepository {
	return &PostgresListingRepository{pool: pool}
}

func (r *PostgresListingRepository) CreateListing(ctx context.Context, tx pgx.Tx, l *listings.Listing) error {
	query := `INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)`
	_, err := tx.Exec(ctx, query,
		l.ID,
		l.ClientID,
		l.Brand,
		l.Model,
		l.Variant,
		l.Color,
		l.Condition,
		l.Description,
		l.AskingPrice,
		l.IMEIs,
		l.Warranty.Active,
		l.Warranty.ExpiresAt,
		l.Accessories.Box,
		l.Accessories.Charger,
		l.Accessories.Bill,
		l.BatteryHealth,
		l.Pickup.Line,
		l.Pickup.City,
		l.Pickup.Pincode,
		l.Pickup.Latitude,
		l.Pickup.Longitude,
		l.PhotoKeys,
		l.Status,
		l.RejectionReason,
		l.CancellationReason,
		l.CurrentHighestBid,
		l.AcceptedBidID,
		l.ApprovedAt,
		l.BiddingEndsAt,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// GetListing retrieves a listing by its ID (non-transactional read)
func (r *PostgresListingRepository) GetListing(ctx context.Context, id uuid.UUID) (*listings.Listing, error) {
	return r.getListing(ctx, r.pool, id, false)
}

// GetListingForUpdate retrieves a listing and locks its row until tx ends.
// Bids, closes and lifecycle changes on one listing are serialized by this lock.
func (r *PostgresListingRepository) GetListingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*listings.Listing, error) {
	return r.getListing(ctx, tx, id, true)
}

func (r *PostgresListingRepository) getListing(ctx context.Context, db pkgdb.DBTX, id uuid.UUID, forUpdate bool) (*listings.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	l, err := scanListing(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, listings.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// ClaimDueListing locks the oldest overdue bidding_active listing, skipping
// rows another worker holds.
func (r *PostgresListingRepository) ClaimDueListing(ctx context.Context, tx pgx.Tx, now time.Time) (*listings.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings
		WHERE status = $1 AND bidding_ends_at <= $2
		ORDER BY bidding_ends_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`
	l, err := scanListing(tx.QueryRow(ctx, query, listings.StatusBiddingActive, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, listings.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to claim due listing: %w", err)
	}
	return l, nil
}

func (r *PostgresListingRepository) UpdateListing(ctx context.Context, tx pgx.Tx, l *listings.Listing) error {
	query := `
		UPDATE listings
		SET status = $1, rejection_reason = $2, cancellation_reason = $3, current_highest_bid = $4,
			accepted_bid_id = $5, approved_at = $6, bidding_ends_at = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := tx.Exec(ctx, query,
		l.Status,
		l.RejectionReason,
		l.CancellationReason,
		l.CurrentHighestBid,
		l.AcceptedBidID,
		l.ApprovedAt,
		l.BiddingEndsAt,
		l.UpdatedAt,
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return listings.ErrListingNotFound
	}
	return nil
}

// ListListings builds the browse query from the filter. Zero values are ignored.
func (r *PostgresListingRepository) ListListings(ctx context.Context, filter listings.ListFilter) ([]*listings.Listing, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.ClientID != nil {
		add("client_id = $%d", *filter.ClientID)
	}
	if filter.Brand != "" {
		add("lower(brand) = lower($%d)", filter.Brand)
	}
	if filter.Condition != "" {
		add("condition = $%d", filter.Condition)
	}
	if filter.MinPrice > 0 {
		add("asking_price >= $%d", filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		add("asking_price <= $%d", filter.MaxPrice)
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderBy(filter.Sort)

	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	result := []*listings.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}
	return result, nil
}

func orderBy(sort listings.SortOrder) string {
	switch sort {
	case listings.SortPriceLow:
		return "asking_price ASC, created_at DESC"
	case listings.SortPriceHigh:
		return "asking_price DESC, created_at DESC"
	case listings.SortEndingSoon:
		return "bidding_ends_at ASC NULLS LAST, created_at DESC"
	default:
		return "created_at DESC"
	}
}

func (r *PostgresListingRepository) CountBids(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (int64, error) {
	var count int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM bids WHERE listing_id = $1`, listingID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return count, nil
}

func (r *PostgresListingRepository) AddPhotoKey(ctx context.Context, listingID uuid.UUID, key string) error {
	query := `
		UPDATE listings
		SET photo_keys = array_append(photo_keys, $1), updated_at = NOW()
		WHERE id = $2
	`
	result, err := r.pool.Exec(ctx, query, key, listingID)
	if err != nil {
		return fmt.Errorf("failed to add photo key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return listings.ErrListingNotFound
	}
	return nil
}

func scanListing(row pgx.Row) (*listings.Listing, error) {
	var l listings.Listing
	err := row.Scan(
		&l.ID,
		&l.ClientID,
		&l.Brand,
		&l.Model,
		&l.Variant,
		&l.Color,
		&l.Condition,
		&l.Description,
		&l.AskingPrice,
		&l.IMEIs,
		&l.Warranty.Active,
		&l.Warranty.ExpiresAt,
		&l.Accessories.Box,
		&l.Accessories.Charger,
		&l.Accessories.Bill,
		&l.BatteryHealth,
		&l.Pickup.Line,
		&l.Pickup.City,
		&l.Pickup.Pincode,
		&l.Pickup.Latitude,
		&l.Pickup.Longitude,
		&l.PhotoKeys,
		&l.Status,
		&l.RejectionReason,
		&l.CancellationReason,
		&l.CurrentHighestBid,
		&l.AcceptedBidID,
		&l.ApprovedAt,
		&l.BiddingEndsAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
