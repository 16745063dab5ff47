package bids

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/internal/domain/listings"
)

// Repository defines the interface for bid persistence
type Repository interface {
	// SaveBid saves a bid within a transaction
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	UpdateBidStatus(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, status Status) error

	// MarkOutbid moves every active bid on the listing except keep to outbid.
	MarkOutbid(ctx context.Context, tx pgx.Tx, listingID, keep uuid.UUID) (int64, error)

	// SettleOthers moves every active or outbid bid except winner to status.
	SettleOthers(ctx context.Context, tx pgx.Tx, listingID, winner uuid.UUID, status Status) (int64, error)

	// HighestBid returns the highest bid, earliest placement first on equal
	// amounts, or ErrNoBids.
	HighestBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*Bid, error)

	GetBidsByListingID(ctx context.Context, listingID uuid.UUID) ([]*Bid, error)
	GetBidsByVendorID(ctx context.Context, vendorID uuid.UUID) ([]*Bid, error)
}

// ListingStore is the slice of listing persistence the engine writes through.
type ListingStore interface {
	GetListingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*listings.Listing, error)
	UpdateListing(ctx context.Context, tx pgx.Tx, listing *listings.Listing) error

	// ClaimDueListing locks one bidding_active listing whose deadline passed
	// before now, skipping rows locked by other workers. It returns
	// listings.ErrListingNotFound when none is due.
	ClaimDueListing(ctx context.Context, tx pgx.Tx, now time.Time) (*listings.Listing, error)
}

// TransactionOpener starts the verification flow for an accepted bid inside tx.
type TransactionOpener interface {
	OpenTransaction(ctx context.Context, tx pgx.Tx, deal Deal) (uuid.UUID, error)
}

// Metrics records engine activity.
type Metrics interface {
	RecordBid(outcome string)
	RecordBiddingClosed(reason string)
}
