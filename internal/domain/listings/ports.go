package listings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SortOrder for marketplace browsing.
type SortOrder string

const (
	SortNewest     SortOrder = "NEWEST"
	SortPriceLow   SortOrder = "PRICE_LOW"
	SortPriceHigh  SortOrder = "PRICE_HIGH"
	SortEndingSoon SortOrder = "ENDING_SOON"
)

func (s SortOrder) Valid() bool {
	switch s {
	case SortNewest, SortPriceLow, SortPriceHigh, SortEndingSoon:
		return true
	}
	return false
}

// ListFilter narrows ListListings. Zero values mean "any".
type ListFilter struct {
	Brand     string
	Condition Condition
	Status    Status
	MinPrice  int64
	MaxPrice  int64
	ClientID  *uuid.UUID
	Sort      SortOrder
	Limit     int
	Offset    int
}

// Repository defines the interface for listing persistence
type Repository interface {
	CreateListing(ctx context.Context, tx pgx.Tx, listing *Listing) error

	// GetListing retrieves a listing by its ID (non-transactional read)
	GetListing(ctx context.Context, id uuid.UUID) (*Listing, error)

	// GetListingForUpdate locks the listing row. It is the single-writer gate
	// for every status change and bid on the listing.
	GetListingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Listing, error)

	// UpdateListing writes status, bidding and review fields.
	UpdateListing(ctx context.Context, tx pgx.Tx, listing *Listing) error

	ListListings(ctx context.Context, filter ListFilter) ([]*Listing, error)

	CountBids(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (int64, error)

	AddPhotoKey(ctx context.Context, listingID uuid.UUID, key string) error
}

// DeadlineScheduler arranges for bidding to be closed at the deadline.
type DeadlineScheduler interface {
	ScheduleBiddingClose(ctx context.Context, listingID uuid.UUID, at time.Time) error
}

// PresignedUpload is a short-lived URL the caller PUTs a photo to.
type PresignedUpload struct {
	Key       string
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

// PhotoStorage issues upload URLs for device photos.
type PhotoStorage interface {
	PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error)
}
