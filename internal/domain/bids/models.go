package bids

import (
	"time"

	"github.com/google/uuid"
)

// Status of a bid. Only active bids compete; the rest are settled.
type Status string

const (
	StatusActive   Status = "active"
	StatusOutbid   Status = "outbid"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Bid represents a vendor offer on a listing
type Bid struct {
	ID        uuid.UUID `db:"id"`
	ListingID uuid.UUID `db:"listing_id"`
	VendorID  uuid.UUID `db:"vendor_id"`
	Amount    int64     `db:"amount"`
	Status    Status    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Deal is an accepted bid handed to the verification flow.
type Deal struct {
	ListingID uuid.UUID
	BidID     uuid.UUID
	ClientID  uuid.UUID
	VendorID  uuid.UUID
	Amount    int64
}

// Close outcomes.
const (
	OutcomeAlreadyClosed = "already_closed"
	OutcomeAwarded       = "awarded"
	OutcomeNoBids        = "no_bids"
)

// CloseResult reports what CloseBidding did to a listing.
type CloseResult struct {
	ListingID     uuid.UUID
	Outcome       string
	WinningBid    *Bid
	TransactionID *uuid.UUID
}
