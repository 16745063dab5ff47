package vendorstats

import (
	"time"

	"github.com/google/uuid"
)

// VendorStats is a vendor's bidding record, projected from bid and settlement events.
type VendorStats struct {
	VendorID       uuid.UUID  `db:"vendor_id"`
	TotalBids      int64      `db:"total_bids"`
	TotalAmountBid int64      `db:"total_amount_bid"`
	WonBids        int64      `db:"won_bids"`
	TotalSpent     int64      `db:"total_spent"`
	LastBidAt      *time.Time `db:"last_bid_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// SuccessRate is the percentage of bids that won, 0 when the vendor never bid.
func (s *VendorStats) SuccessRate() float64 {
	if s.TotalBids == 0 {
		return 0
	}
	return float64(s.WonBids) * 100 / float64(s.TotalBids)
}
