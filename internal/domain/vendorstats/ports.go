package vendorstats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository interface {
	// RecordBid counts one bid and adds its amount (upsert).
	RecordBid(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount int64, at time.Time) error

	RecordWin(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) error

	// RecordSpend adds what the vendor paid for a settled deal.
	RecordSpend(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount int64) error

	// GetVendorStats returns nil, nil when the vendor has no recorded activity.
	GetVendorStats(ctx context.Context, vendorID uuid.UUID) (*VendorStats, error)
}

type ProcessedEvents interface {
	IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error)
	MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, eventType string) error
}
