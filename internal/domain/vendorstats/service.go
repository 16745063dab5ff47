package vendorstats

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/pkg/database"
	"github.com/dirtsid3r/cellflip/pkg/events"
)

// ErrUnprocessable marks events that can never be applied; the consumer drops them.
var ErrUnprocessable = errors.New("unprocessable vendor stats event")

type Service struct {
	repo      Repository
	processed ProcessedEvents
	txManager database.TransactionManager
}

func NewService(repo Repository, processed ProcessedEvents, txManager database.TransactionManager) *Service {
	return &Service{
		repo:      repo,
		processed: processed,
		txManager: txManager,
	}
}

// Handle applies one bid or settlement event exactly once.
func (s *Service) Handle(ctx context.Context, payload []byte) error {
	env, err := events.DecodeEnvelope(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnprocessable, err)
	}
	if !tracked(env.EventType) {
		return nil
	}
	vendorID, err := uuid.Parse(env.String("vendor_id"))
	if err != nil {
		return fmt.Errorf("%w: %s has no vendor_id", ErrUnprocessable, env.EventType)
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	done, err := s.processed.IsEventProcessed(ctx, tx, env.EventID)
	if err != nil {
		return fmt.Errorf("failed to check idempotency: %w", err)
	}
	if done {
		return nil
	}

	if err := s.apply(ctx, tx, env, vendorID); err != nil {
		return err
	}

	if err := s.processed.MarkEventProcessed(ctx, tx, env.EventID, env.EventType); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) apply(ctx context.Context, tx pgx.Tx, env *events.Envelope, vendorID uuid.UUID) error {
	var err error
	switch env.EventType {
	case events.TypeBidPlaced:
		err = s.repo.RecordBid(ctx, tx, vendorID, env.Int64("amount"), env.OccurredAt)
	case events.TypeBidAccepted:
		err = s.repo.RecordWin(ctx, tx, vendorID)
	case events.TypePaymentSettled:
		err = s.repo.RecordSpend(ctx, tx, vendorID, env.Int64("vendor_charge"))
	}
	if err != nil {
		return fmt.Errorf("failed to update vendor stats: %w", err)
	}
	return nil
}

func tracked(eventType string) bool {
	switch eventType {
	case events.TypeBidPlaced, events.TypeBidAccepted, events.TypePaymentSettled:
		return true
	}
	return false
}

// Get returns the vendor's stats; a vendor with no activity gets zeroes.
func (s *Service) Get(ctx context.Context, vendorID uuid.UUID) (*VendorStats, error) {
	stats, err := s.repo.GetVendorStats(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor stats: %w", err)
	}
	if stats == nil {
		return &VendorStats{VendorID: vendorID}, nil
	}
	return stats, nil
}
