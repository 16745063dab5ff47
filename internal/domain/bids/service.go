package bids

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/pkg/database"
	"github.com/dirtsid3r/cellflip/pkg/events"
)

type PlaceBidCommand struct {
	ListingID uuid.UUID
	VendorID  uuid.UUID
	Amount    int64
}

// Validation errors
var (
	ErrInvalidBidAmount = errors.New("bid amount must be positive")
	ErrBidTooLow        = errors.New("bid amount must be higher than current highest bid")
	ErrOwnerCannotBid   = errors.New("listing owner cannot bid on their own listing")
	ErrListingNotOpen   = errors.New("listing is not open for bidding")
	ErrBiddingClosed    = errors.New("bidding window has ended")
	ErrBiddingStillOpen = errors.New("bidding window is still open")
	ErrNoBids           = errors.New("listing has no bids")
)

const noBidsReason = "no bids"

// validateBidAmount checks if the bid amount is higher than the current highest bid
func validateBidAmount(bidAmount, currentHighest int64) error {
	if bidAmount <= 0 {
		return ErrInvalidBidAmount
	}
	if bidAmount <= currentHighest {
		return ErrBidTooLow
	}
	return nil
}

// Service is the bidding engine. Every write locks the listing row first,
// so bids and closes on one listing are serialized.
type Service struct {
	txManager database.TransactionManager
	repo      Repository
	listings  ListingStore
	opener    TransactionOpener
	outbox    events.OutboxWriter
	metrics   Metrics
	now       func() time.Time
}

func NewService(
	txManager database.TransactionManager,
	repo Repository,
	listingStore ListingStore,
	opener TransactionOpener,
	outbox events.OutboxWriter,
	metrics Metrics,
) *Service {
	return &Service{
		txManager: txManager,
		repo:      repo,
		listings:  listingStore,
		opener:    opener,
		outbox:    outbox,
		metrics:   metrics,
		now:       time.Now,
	}
}

// PlaceBid records a vendor bid. A bid at or above the asking price is
// accepted on the spot and closes bidding.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	if cmd.Amount <= 0 {
		return nil, ErrInvalidBidAmount
	}

	var placed *Bid
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		listing, err := s.listings.GetListingForUpdate(ctx, tx, cmd.ListingID)
		if err != nil {
			if errors.Is(err, listings.ErrListingNotFound) {
				return err
			}
			return fmt.Errorf("failed to lock listing: %w", err)
		}

		now := s.now()
		if listing.IsOwnedBy(cmd.VendorID) {
			return ErrOwnerCannotBid
		}
		if listing.Status != listings.StatusBiddingActive {
			return ErrListingNotOpen
		}
		if !listing.BiddingOpenAt(now) {
			return ErrBiddingClosed
		}
		if err := validateBidAmount(cmd.Amount, listing.CurrentHighestBid); err != nil {
			return err
		}

		bid := &Bid{
			ID:        uuid.New(),
			ListingID: listing.ID,
			VendorID:  cmd.VendorID,
			Amount:    cmd.Amount,
			Status:    StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		accepted := cmd.Amount >= listing.AskingPrice
		if accepted {
			bid.Status = StatusAccepted
		}

		if err := s.repo.SaveBid(ctx, tx, bid); err != nil {
			return fmt.Errorf("failed to save bid: %w", err)
		}
		listing.CurrentHighestBid = bid.Amount

		if accepted {
			if _, err := s.repo.SettleOthers(ctx, tx, listing.ID, bid.ID, StatusRejected); err != nil {
				return fmt.Errorf("failed to reject other bids: %w", err)
			}
		} else {
			if _, err := s.repo.MarkOutbid(ctx, tx, listing.ID, bid.ID); err != nil {
				return fmt.Errorf("failed to mark outbid bids: %w", err)
			}
			listing.UpdatedAt = now
		}

		if err := s.emitBid(ctx, tx, events.TypeBidPlaced, listing, bid); err != nil {
			return err
		}

		if accepted {
			if _, err := s.award(ctx, tx, listing, bid, now, "asking_price"); err != nil {
				return err
			}
		} else if err := s.listings.UpdateListing(ctx, tx, listing); err != nil {
			return fmt.Errorf("failed to update highest bid: %w", err)
		}

		placed = bid
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordBid("rejected")
		}
		return nil, err
	}

	if s.metrics != nil {
		if placed.Status == StatusAccepted {
			s.metrics.RecordBid("accepted")
			s.metrics.RecordBiddingClosed("asking_price")
		} else {
			s.metrics.RecordBid("placed")
		}
	}
	return placed, nil
}

// CloseBidding settles a listing whose window has passed. Calling it again,
// or on a listing that closed early, is a no-op.
func (s *Service) CloseBidding(ctx context.Context, listingID uuid.UUID) (*CloseResult, error) {
	var result *CloseResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		listing, err := s.listings.GetListingForUpdate(ctx, tx, listingID)
		if err != nil {
			if errors.Is(err, listings.ErrListingNotFound) {
				return err
			}
			return fmt.Errorf("failed to lock listing: %w", err)
		}
		result, err = s.closeLocked(ctx, tx, listing)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordClose(result)
	return result, nil
}

// CloseExpired closes up to limit listings whose deadline has passed, one
// transaction each, and returns how many were closed.
func (s *Service) CloseExpired(ctx context.Context, limit int) (int, error) {
	closed := 0
	for closed < limit {
		var result *CloseResult
		err := s.inTx(ctx, func(tx pgx.Tx) error {
			listing, err := s.listings.ClaimDueListing(ctx, tx, s.now())
			if err != nil {
				return err
			}
			result, err = s.closeLocked(ctx, tx, listing)
			return err
		})
		if errors.Is(err, listings.ErrListingNotFound) {
			return closed, nil
		}
		if err != nil {
			return closed, fmt.Errorf("failed to close expired listing: %w", err)
		}
		s.recordClose(result)
		closed++
	}
	return closed, nil
}

// ListingBids returns bids on a listing, highest first.
func (s *Service) ListingBids(ctx context.Context, listingID uuid.UUID) ([]*Bid, error) {
	found, err := s.repo.GetBidsByListingID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	return found, nil
}

// VendorBids returns a vendor's bids, newest first.
func (s *Service) VendorBids(ctx context.Context, vendorID uuid.UUID) ([]*Bid, error) {
	found, err := s.repo.GetBidsByVendorID(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	return found, nil
}

func (s *Service) closeLocked(ctx context.Context, tx pgx.Tx, listing *listings.Listing) (*CloseResult, error) {
	result := &CloseResult{ListingID: listing.ID, Outcome: OutcomeAlreadyClosed}
	if listing.Status != listings.StatusBiddingActive {
		return result, nil
	}

	now := s.now()
	if !listing.DeadlinePassed(now) {
		return nil, ErrBiddingStillOpen
	}

	winner, err := s.repo.HighestBid(ctx, tx, listing.ID)
	if errors.Is(err, ErrNoBids) {
		if err := listing.TransitionTo(listings.StatusCancelled, now); err != nil {
			return nil, err
		}
		listing.CancellationReason = noBidsReason
		if err := s.listings.UpdateListing(ctx, tx, listing); err != nil {
			return nil, fmt.Errorf("failed to update listing: %w", err)
		}
		if err := s.emit(ctx, tx, events.TypeBiddingEnded, listing.ID, map[string]any{
			"listing_id": listing.ID.String(),
			"client_id":  listing.ClientID.String(),
			"outcome":    OutcomeNoBids,
		}); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, tx, events.TypeListingCancelled, listing.ID, map[string]any{
			"listing_id": listing.ID.String(),
			"client_id":  listing.ClientID.String(),
			"status":     string(listing.Status),
			"reason":     noBidsReason,
		}); err != nil {
			return nil, err
		}
		result.Outcome = OutcomeNoBids
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find highest bid: %w", err)
	}

	winner.Status = StatusAccepted
	winner.UpdatedAt = now
	if err := s.repo.UpdateBidStatus(ctx, tx, winner.ID, StatusAccepted); err != nil {
		return nil, fmt.Errorf("failed to accept bid: %w", err)
	}
	if _, err := s.repo.SettleOthers(ctx, tx, listing.ID, winner.ID, StatusExpired); err != nil {
		return nil, fmt.Errorf("failed to expire other bids: %w", err)
	}

	txID, err := s.award(ctx, tx, listing, winner, now, "deadline")
	if err != nil {
		return nil, err
	}
	result.Outcome = OutcomeAwarded
	result.WinningBid = winner
	result.TransactionID = &txID
	return result, nil
}

// award ends bidding on the listing in favour of bid and opens the transaction.
func (s *Service) award(ctx context.Context, tx pgx.Tx, listing *listings.Listing, bid *Bid, now time.Time, reason string) (uuid.UUID, error) {
	if err := listing.TransitionTo(listings.StatusBiddingEnded, now); err != nil {
		return uuid.Nil, err
	}
	listing.AcceptedBidID = &bid.ID
	if bid.Amount > listing.CurrentHighestBid {
		listing.CurrentHighestBid = bid.Amount
	}
	if err := s.listings.UpdateListing(ctx, tx, listing); err != nil {
		return uuid.Nil, fmt.Errorf("failed to update listing: %w", err)
	}

	txID, err := s.opener.OpenTransaction(ctx, tx, Deal{
		ListingID: listing.ID,
		BidID:     bid.ID,
		ClientID:  listing.ClientID,
		VendorID:  bid.VendorID,
		Amount:    bid.Amount,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to open transaction: %w", err)
	}

	if err := s.emitBid(ctx, tx, events.TypeBidAccepted, listing, bid); err != nil {
		return uuid.Nil, err
	}
	if err := s.emit(ctx, tx, events.TypeBiddingEnded, listing.ID, map[string]any{
		"listing_id":     listing.ID.String(),
		"client_id":      listing.ClientID.String(),
		"outcome":        OutcomeAwarded,
		"reason":         reason,
		"bid_id":         bid.ID.String(),
		"vendor_id":      bid.VendorID.String(),
		"amount":         bid.Amount,
		"transaction_id": txID.String(),
	}); err != nil {
		return uuid.Nil, err
	}
	return txID, nil
}

func (s *Service) recordClose(result *CloseResult) {
	if s.metrics == nil || result.Outcome == OutcomeAlreadyClosed {
		return
	}
	if result.Outcome == OutcomeNoBids {
		s.metrics.RecordBiddingClosed(OutcomeNoBids)
		return
	}
	s.metrics.RecordBiddingClosed("deadline")
}

func (s *Service) emitBid(ctx context.Context, tx pgx.Tx, eventType string, listing *listings.Listing, bid *Bid) error {
	return s.emit(ctx, tx, eventType, listing.ID, map[string]any{
		"bid_id":       bid.ID.String(),
		"listing_id":   listing.ID.String(),
		"client_id":    listing.ClientID.String(),
		"vendor_id":    bid.VendorID.String(),
		"amount":       bid.Amount,
		"status":       string(bid.Status),
		"title":        listing.Title(),
		"asking_price": listing.AskingPrice,
	})
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, aggregateID uuid.UUID, data map[string]any) error {
	event, err := events.NewOutboxEvent(eventType, aggregateID, data)
	if err != nil {
		return err
	}
	if err := s.outbox.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // Rollback if commit is not called
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
