package listings

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/pkg/database"
	"github.com/dirtsid3r/cellflip/pkg/events"
)

// Service errors
var (
	ErrListingNotFound      = errors.New("listing not found")
	ErrInvalidTransition    = errors.New("invalid listing status transition")
	ErrUnauthorized         = errors.New("unauthorized: only the owner can perform this action")
	ErrCannotCancel         = errors.New("cannot cancel listing: it already has bids")
	ErrReasonRequired       = errors.New("a reason is required")
	ErrUnsupportedPhotoType = errors.New("unsupported photo content type")
	ErrListingClosed        = errors.New("listing no longer accepts changes")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPhotos       = 12
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// PhotoExtension returns the object key extension for an accepted image type.
func PhotoExtension(contentType string) (string, bool) {
	ext, ok := photoExtensions[contentType]
	return ext, ok
}

// SubmitCommand represents a client submitting a device for sale
type SubmitCommand struct {
	ClientID      uuid.UUID
	Brand         string
	Model         string
	Variant       string
	Color         string
	Condition     Condition
	Description   string
	AskingPrice   int64
	IMEIs         []string
	Warranty      Warranty
	Accessories   Accessories
	BatteryHealth int
	Pickup        Address
}

// Config holds lifecycle timing.
type Config struct {
	BiddingWindow time.Duration
}

func DefaultConfig() Config {
	return Config{BiddingWindow: 24 * time.Hour}
}

// Service implements the listing lifecycle up to the end of bidding.
type Service struct {
	txManager database.TransactionManager
	repo      Repository
	outbox    events.OutboxWriter
	scheduler DeadlineScheduler
	photos    PhotoStorage
	cfg       Config
	now       func() time.Time
}

func NewService(
	txManager database.TransactionManager,
	repo Repository,
	outbox events.OutboxWriter,
	scheduler DeadlineScheduler,
	photos PhotoStorage,
	cfg Config,
) *Service {
	return &Service{
		txManager: txManager,
		repo:      repo,
		outbox:    outbox,
		scheduler: scheduler,
		photos:    photos,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit validates and stores a new listing in the submitted state.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Listing, error) {
	if err := validateSubmit(cmd); err != nil {
		return nil, err
	}

	now := s.now()
	listing := &Listing{
		ID:            uuid.New(),
		ClientID:      cmd.ClientID,
		Brand:         strings.TrimSpace(cmd.Brand),
		Model:         strings.TrimSpace(cmd.Model),
		Variant:       strings.TrimSpace(cmd.Variant),
		Color:         cmd.Color,
		Condition:     cmd.Condition,
		Description:   cmd.Description,
		AskingPrice:   cmd.AskingPrice,
		IMEIs:         cmd.IMEIs,
		Warranty:      cmd.Warranty,
		Accessories:   cmd.Accessories,
		BatteryHealth: cmd.BatteryHealth,
		Pickup:        cmd.Pickup,
		PhotoKeys:     []string{},
		Status:        StatusSubmitted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.CreateListing(ctx, tx, listing); err != nil {
			return fmt.Errorf("failed to create listing: %w", err)
		}
		return s.emit(ctx, tx, events.TypeListingSubmitted, listing, map[string]any{
			"title":        listing.Title(),
			"asking_price": listing.AskingPrice,
		})
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// GetListing retrieves a listing by ID
func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, ErrListingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// List browses listings. Without a status or owner filter only listings open
// for bidding are returned.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Listing, error) {
	if filter.Status == "" && filter.ClientID == nil {
		filter.Status = StatusBiddingActive
	}
	if filter.Sort == "" || !filter.Sort.Valid() {
		filter.Sort = SortNewest
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	found, err := s.repo.ListListings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return found, nil
}

// ListMine returns every listing owned by clientID regardless of status.
func (s *Service) ListMine(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Listing, error) {
	return s.List(ctx, ListFilter{ClientID: &clientID, Limit: limit, Offset: offset})
}

// StartReview moves a submitted listing under admin review.
func (s *Service) StartReview(ctx context.Context, listingID uuid.UUID) (*Listing, error) {
	return s.mutate(ctx, listingID, func(tx pgx.Tx, l *Listing, now time.Time) error {
		return l.TransitionTo(StatusUnderReview, now)
	})
}

// Approve accepts a listing and opens its bidding window from now.
// A submitted listing passes through under_review implicitly.
func (s *Service) Approve(ctx context.Context, listingID uuid.UUID) (*Listing, error) {
	return s.mutate(ctx, listingID, func(tx pgx.Tx, l *Listing, now time.Time) error {
		if l.Status == StatusSubmitted {
			if err := l.TransitionTo(StatusUnderReview, now); err != nil {
				return err
			}
		}
		if err := l.TransitionTo(StatusApproved, now); err != nil {
			return err
		}
		if err := l.TransitionTo(StatusBiddingActive, now); err != nil {
			return err
		}

		endsAt := now.Add(s.cfg.BiddingWindow)
		l.ApprovedAt = &now
		l.BiddingEndsAt = &endsAt

		// A task for an approval that later rolls back finds the listing not
		// bidding_active and does nothing.
		if err := s.scheduler.ScheduleBiddingClose(ctx, l.ID, endsAt); err != nil {
			return fmt.Errorf("failed to schedule bidding close: %w", err)
		}

		return s.emit(ctx, tx, events.TypeListingApproved, l, map[string]any{
			"title":           l.Title(),
			"asking_price":    l.AskingPrice,
			"bidding_ends_at": endsAt.UTC().Format(time.RFC3339),
		})
	})
}

// Reject declines a listing under review.
func (s *Service) Reject(ctx context.Context, listingID uuid.UUID, reason string) (*Listing, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.mutate(ctx, listingID, func(tx pgx.Tx, l *Listing, now time.Time) error {
		if l.Status == StatusSubmitted {
			if err := l.TransitionTo(StatusUnderReview, now); err != nil {
				return err
			}
		}
		if err := l.TransitionTo(StatusRejected, now); err != nil {
			return err
		}
		l.RejectionReason = reason
		return s.emit(ctx, tx, events.TypeListingRejected, l, map[string]any{"reason": reason})
	})
}

// Cancel withdraws a listing on behalf of its owner while no bids exist.
func (s *Service) Cancel(ctx context.Context, listingID, clientID uuid.UUID, reason string) (*Listing, error) {
	return s.mutate(ctx, listingID, func(tx pgx.Tx, l *Listing, now time.Time) error {
		if !l.IsOwnedBy(clientID) {
			return ErrUnauthorized
		}
		if l.Status == StatusBiddingActive {
			count, err := s.repo.CountBids(ctx, tx, l.ID)
			if err != nil {
				return fmt.Errorf("failed to count bids: %w", err)
			}
			if count > 0 {
				return ErrCannotCancel
			}
		}
		if l.Status != StatusSubmitted && l.Status != StatusUnderReview && l.Status != StatusBiddingActive {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, StatusCancelled)
		}
		if err := l.TransitionTo(StatusCancelled, now); err != nil {
			return err
		}
		l.CancellationReason = strings.TrimSpace(reason)
		return s.emit(ctx, tx, events.TypeListingCancelled, l, map[string]any{"reason": l.CancellationReason})
	})
}

// RequestPhotoUpload issues a presigned URL for one more listing photo.
func (s *Service) RequestPhotoUpload(ctx context.Context, listingID, clientID uuid.UUID, contentType string) (*PresignedUpload, error) {
	ext, ok := PhotoExtension(contentType)
	if !ok {
		return nil, ErrUnsupportedPhotoType
	}

	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsOwnedBy(clientID) {
		return nil, ErrUnauthorized
	}
	if listing.Status.Terminal() || len(listing.PhotoKeys) >= maxPhotos {
		return nil, ErrListingClosed
	}

	key := path.Join("listings", listing.ID.String(), uuid.NewString()+ext)
	upload, err := s.photos.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	if err := s.repo.AddPhotoKey(ctx, listing.ID, key); err != nil {
		return nil, fmt.Errorf("failed to record photo: %w", err)
	}
	return upload, nil
}

// mutate locks the listing, applies fn, persists and commits.
func (s *Service) mutate(ctx context.Context, listingID uuid.UUID, fn func(tx pgx.Tx, l *Listing, now time.Time) error) (*Listing, error) {
	var listing *Listing
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		l, err := s.repo.GetListingForUpdate(ctx, tx, listingID)
		if err != nil {
			if errors.Is(err, ErrListingNotFound) {
				return err
			}
			return fmt.Errorf("failed to lock listing: %w", err)
		}
		if err := fn(tx, l, s.now()); err != nil {
			return err
		}
		if err := s.repo.UpdateListing(ctx, tx, l); err != nil {
			return fmt.Errorf("failed to update listing: %w", err)
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, l *Listing, data map[string]any) error {
	data["listing_id"] = l.ID.String()
	data["client_id"] = l.ClientID.String()
	data["status"] = string(l.Status)
	event, err := events.NewOutboxEvent(eventType, l.ID, data)
	if err != nil {
		return err
	}
	if err := s.outbox.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
