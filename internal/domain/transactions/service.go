package transactions

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
	"github.com/dirtsid3r/cellflip/pkg/auth"
	"github.com/dirtsid3r/cellflip/pkg/database"
	"github.com/dirtsid3r/cellflip/pkg/events"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   auth.Role
}

func (a Actor) admin() bool {
	return a.Role == auth.RoleAdmin
}

// Evidence kinds accepted by RequestEvidenceUpload.
const (
	EvidenceIdentity   = "identity"
	EvidenceInspection = "inspection"
	EvidenceHandover   = "handover"
)

// Deps are the collaborators of Service.
type Deps struct {
	TxManager   database.TransactionManager
	Repo        Repository
	Settlements SettlementRepository
	Listings    ListingStore
	Agents      AgentStore
	Directory   Directory
	Gates       Gates
	Outbox      events.OutboxWriter
	Evidence    EvidenceStorage
	Metrics     Metrics
}

// Service drives an accepted bid through pickup, verification and settlement.
type Service struct {
	Deps
	rates settlement.Rates
	now   func() time.Time
}

func NewService(deps Deps, rates settlement.Rates) (*Service, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Service{Deps: deps, rates: rates, now: time.Now}, nil
}

// OpenTransaction creates the transaction for an accepted bid inside the
// bidding engine's database transaction.
func (s *Service) OpenTransaction(ctx context.Context, tx pgx.Tx, deal bids.Deal) (uuid.UUID, error) {
	now := s.now()
	t := &Transaction{
		ID:         uuid.New(),
		ListingID:  deal.ListingID,
		BidID:      deal.BidID,
		ClientID:   deal.ClientID,
		VendorID:   deal.VendorID,
		BidAmount:  deal.Amount,
		Phase:      PhaseBidding,
		Status:     StatusPending,
		Stage:      StageAwaitingAgent,
		FinalOffer: deal.Amount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.CreateTransaction(ctx, tx, t); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return t.ID, nil
}

// Get returns a transaction visible to actor.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Transaction, error) {
	t, err := s.Repo.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if !actor.admin() && !t.IsParty(actor.UserID) {
		return nil, ErrForbidden
	}
	return t, nil
}

// ListMine returns the actor's transactions as client, vendor or agent.
func (s *Service) ListMine(ctx context.Context, actor Actor) ([]*Transaction, error) {
	found, err := s.Repo.ListForUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return found, nil
}

// RankAgents ranks agents for the transaction's pickup address.
func (s *Service) RankAgents(ctx context.Context, id uuid.UUID) ([]agents.Candidate, error) {
	t, err := s.Get(ctx, Actor{Role: auth.RoleAdmin}, id)
	if err != nil {
		return nil, err
	}
	listing, err := s.Listings.GetListing(ctx, t.ListingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	all, err := s.Agents.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	pickup := agents.Location{Latitude: listing.Pickup.Latitude, Longitude: listing.Pickup.Longitude}
	return agents.Rank(listing.Pickup.City, pickup, all), nil
}

// AssignAgent puts an agent in charge of pickup and verification.
func (s *Service) AssignAgent(ctx context.Context, id, agentID uuid.UUID) (*Transaction, error) {
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		agent, err := s.Agents.GetAgentForUpdate(ctx, tx, agentID)
		if err != nil {
			if errors.Is(err, agents.ErrAgentNotFound) {
				return err
			}
			return fmt.Errorf("failed to lock agent: %w", err)
		}
		if agent.Availability == agents.AvailabilityOffline {
			return ErrAgentUnavailable
		}
		if err := t.Advance(StageAgentAssigned, now); err != nil {
			return err
		}
		t.AgentID = &agent.UserID
		t.Phase = PhaseVerification
		t.Status = StatusInProgress

		if err := s.Agents.AdjustPickups(ctx, tx, agent.UserID, 1, 0); err != nil {
			return fmt.Errorf("failed to update agent load: %w", err)
		}
		return s.emit(ctx, tx, events.TypeAgentAssigned, t, map[string]any{
			"agent_id":    agent.UserID.String(),
			"agent_name":  agent.FullName,
			"agent_phone": agent.Phone,
		})
	})
}

// SchedulePickup records the agreed pickup time.
func (s *Service) SchedulePickup(ctx context.Context, actor Actor, id uuid.UUID, at time.Time) (*Transaction, error) {
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if err := s.requireAgent(t, actor); err != nil {
			return err
		}
		if !at.After(now) {
			return ErrPickupInPast
		}
		if err := t.Advance(StagePickupScheduled, now); err != nil {
			return err
		}
		t.PickupScheduledAt = &at
		return s.moveListing(ctx, tx, t.ListingID, listings.StatusPickupScheduled, now)
	})
}

// VerifyIdentity records the seller identity checks. Every check must pass.
func (s *Service) VerifyIdentity(ctx context.Context, actor Actor, id uuid.UUID, check IdentityCheck) (*Transaction, error) {
	if !check.Passed() {
		return nil, ErrIdentityNotConfirmed
	}
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if err := s.requireAgent(t, actor); err != nil {
			return err
		}
		if err := t.Advance(StageIdentityVerified, now); err != nil {
			return err
		}
		check.VerifiedAt = now
		t.Identity = &check
		return s.moveListing(ctx, tx, t.ListingID, listings.StatusVerificationInProgress, now)
	})
}

// InspectDevice records the physical inspection.
func (s *Service) InspectDevice(ctx context.Context, actor Actor, id uuid.UUID, in Inspection) (*Transaction, error) {
	if !in.ActualCondition.Valid() || in.BatteryHealth < 0 || in.BatteryHealth > 100 || len(in.PhotoKeys) == 0 {
		return nil, ErrInvalidInspection
	}
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if err := s.requireAgent(t, actor); err != nil {
			return err
		}
		if err := t.Advance(StageDeviceInspected, now); err != nil {
			return err
		}
		in.InspectedAt = now
		t.Inspection = &in
		return nil
	})
}

// CalculateDeductions prices the inspection against the accepted bid.
func (s *Service) CalculateDeductions(ctx context.Context, actor Actor, id uuid.UUID) (*Transaction, error) {
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if err := s.requireAgent(t, actor); err != nil {
			return err
		}
		if err := t.Advance(StageDeductionsCalc, now); err != nil {
			return err
		}
		listing, err := s.Listings.GetListing(ctx, t.ListingID)
		if err != nil {
			return fmt.Errorf("failed to get listing: %w", err)
		}
		result := CalculateDeductions(t.BidAmount, listing.Condition, *t.Inspection)
		t.Deductions = result.Deductions
		t.TotalDeductions = result.Total
		t.FinalOffer = result.FinalOffer
		return nil
	})
}

// SendFinalOffer sends the client a code to accept the final offer.
func (s *Service) SendFinalOffer(ctx context.Context, actor Actor, id uuid.UUID) (*Transaction, error) {
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if err := s.requireAgent(t, actor); err != nil {
			return err
		}
		if err := t.Advance(StageFinalOfferSent, now); err != nil {
			return err
		}
		return s.issueOfferGate(ctx, tx, t)
	})
}

// AcceptFinalOffer consumes the client's offer code. The verification record is final after this.
func (s *Service) AcceptFinalOffer(ctx context.Context, actor Actor, id, gateID uuid.UUID, code string) (*Transaction, error) {
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if actor.UserID != t.ClientID {
			return ErrForbidden
		}
		if err := t.Advance(StageCustomerAccepted, now); err != nil {
			return err
		}
		if err := s.consume(ctx, tx, t, t.OfferGateID, gateID, code, t.ClientID, otp.PurposeTransactionAccept); err != nil {
			return err
		}
		t.Phase = PhaseCompletion
		return s.emit(ctx, tx, events.TypeVerificationCompleted, t, map[string]any{
			"final_offer":      t.FinalOffer,
			"total_deductions": t.TotalDeductions,
			"bid_amount":       t.BidAmount,
		})
	})
}

// DeclineFinalOffer cancels the deal when the client refuses the final offer.
func (s *Service) DeclineFinalOffer(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Transaction, error) {
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if actor.UserID != t.ClientID {
			return ErrForbidden
		}
		if t.Status.Terminal() {
			return ErrTransactionClosed
		}
		if t.Stage != StageFinalOfferSent {
			return &StageError{Current: t.Stage, Wanted: StageFinalOfferSent}
		}
		t.Status = StatusCancelled
		t.DisputeReason = strings.TrimSpace(reason)
		t.UpdatedAt = now
		if err := s.releaseAgent(ctx, tx, t, 0); err != nil {
			return err
		}

		listing, err := s.lockListing(ctx, tx, t.ListingID)
		if err != nil {
			return err
		}
		if err := listing.TransitionTo(listings.StatusCancelled, now); err != nil {
			return err
		}
		listing.CancellationReason = "final offer declined"
		if err := s.Listings.UpdateListing(ctx, tx, listing); err != nil {
			return fmt.Errorf("failed to update listing: %w", err)
		}
		return s.emit(ctx, tx, events.TypeListingCancelled, t, map[string]any{
			"reason": listing.CancellationReason,
			"status": string(listing.Status),
		})
	})
}

// HandOverToVendor records delivery and sends the vendor a receipt code.
func (s *Service) HandOverToVendor(ctx context.Context, actor Actor, id uuid.UUID, photoKey string) (*Transaction, error) {
	if strings.TrimSpace(photoKey) == "" {
		return nil, ErrHandoverPhoto
	}
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if err := s.requireAgent(t, actor); err != nil {
			return err
		}
		if err := t.Advance(StageHandedOverToVendor, now); err != nil {
			return err
		}
		t.HandoverPhotoKey = photoKey
		return s.issueVendorGate(ctx, tx, t)
	})
}

// ConfirmVendorReceipt consumes the vendor's code and sends the client the completion code.
func (s *Service) ConfirmVendorReceipt(ctx context.Context, actor Actor, id, gateID uuid.UUID, code string) (*Transaction, error) {
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if actor.UserID != t.VendorID {
			return ErrForbidden
		}
		if err := t.Advance(StageVendorConfirmed, now); err != nil {
			return err
		}
		if err := s.consume(ctx, tx, t, t.VendorGateID, gateID, code, t.VendorID, otp.PurposeVendorReceipt); err != nil {
			return err
		}
		return s.issueCompletionGate(ctx, tx, t)
	})
}

// ConfirmCompletion consumes the client's completion code and settles the
// transaction. A retry after settlement returns the stored settlement.
func (s *Service) ConfirmCompletion(ctx context.Context, actor Actor, id, gateID uuid.UUID, code string, method settlement.PaymentMethod) (*settlement.Settlement, error) {
	if method == "" {
		method = settlement.PaymentUPI
	}
	if !method.Valid() {
		return nil, settlement.ErrUnknownMethod
	}

	var settled *settlement.Settlement
	var replay bool
	_, err := s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if actor.UserID != t.ClientID {
			return ErrForbidden
		}
		if t.Stage == StagePaid {
			existing, err := s.Settlements.GetSettlement(ctx, tx, t.ID)
			if err != nil {
				return fmt.Errorf("failed to load settlement: %w", err)
			}
			settled, replay = existing, true
			return nil
		}
		if err := t.Advance(StagePaid, now); err != nil {
			return err
		}
		if err := s.consume(ctx, tx, t, t.CompletionGateID, gateID, code, t.ClientID, otp.PurposeTransactionCompletion); err != nil {
			return err
		}

		breakdown, err := settlement.Compute(t.FinalOffer, s.rates)
		if err != nil {
			return err
		}
		settled = &settlement.Settlement{
			TransactionID: t.ID,
			Breakdown:     breakdown,
			PaymentMethod: method,
			SettledAt:     now,
		}
		if err := s.Settlements.SaveSettlement(ctx, tx, settled); err != nil {
			return fmt.Errorf("failed to save settlement: %w", err)
		}

		t.Status = StatusCompleted
		t.Phase = PhaseCompletion
		if err := s.releaseAgent(ctx, tx, t, 1); err != nil {
			return err
		}
		if err := s.moveListing(ctx, tx, t.ListingID, listings.StatusCompleted, now); err != nil {
			return err
		}
		return s.emit(ctx, tx, events.TypePaymentSettled, t, map[string]any{
			"final_offer":      breakdown.FinalOffer,
			"client_payout":    breakdown.ClientPayout,
			"agent_commission": breakdown.AgentCommission,
			"platform_fee":     breakdown.PlatformFee,
			"vendor_charge":    breakdown.VendorCharge,
			"payment_method":   string(method),
		})
	})
	if err != nil {
		return nil, err
	}
	if !replay && s.Metrics != nil {
		s.Metrics.RecordSettlement(settled.ClientPayout, settled.AgentCommission, settled.PlatformFee)
	}
	return settled, nil
}

// ResendCode re-issues the code the current stage is waiting on.
func (s *Service) ResendCode(ctx context.Context, actor Actor, id uuid.UUID) (*Transaction, error) {
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if !actor.admin() && !t.IsParty(actor.UserID) {
			return ErrForbidden
		}
		if t.Status.Terminal() {
			return ErrTransactionClosed
		}
		switch t.Stage {
		case StageFinalOfferSent:
			return s.issueOfferGate(ctx, tx, t)
		case StageHandedOverToVendor:
			return s.issueVendorGate(ctx, tx, t)
		case StageVendorConfirmed:
			return s.issueCompletionGate(ctx, tx, t)
		default:
			return ErrNothingToResend
		}
	})
}

// RaiseDispute freezes the transaction for manual resolution.
func (s *Service) RaiseDispute(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, listings.ErrReasonRequired
	}
	return s.mutate(ctx, id, func(tx pgx.Tx, t *Transaction, now time.Time) error {
		if !actor.admin() && !t.IsParty(actor.UserID) {
			return ErrForbidden
		}
		if t.Status.Terminal() {
			return ErrTransactionClosed
		}
		t.Status = StatusDisputed
		t.DisputeReason = reason
		t.UpdatedAt = now
		if err := s.releaseAgent(ctx, tx, t, 0); err != nil {
			return err
		}
		return s.emit(ctx, tx, events.TypeTransactionDisputed, t, map[string]any{
			"reason":    reason,
			"raised_by": actor.UserID.String(),
			"stage":     string(t.Stage),
		})
	})
}

// RequestEvidenceUpload issues a presigned URL for an agent photo.
func (s *Service) RequestEvidenceUpload(ctx context.Context, actor Actor, id uuid.UUID, kind, contentType string) (*listings.PresignedUpload, error) {
	ext, ok := listings.PhotoExtension(contentType)
	if !ok {
		return nil, listings.ErrUnsupportedPhotoType
	}
	if kind != EvidenceIdentity && kind != EvidenceInspection && kind != EvidenceHandover {
		return nil, fmt.Errorf("unknown evidence kind %q", kind)
	}

	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAgent(t, actor); err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, ErrTransactionClosed
	}

	key := path.Join("transactions", t.ID.String(), kind, uuid.NewString()+ext)
	upload, err := s.Evidence.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	return upload, nil
}

func (s *Service) requireAgent(t *Transaction, actor Actor) error {
	if actor.admin() || (actor.Role == auth.RoleAgent && t.IsAssignedAgent(actor.UserID)) {
		return nil
	}
	return ErrForbidden
}

func (s *Service) issueOfferGate(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	offer := t.FinalOffer
	gate, err := s.issue(ctx, tx, t, t.ClientID, otp.PurposeTransactionAccept, &offer)
	if err != nil {
		return err
	}
	t.OfferGateID = &gate.ID
	return nil
}

func (s *Service) issueVendorGate(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	gate, err := s.issue(ctx, tx, t, t.VendorID, otp.PurposeVendorReceipt, nil)
	if err != nil {
		return err
	}
	t.VendorGateID = &gate.ID
	return nil
}

func (s *Service) issueCompletionGate(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	offer := t.FinalOffer
	gate, err := s.issue(ctx, tx, t, t.ClientID, otp.PurposeTransactionCompletion, &offer)
	if err != nil {
		return err
	}
	t.CompletionGateID = &gate.ID
	return nil
}

func (s *Service) issue(ctx context.Context, tx pgx.Tx, t *Transaction, userID uuid.UUID, purpose otp.Purpose, amount *int64) (*otp.Gate, error) {
	phone, err := s.Directory.PhoneOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve phone: %w", err)
	}
	txID := t.ID
	gate, err := s.Gates.Issue(ctx, tx, otp.IssueCommand{
		Binding: otp.Binding{Phone: phone, Purpose: purpose, TransactionID: &txID},
		Amount:  amount,
	})
	if err != nil {
		return nil, err
	}
	if it, ok := tx.(*issuingTx); ok {
		it.issued = append(it.issued, gate)
	}
	return gate, nil
}

// releaseIssued frees the resend cooldowns of gates whose rows were rolled
// back. A cooldown that fails to release still lapses at its TTL.
func (s *Service) releaseIssued(ctx context.Context, gates []*otp.Gate) {
	for _, g := range gates {
		_ = s.Gates.Release(ctx, g)
	}
}

// consume checks gateID is the code issued for this step, then consumes it.
func (s *Service) consume(ctx context.Context, tx pgx.Tx, t *Transaction, expected *uuid.UUID, gateID uuid.UUID, code string, userID uuid.UUID, purpose otp.Purpose) error {
	if expected == nil || *expected != gateID {
		return ErrWrongGate
	}
	phone, err := s.Directory.PhoneOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve phone: %w", err)
	}
	txID := t.ID
	_, err = s.Gates.Consume(ctx, tx, otp.ConsumeCommand{
		GateID:  gateID,
		Code:    code,
		Binding: otp.Binding{Phone: phone, Purpose: purpose, TransactionID: &txID},
	})
	return err
}

// releaseAgent drops the agent's active pickup and adds completed to the total.
func (s *Service) releaseAgent(ctx context.Context, tx pgx.Tx, t *Transaction, completed int) error {
	if t.AgentID == nil {
		return nil
	}
	if err := s.Agents.AdjustPickups(ctx, tx, *t.AgentID, -1, completed); err != nil {
		return fmt.Errorf("failed to update agent load: %w", err)
	}
	return nil
}

func (s *Service) lockListing(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*listings.Listing, error) {
	listing, err := s.Listings.GetListingForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock listing: %w", err)
	}
	return listing, nil
}

func (s *Service) moveListing(ctx context.Context, tx pgx.Tx, id uuid.UUID, to listings.Status, now time.Time) error {
	listing, err := s.lockListing(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := listing.TransitionTo(to, now); err != nil {
		return err
	}
	if err := s.Listings.UpdateListing(ctx, tx, listing); err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return nil
}

// issuingTx remembers the gates issued inside one mutate call so their resend
// cooldowns can be released if the transaction never commits.
type issuingTx struct {
	pgx.Tx
	issued []*otp.Gate
}

// mutate locks the transaction, applies fn and persists the result. When fn
// fails with a code rejection that changed the gate, the gate update is
// committed and the transaction row is left untouched.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(tx pgx.Tx, t *Transaction, now time.Time) error) (*Transaction, error) {
	inner, err := s.TxManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &issuingTx{Tx: inner}
	committed := false
	defer func() {
		_ = tx.Rollback(ctx)
		if !committed {
			s.releaseIssued(ctx, tx.issued)
		}
	}()

	t, err := s.Repo.GetTransactionForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}
	before := t.Stage

	if err := fn(tx, t, s.now()); err != nil {
		if otp.PersistsOnRejection(err) {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
			}
			committed = true
		}
		return nil, err
	}

	if err := s.Repo.UpdateTransaction(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	if t.Stage != before && s.Metrics != nil {
		s.Metrics.RecordStage(string(t.Stage))
	}
	return t, nil
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, t *Transaction, data map[string]any) error {
	data["transaction_id"] = t.ID.String()
	data["listing_id"] = t.ListingID.String()
	data["client_id"] = t.ClientID.String()
	data["vendor_id"] = t.VendorID.String()
	if t.AgentID != nil {
		data["agent_id"] = t.AgentID.String()
	}
	event, err := events.NewOutboxEvent(eventType, t.ID, data)
	if err != nil {
		return err
	}
	if err := s.Outbox.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
