package transactions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
)

// Repository defines the interface for transaction persistence
type Repository interface {
	CreateTransaction(ctx context.Context, tx pgx.Tx, t *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetTransactionForUpdate locks the row; every stage change goes through it.
	GetTransactionForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Transaction, error)

	UpdateTransaction(ctx context.Context, tx pgx.Tx, t *Transaction) error

	// ListForUser returns transactions where userID is client, vendor or agent.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Transaction, error)
}

// SettlementRepository stores at most one settlement per transaction.
type SettlementRepository interface {
	SaveSettlement(ctx context.Context, tx pgx.Tx, s *settlement.Settlement) error

	// GetSettlement returns ErrSettlementNotFound when none exists.
	GetSettlement(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID) (*settlement.Settlement, error)
}

// ListingStore is the listing access the verification flow needs.
type ListingStore interface {
	GetListing(ctx context.Context, id uuid.UUID) (*listings.Listing, error)
	GetListingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*listings.Listing, error)
	UpdateListing(ctx context.Context, tx pgx.Tx, listing *listings.Listing) error
}

// AgentStore is the agent access the verification flow needs.
type AgentStore interface {
	GetAgentForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*agents.Agent, error)
	ListAgents(ctx context.Context) ([]*agents.Agent, error)
	AdjustPickups(ctx context.Context, tx pgx.Tx, userID uuid.UUID, activeDelta, totalDelta int) error
}

// Directory resolves the phone number codes are sent to.
type Directory interface {
	PhoneOf(ctx context.Context, userID uuid.UUID) (string, error)
}

// Gates issues and consumes confirmation codes inside the caller's transaction.
type Gates interface {
	Issue(ctx context.Context, tx pgx.Tx, cmd otp.IssueCommand) (*otp.Gate, error)
	Consume(ctx context.Context, tx pgx.Tx, cmd otp.ConsumeCommand) (*otp.Gate, error)
	// Release ends the resend cooldown of a gate whose transaction rolled back.
	Release(ctx context.Context, gate *otp.Gate) error
}

// EvidenceStorage issues upload URLs for ID, inspection and handover photos.
type EvidenceStorage interface {
	PresignUpload(ctx context.Context, key, contentType string) (*listings.PresignedUpload, error)
}

// Metrics records verification activity.
type Metrics interface {
	RecordStage(stage string)
	RecordSettlement(clientPayout, agentCommission, platformFee int64)
}
