package agents

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists agent profiles.
type Repository interface {
	CreateAgent(ctx context.Context, tx pgx.Tx, agent *Agent) error
	GetAgent(ctx context.Context, userID uuid.UUID) (*Agent, error)
	GetAgentForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)
	UpdateAvailability(ctx context.Context, userID uuid.UUID, availability Availability) error

	// AdjustPickups adds the deltas to active and total pickup counters.
	AdjustPickups(ctx context.Context, tx pgx.Tx, userID uuid.UUID, activeDelta, totalDelta int) error
}
