package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/pkg/auth"
)

// UserRepository looks users up by ID or phone. Lookups return (nil, nil) when no user matches.
type UserRepository interface {
	CreateUser(ctx context.Context, tx pgx.Tx, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
}

type AgentRepository interface {
	CreateAgent(ctx context.Context, tx pgx.Tx, agent *agents.Agent) error
}

// LoginGate issues and verifies LOGIN codes in their own transactions.
type LoginGate interface {
	IssueStandalone(ctx context.Context, cmd otp.IssueCommand) (*otp.Gate, error)
	Verify(ctx context.Context, cmd otp.ConsumeCommand) (*otp.Gate, error)
}

type TokenIssuer interface {
	IssueAccessToken(userID uuid.UUID, phone string, role auth.Role) (*auth.AccessToken, error)
}
