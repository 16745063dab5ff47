package otp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists gates. All writes happen inside the caller's transaction.
type Repository interface {
	CreateGate(ctx context.Context, tx pgx.Tx, gate *Gate) error

	// GetGateForUpdate locks the gate row so a code is consumed at most once.
	GetGateForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Gate, error)

	UpdateGate(ctx context.Context, tx pgx.Tx, gate *Gate) error

	// ExpireIssued marks every ISSUED gate with the same binding as EXPIRED.
	ExpireIssued(ctx context.Context, tx pgx.Tx, b Binding) (int64, error)
}

// CooldownStore grants at most one key per ttl window.
type CooldownStore interface {
	// Acquire returns false when key is still cooling down. holder owns the
	// cooldown it starts.
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	// Release ends the cooldown on key if holder still owns it.
	Release(ctx context.Context, key, holder string) error
}

// Hasher hashes codes at rest.
type Hasher interface {
	Hash(code string) (string, error)
	Verify(hash, code string) (bool, error)
}

// Metrics records gate activity.
type Metrics interface {
	RecordCodeIssued(purpose string)
	RecordCodeVerification(purpose, result string)
}
