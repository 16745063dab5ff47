package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/pkg/auth"
	"github.com/dirtsid3r/cellflip/pkg/database"
	"github.com/dirtsid3r/cellflip/pkg/events"
)

var (
	ErrInvalidPhone        = errors.New("phone number is required")
	ErrInvalidPurpose      = errors.New("unknown confirmation purpose")
	ErrResendCooldown      = errors.New("a code was sent recently, wait before requesting another")
	ErrGateNotFound        = errors.New("confirmation code not found")
	ErrGateBindingMismatch = errors.New("confirmation code was issued for a different action")
	ErrGateAlreadyUsed     = errors.New("confirmation code has already been used")
	ErrGateExpired         = errors.New("confirmation code has expired")
	ErrGateFailed          = errors.New("confirmation code is locked after too many attempts")
	ErrInvalidCode         = errors.New("confirmation code is incorrect")
)

// PersistsOnRejection reports whether a Consume error changed the gate row
// (attempt counted, gate expired or locked). Callers commit in that case
// before returning the error.
func PersistsOnRejection(err error) bool {
	return errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrGateExpired) || errors.Is(err, ErrGateFailed)
}

const codeDigits = 6

// Config holds gate timing.
type Config struct {
	TTL         time.Duration
	Cooldown    time.Duration
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{
		TTL:         10 * time.Minute,
		Cooldown:    30 * time.Second,
		MaxAttempts: 5,
	}
}

// IssueCommand requests a new code.
type IssueCommand struct {
	Binding
	Amount *int64
}

// ConsumeCommand verifies a code against the binding the caller expects.
type ConsumeCommand struct {
	GateID  uuid.UUID
	Code    string
	Binding Binding
}

// Service issues and consumes confirmation codes.
type Service struct {
	repo      Repository
	outbox    events.OutboxWriter
	cooldown  CooldownStore
	hasher    Hasher
	metrics   Metrics
	txManager database.TransactionManager
	cfg       Config

	now      func() time.Time
	generate func() (string, error)
}

func NewService(
	txManager database.TransactionManager,
	repo Repository,
	outbox events.OutboxWriter,
	cooldown CooldownStore,
	hasher Hasher,
	metrics Metrics,
	cfg Config,
) *Service {
	return &Service{
		repo:      repo,
		outbox:    outbox,
		cooldown:  cooldown,
		hasher:    hasher,
		metrics:   metrics,
		txManager: txManager,
		cfg:       cfg,
		now:       time.Now,
		generate:  generateCode,
	}
}

// Issue creates a gate inside tx, superseding any outstanding code for the same binding.
// The plaintext code leaves the service only through the otp.issued event.
// Callers whose tx rolls back after a successful Issue should call Release.
func (s *Service) Issue(ctx context.Context, tx pgx.Tx, cmd IssueCommand) (_ *Gate, err error) {
	if cmd.Phone == "" {
		return nil, ErrInvalidPhone
	}
	if !cmd.Purpose.Valid() {
		return nil, ErrInvalidPurpose
	}

	id := uuid.New()
	key := cooldownKey(cmd.Binding)
	ok, err := s.cooldown.Acquire(ctx, key, id.String(), s.cfg.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("failed to check resend cooldown: %w", err)
	}
	if !ok {
		return nil, ErrResendCooldown
	}
	defer func() {
		if err != nil {
			_ = s.cooldown.Release(ctx, key, id.String())
		}
	}()

	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return nil, fmt.Errorf("failed to hash code: %w", err)
	}

	if _, err := s.repo.ExpireIssued(ctx, tx, cmd.Binding); err != nil {
		return nil, fmt.Errorf("failed to supersede previous codes: %w", err)
	}

	now := s.now()
	gate := &Gate{
		ID:            id,
		Phone:         cmd.Phone,
		Purpose:       cmd.Purpose,
		TransactionID: cmd.TransactionID,
		Amount:        cmd.Amount,
		CodeHash:      hash,
		Status:        StatusIssued,
		ExpiresAt:     now.Add(s.cfg.TTL),
		CreatedAt:     now,
	}
	if err := s.repo.CreateGate(ctx, tx, gate); err != nil {
		return nil, fmt.Errorf("failed to create gate: %w", err)
	}

	data := map[string]any{
		"gate_id":    gate.ID.String(),
		"phone":      gate.Phone,
		"purpose":    string(gate.Purpose),
		"code":       code,
		"expires_at": gate.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if gate.TransactionID != nil {
		data["transaction_id"] = gate.TransactionID.String()
	}
	if gate.Amount != nil {
		data["amount"] = *gate.Amount
	}
	event, err := events.NewOutboxEvent(events.TypeOTPIssued, gate.ID, data)
	if err != nil {
		return nil, err
	}
	if err := s.outbox.SaveEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	s.metrics.RecordCodeIssued(string(gate.Purpose))
	return gate, nil
}

// IssueStandalone issues a code in its own transaction.
func (s *Service) IssueStandalone(ctx context.Context, cmd IssueCommand) (*Gate, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	gate, err := s.Issue(ctx, tx, cmd)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = s.Release(ctx, gate)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return gate, nil
}

// Release ends the resend cooldown started when gate was issued, so a caller
// whose transaction rolled back can ask for a new code straight away.
func (s *Service) Release(ctx context.Context, gate *Gate) error {
	return s.cooldown.Release(ctx, cooldownKey(gate.Binding()), gate.ID.String())
}

// Consume verifies a code inside tx. The gate row is locked, so a code is
// consumed at most once even under concurrent attempts. On errors for which
// PersistsOnRejection is true the gate row has been updated in tx.
func (s *Service) Consume(ctx context.Context, tx pgx.Tx, cmd ConsumeCommand) (*Gate, error) {
	gate, err := s.repo.GetGateForUpdate(ctx, tx, cmd.GateID)
	if err != nil {
		if errors.Is(err, ErrGateNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load gate: %w", err)
	}

	purpose := string(gate.Purpose)
	if !gate.Matches(cmd.Binding) {
		s.metrics.RecordCodeVerification(purpose, "binding_mismatch")
		return nil, ErrGateBindingMismatch
	}

	switch gate.Status {
	case StatusVerified:
		s.metrics.RecordCodeVerification(purpose, "replayed")
		return nil, ErrGateAlreadyUsed
	case StatusExpired:
		return nil, ErrGateExpired
	case StatusFailed:
		return nil, ErrGateFailed
	}

	now := s.now()
	if gate.ExpiredAt(now) {
		gate.Status = StatusExpired
		if err := s.repo.UpdateGate(ctx, tx, gate); err != nil {
			return nil, fmt.Errorf("failed to expire gate: %w", err)
		}
		s.metrics.RecordCodeVerification(purpose, "expired")
		return nil, ErrGateExpired
	}

	match, err := s.hasher.Verify(gate.CodeHash, cmd.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to verify code: %w", err)
	}
	if !match {
		gate.Attempts++
		rejection := ErrInvalidCode
		if gate.Attempts >= s.cfg.MaxAttempts {
			gate.Status = StatusFailed
			rejection = ErrGateFailed
		}
		if err := s.repo.UpdateGate(ctx, tx, gate); err != nil {
			return nil, fmt.Errorf("failed to record attempt: %w", err)
		}
		s.metrics.RecordCodeVerification(purpose, "invalid")
		return nil, rejection
	}

	gate.Status = StatusVerified
	gate.VerifiedAt = &now
	if err := s.repo.UpdateGate(ctx, tx, gate); err != nil {
		return nil, fmt.Errorf("failed to mark gate verified: %w", err)
	}
	s.metrics.RecordCodeVerification(purpose, "verified")
	return gate, nil
}

// Verify consumes a code in its own transaction.
func (s *Service) Verify(ctx context.Context, cmd ConsumeCommand) (*Gate, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	gate, err := s.Consume(ctx, tx, cmd)
	if err != nil {
		if PersistsOnRejection(err) {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
			}
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return gate, nil
}

func cooldownKey(b Binding) string {
	tx := "-"
	if b.TransactionID != nil {
		tx = b.TransactionID.String()
	}
	return fmt.Sprintf("otp:cooldown:%s:%s:%s", b.Phone, b.Purpose, tx)
}

// generateCode returns a uniformly random zero-padded 6 digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// Argon2Hasher hashes codes with argon2id.
type Argon2Hasher struct {
	Params auth.Argon2Params
}

func NewArgon2Hasher() Argon2Hasher {
	return Argon2Hasher{Params: auth.DefaultArgon2Params}
}

func (h Argon2Hasher) Hash(code string) (string, error) {
	return auth.HashSecretWith(h.Params, code)
}

func (h Argon2Hasher) Verify(hash, code string) (bool, error) {
	return auth.VerifySecret(hash, code)
}
