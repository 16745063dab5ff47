package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/pkg/auth"
	"github.com/dirtsid3r/cellflip/pkg/database"
	"github.com/dirtsid3r/cellflip/pkg/events"
)

var (
	ErrUserAlreadyExists = errors.New("user with this phone number already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRoleNotAllowed    = errors.New("role cannot be assigned this way")
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// NormalizePhone strips spaces, dashes and brackets from a phone number.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

type RegisterCommand struct {
	Phone    string
	FullName string
	City     string
	Role     auth.Role
}

// StaffCommand creates an agent or admin. Location applies to agents only.
type StaffCommand struct {
	Phone    string
	FullName string
	City     string
	Role     auth.Role
	Location agents.Location
}

type Service struct {
	userRepo  UserRepository
	agentRepo AgentRepository
	outbox    events.OutboxWriter
	gate      LoginGate
	signer    TokenIssuer
	txManager database.TransactionManager
}

func NewService(
	userRepo UserRepository,
	agentRepo AgentRepository,
	outbox events.OutboxWriter,
	gate LoginGate,
	signer TokenIssuer,
	txManager database.TransactionManager,
) *Service {
	return &Service{
		userRepo:  userRepo,
		agentRepo: agentRepo,
		outbox:    outbox,
		gate:      gate,
		signer:    signer,
		txManager: txManager,
	}
}

// Register signs up a client or vendor.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	if cmd.Role != auth.RoleClient && cmd.Role != auth.RoleVendor {
		return nil, ErrRoleNotAllowed
	}
	return s.create(ctx, cmd.Phone, cmd.FullName, cmd.City, cmd.Role, nil)
}

// CreateStaff adds an agent or admin. Agents get an availability profile.
func (s *Service) CreateStaff(ctx context.Context, cmd StaffCommand) (*User, error) {
	if cmd.Role != auth.RoleAgent && cmd.Role != auth.RoleAdmin {
		return nil, ErrRoleNotAllowed
	}
	var withProfile func(tx pgx.Tx, user *User) error
	if cmd.Role == auth.RoleAgent {
		withProfile = func(tx pgx.Tx, user *User) error {
			return s.agentRepo.CreateAgent(ctx, tx, &agents.Agent{
				UserID:       user.ID,
				FullName:     user.FullName,
				Phone:        user.Phone,
				City:         user.City,
				Location:     cmd.Location,
				Availability: agents.AvailabilityAvailable,
				UpdatedAt:    user.CreatedAt,
			})
		}
	}
	return s.create(ctx, cmd.Phone, cmd.FullName, cmd.City, cmd.Role, withProfile)
}

// EnsureAdmin creates the bootstrap admin unless the phone is already registered.
func (s *Service) EnsureAdmin(ctx context.Context, phone, fullName string) (*User, error) {
	existing, err := s.userRepo.GetUserByPhone(ctx, NormalizePhone(phone))
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	return s.CreateStaff(ctx, StaffCommand{Phone: phone, FullName: fullName, Role: auth.RoleAdmin})
}

// RequestLoginCode sends a LOGIN code to a registered phone.
func (s *Service) RequestLoginCode(ctx context.Context, phone string) (*otp.Gate, error) {
	phone = NormalizePhone(phone)
	user, err := s.userRepo.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.gate.IssueStandalone(ctx, otp.IssueCommand{
		Binding: otp.Binding{Phone: user.Phone, Purpose: otp.PurposeLogin},
	})
}

// VerifyLoginCode consumes a LOGIN code and issues an access token.
func (s *Service) VerifyLoginCode(ctx context.Context, phone string, gateID uuid.UUID, code string) (*Session, error) {
	phone = NormalizePhone(phone)
	user, err := s.userRepo.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if _, err := s.gate.Verify(ctx, otp.ConsumeCommand{
		GateID:  gateID,
		Code:    code,
		Binding: otp.Binding{Phone: user.Phone, Purpose: otp.PurposeLogin},
	}); err != nil {
		return nil, err
	}

	token, err := s.signer.IssueAccessToken(user.ID, user.Phone, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &Session{User: user, AccessToken: token.Token, ExpiresAt: token.Expiry}, nil
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// PhoneOf returns the phone number codes for userID are sent to.
func (s *Service) PhoneOf(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Phone, nil
}

func (s *Service) create(ctx context.Context, phone, fullName, city string, role auth.Role, withProfile func(tx pgx.Tx, user *User) error) (*User, error) {
	phone = NormalizePhone(phone)
	if err := validateUser(phone, fullName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	existing, err := s.userRepo.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	now := time.Now()
	user := &User{
		ID:        uuid.New(),
		Phone:     phone,
		FullName:  strings.TrimSpace(fullName),
		City:      strings.TrimSpace(city),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.userRepo.CreateUser(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if withProfile != nil {
		if err := withProfile(tx, user); err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
	}

	event, err := events.NewOutboxEvent(events.TypeUserRegistered, user.ID, map[string]any{
		"user_id":   user.ID.String(),
		"phone":     user.Phone,
		"full_name": user.FullName,
		"role":      string(user.Role),
	})
	if err != nil {
		return nil, err
	}
	if err := s.outbox.SaveEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to create outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

func validateUser(phone, fullName string) error {
	if !phonePattern.MatchString(phone) {
		return errors.New("phone number must have 10 to 15 digits")
	}
	if strings.TrimSpace(fullName) == "" {
		return errors.New("full name cannot be empty")
	}
	return nil
}
