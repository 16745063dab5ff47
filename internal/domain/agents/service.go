package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAgentNotFound       = errors.New("agent not found")
	ErrInvalidAvailability = errors.New("invalid availability")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RankForPickup ranks all agents for a pickup address.
func (s *Service) RankForPickup(ctx context.Context, city string, pickup Location) ([]Candidate, error) {
	all, err := s.repo.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return Rank(city, pickup, all), nil
}

func (s *Service) GetAgent(ctx context.Context, userID uuid.UUID) (*Agent, error) {
	agent, err := s.repo.GetAgent(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

func (s *Service) SetAvailability(ctx context.Context, userID uuid.UUID, availability Availability) error {
	if !availability.Valid() {
		return ErrInvalidAvailability
	}
	if err := s.repo.UpdateAvailability(ctx, userID, availability); err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return err
		}
		return fmt.Errorf("failed to update availability: %w", err)
	}
	return nil
}
