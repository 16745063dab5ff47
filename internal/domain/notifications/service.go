// Package notifications turns marketplace events into WhatsApp messages.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/dirtsid3r/cellflip/internal/domain/users"
	"github.com/dirtsid3r/cellflip/pkg/database"
	"github.com/dirtsid3r/cellflip/pkg/events"
)

// ErrPermanent marks events that can never be processed and must not be retried.
var ErrPermanent = errors.New("event cannot be processed")

type Service struct {
	txManager database.TransactionManager
	processed ProcessedEvents
	directory Directory
	sender    Sender
	logger    *slog.Logger
}

func NewService(txManager database.TransactionManager, processed ProcessedEvents, directory Directory, sender Sender, logger *slog.Logger) *Service {
	return &Service{
		txManager: txManager,
		processed: processed,
		directory: directory,
		sender:    sender,
		logger:    logger,
	}
}

// Handle delivers the messages for one event payload, at most once per event ID
// once it has committed. A crash between sending and committing resends.
func (s *Service) Handle(ctx context.Context, payload []byte) error {
	env, err := events.DecodeEnvelope(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	done, err := s.processed.IsEventProcessed(ctx, tx, env.EventID)
	if err != nil {
		return err
	}
	if done {
		s.logger.Info("event already processed", "event_id", env.EventID, "event_type", env.EventType)
		return nil
	}

	msgs, err := Compose(ctx, env, s.directory)
	switch {
	case errors.Is(err, events.ErrMalformedEnvelope), errors.Is(err, users.ErrUserNotFound):
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	case err != nil:
		return err
	}

	for _, msg := range msgs {
		if err := s.sender.Send(ctx, msg); err != nil {
			return fmt.Errorf("failed to send %s notification: %w", env.EventType, err)
		}
	}

	return s.finish(ctx, tx, env, len(msgs))
}

func (s *Service) finish(ctx context.Context, tx pgx.Tx, env *events.Envelope, sent int) error {
	if err := s.processed.MarkEventProcessed(ctx, tx, env.EventID, env.EventType); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Info("event processed", "event_id", env.EventID, "event_type", env.EventType, "messages", sent)
	return nil
}
