package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Message is one WhatsApp text to a phone number.
type Message struct {
	To   string
	Text string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Directory resolves user IDs carried in events to phone numbers.
type Directory interface {
	PhoneOf(ctx context.Context, userID uuid.UUID) (string, error)
}

// ProcessedEvents tracks events already handled.
type ProcessedEvents interface {
	IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error)
	MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, eventType string) error
}
