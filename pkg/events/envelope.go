package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Event types published by the marketplace.
const (
	TypeUserRegistered        = "user.registered"
	TypeListingSubmitted      = "listing.submitted"
	TypeListingApproved       = "listing.approved"
	TypeListingRejected       = "listing.rejected"
	TypeListingCancelled      = "listing.cancelled"
	TypeBidPlaced             = "bid.placed"
	TypeBidAccepted           = "bid.accepted"
	TypeBiddingEnded          = "bidding.ended"
	TypeAgentAssigned         = "agent.assigned"
	TypeOTPIssued             = "otp.issued"
	TypeVerificationCompleted = "verification.completed"
	TypePaymentSettled        = "payment.settled"
	TypeTransactionDisputed   = "transaction.disputed"
)

var ErrMalformedEnvelope = errors.New("malformed event envelope")

// Envelope is the decoded form of an event payload.
type Envelope struct {
	EventID     uuid.UUID
	EventType   string
	AggregateID uuid.UUID
	OccurredAt  time.Time
	Data        map[string]any
}

// NewOutboxEvent encodes data as a protobuf Struct envelope and returns a pending outbox row.
// Values in data must be representable by structpb (strings, bools, numbers, nested maps and slices).
func NewOutboxEvent(eventType string, aggregateID uuid.UUID, data map[string]any) (*OutboxEvent, error) {
	now := time.Now().UTC()
	id := uuid.New()

	body, err := structpb.NewStruct(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event data: %w", err)
	}

	envelope := &structpb.Struct{Fields: map[string]*structpb.Value{
		"event_id":     structpb.NewStringValue(id.String()),
		"event_type":   structpb.NewStringValue(eventType),
		"aggregate_id": structpb.NewStringValue(aggregateID.String()),
		"occurred_at":  structpb.NewStringValue(timestamppb.New(now).AsTime().Format(time.RFC3339Nano)),
		"data":         structpb.NewStructValue(body),
	}}

	payload, err := proto.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &OutboxEvent{
		ID:          id,
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      OutboxStatusPending,
		CreatedAt:   now,
	}, nil
}

// DecodeEnvelope parses a payload produced by NewOutboxEvent.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	fields := st.GetFields()
	eventID, err := uuid.Parse(fields["event_id"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: event_id: %v", ErrMalformedEnvelope, err)
	}
	aggregateID, err := uuid.Parse(fields["aggregate_id"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate_id: %v", ErrMalformedEnvelope, err)
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, fields["occurred_at"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: occurred_at: %v", ErrMalformedEnvelope, err)
	}

	data := map[string]any{}
	if s := fields["data"].GetStructValue(); s != nil {
		data = s.AsMap()
	}

	return &Envelope{
		EventID:     eventID,
		EventType:   fields["event_type"].GetStringValue(),
		AggregateID: aggregateID,
		OccurredAt:  occurredAt,
		Data:        data,
	}, nil
}

// String returns a string field from Data, or "" when absent.
func (e *Envelope) String(key string) string {
	v, _ := e.Data[key].(string)
	return v
}

// Int64 returns a numeric field from Data. structpb carries numbers as float64.
func (e *Envelope) Int64(key string) int64 {
	v, _ := e.Data[key].(float64)
	return int64(v)
}
