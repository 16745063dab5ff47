package events_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dirtsid3r/cellflip/pkg/events"
	"github.com/dirtsid3r/cellflip/pkg/testhelpers"
)

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) ClaimPending(ctx context.Context, tx pgx.Tx, limit int) ([]*events.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*events.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, at time.Time) error {
	args := m.Called(ctx, tx, ids, at)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, exchange string, event *events.OutboxEvent) error {
	args := m.Called(ctx, exchange, event)
	return args.Error(0)
}

func newRelay(repo *MockOutboxRepository, pub *MockPublisher, txm *testhelpers.FakeTxManager) *events.OutboxRelay {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return events.NewOutboxRelay(repo, pub, txm, 10, 0, events.DefaultExchange, logger)
}

func TestOutboxRelay_ProcessBatch_PublishesAndMarks(t *testing.T) {
	// Arrange
	repo := new(MockOutboxRepository)
	pub := new(MockPublisher)
	txm := &testhelpers.FakeTxManager{}

	first, err := events.NewOutboxEvent(events.TypeBidPlaced, uuid.New(), map[string]any{"amount": int64(100)})
	require.NoError(t, err)
	second, err := events.NewOutboxEvent(events.TypeBidAccepted, uuid.New(), map[string]any{"amount": int64(200)})
	require.NoError(t, err)

	repo.On("ClaimPending", mock.Anything, mock.Anything, 10).Return([]*events.OutboxEvent{first, second}, nil)
	pub.On("Publish", mock.Anything, events.DefaultExchange, first).Return(nil)
	pub.On("Publish", mock.Anything, events.DefaultExchange, second).Return(nil)
	repo.On("MarkPublished", mock.Anything, mock.Anything, []uuid.UUID{first.ID, second.ID}, mock.AnythingOfType("time.Time")).Return(nil)

	// Act
	n, err := newRelay(repo, pub, txm).ProcessBatch(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, txm.Last().Committed)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestOutboxRelay_ProcessBatch_PublishFailureKeepsEventsPending(t *testing.T) {
	// Arrange
	repo := new(MockOutboxRepository)
	pub := new(MockPublisher)
	txm := &testhelpers.FakeTxManager{}

	event, err := events.NewOutboxEvent(events.TypeOTPIssued, uuid.New(), map[string]any{})
	require.NoError(t, err)

	repo.On("ClaimPending", mock.Anything, mock.Anything, 10).Return([]*events.OutboxEvent{event}, nil)
	pub.On("Publish", mock.Anything, events.DefaultExchange, event).Return(errors.New("broker down"))

	// Act
	_, err = newRelay(repo, pub, txm).ProcessBatch(context.Background())

	// Assert
	require.Error(t, err)
	assert.False(t, txm.Last().Committed)
	assert.True(t, txm.Last().RolledBack)
	repo.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboxRelay_ProcessBatch_Empty(t *testing.T) {
	repo := new(MockOutboxRepository)
	pub := new(MockPublisher)
	txm := &testhelpers.FakeTxManager{}

	repo.On("ClaimPending", mock.Anything, mock.Anything, 10).Return([]*events.OutboxEvent{}, nil)

	n, err := newRelay(repo, pub, txm).ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
