package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dirtsid3r/cellflip/internal/adapters/scheduler"
	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

type MockCloser struct {
	mock.Mock
}

func (m *MockCloser) CloseBidding(ctx context.Context, listingID uuid.UUID) (*bids.CloseResult, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bids.CloseResult), args.Error(1)
}

func (m *MockCloser) CloseExpired(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func TestClient_ScheduleBiddingClose(t *testing.T) {
	listingID := uuid.New()
	at := time.Now().Add(24 * time.Hour)

	t.Run("EnqueuesAtDeadline", func(t *testing.T) {
		enq := new(MockEnqueuer)
		enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
			return task.Type() == scheduler.TypeBiddingClose
		}), mock.Anything).Return(&asynq.TaskInfo{ID: "bidding-close:" + listingID.String()}, nil)

		err := scheduler.NewClient(enq, discard).ScheduleBiddingClose(context.Background(), listingID, at)

		require.NoError(t, err)
		enq.AssertExpectations(t)
	})

	t.Run("DuplicateIsNotAnError", func(t *testing.T) {
		enq := new(MockEnqueuer)
		enq.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, asynq.ErrTaskIDConflict)

		err := scheduler.NewClient(enq, discard).ScheduleBiddingClose(context.Background(), listingID, at)

		assert.NoError(t, err)
	})

	t.Run("BrokerFailurePropagates", func(t *testing.T) {
		enq := new(MockEnqueuer)
		enq.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

		err := scheduler.NewClient(enq, discard).ScheduleBiddingClose(context.Background(), listingID, at)

		assert.Error(t, err)
	})
}

func TestProcessor_HandleBiddingClose(t *testing.T) {
	listingID := uuid.New()

	tests := []struct {
		name      string
		closeErr  error
		wantErr   bool
		skipRetry bool
	}{
		{name: "Closed"},
		{name: "UnknownListingIsNotRetried", closeErr: listings.ErrListingNotFound, wantErr: true, skipRetry: true},
		{name: "StillOpenIsRetried", closeErr: bids.ErrBiddingStillOpen, wantErr: true},
		{name: "DatabaseErrorIsRetried", closeErr: errors.New("connection reset"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closer := new(MockCloser)
			if tt.closeErr != nil {
				closer.On("CloseBidding", mock.Anything, listingID).Return(nil, tt.closeErr)
			} else {
				closer.On("CloseBidding", mock.Anything, listingID).
					Return(&bids.CloseResult{ListingID: listingID, Outcome: bids.OutcomeAwarded}, nil)
			}
			task, err := scheduler.NewBiddingCloseTask(listingID)
			require.NoError(t, err)

			err = scheduler.NewProcessor(closer, 10, discard).HandleBiddingClose(context.Background(), task)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}

	t.Run("MalformedPayloadIsNotRetried", func(t *testing.T) {
		closer := new(MockCloser)
		task := asynq.NewTask(scheduler.TypeBiddingClose, []byte("{"))

		err := scheduler.NewProcessor(closer, 10, discard).HandleBiddingClose(context.Background(), task)

		assert.ErrorIs(t, err, asynq.SkipRetry)
		closer.AssertNotCalled(t, "CloseBidding", mock.Anything, mock.Anything)
	})
}

func TestProcessor_HandleBiddingSweep(t *testing.T) {
	closer := new(MockCloser)
	closer.On("CloseExpired", mock.Anything, 25).Return(3, nil).Once()
	closer.On("CloseExpired", mock.Anything, 25).Return(1, errors.New("boom")).Once()
	p := scheduler.NewProcessor(closer, 25, discard)

	assert.NoError(t, p.HandleBiddingSweep(context.Background(), asynq.NewTask(scheduler.TypeBiddingSweep, nil)))
	assert.Error(t, p.HandleBiddingSweep(context.Background(), asynq.NewTask(scheduler.TypeBiddingSweep, nil)))
	closer.AssertExpectations(t)
}
