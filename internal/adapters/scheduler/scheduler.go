// Package scheduler closes bidding windows with asynq: a delayed task per
// listing at its deadline, plus a periodic sweep for anything missed.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
)

const (
	TypeBiddingClose = "bidding:close"
	TypeBiddingSweep = "bidding:sweep"

	QueueCritical = "critical"
	QueueDefault  = "default"
)

// BiddingClosePayload is the body of a bidding:close task.
type BiddingClosePayload struct {
	ListingID uuid.UUID `json:"listing_id"`
}

// NewBiddingCloseTask builds the close task for a listing.
func NewBiddingCloseTask(listingID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(BiddingClosePayload{ListingID: listingID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeBiddingClose, payload), nil
}

func closeTaskID(listingID uuid.UUID) string {
	return "bidding-close:" + listingID.String()
}

// Enqueuer is the part of asynq.Client used to schedule tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client implements listings.DeadlineScheduler.
type Client struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

func NewClient(enqueuer Enqueuer, logger *slog.Logger) *Client {
	return &Client{enqueuer: enqueuer, logger: logger}
}

// ScheduleBiddingClose enqueues the close task to run at the deadline.
// Scheduling the same listing twice keeps the first task.
func (c *Client) ScheduleBiddingClose(ctx context.Context, listingID uuid.UUID, at time.Time) error {
	task, err := NewBiddingCloseTask(listingID)
	if err != nil {
		return err
	}
	info, err := c.enqueuer.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.TaskID(closeTaskID(listingID)),
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(10),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Info("bidding close already scheduled", "listing_id", listingID)
			return nil
		}
		return fmt.Errorf("failed to enqueue bidding close: %w", err)
	}
	c.logger.Info("scheduled bidding close", "listing_id", listingID, "task_id", info.ID, "process_at", at)
	return nil
}

// Closer is the bidding engine as seen by the task handlers.
type Closer interface {
	CloseBidding(ctx context.Context, listingID uuid.UUID) (*bids.CloseResult, error)
	CloseExpired(ctx context.Context, limit int) (int, error)
}

// Processor handles scheduled bidding tasks.
type Processor struct {
	closer    Closer
	sweepSize int
	logger    *slog.Logger
}

func NewProcessor(closer Closer, sweepSize int, logger *slog.Logger) *Processor {
	if sweepSize <= 0 {
		sweepSize = 100
	}
	return &Processor{closer: closer, sweepSize: sweepSize, logger: logger}
}

// Register adds the processor's handlers to mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeBiddingClose, p.HandleBiddingClose)
	mux.HandleFunc(TypeBiddingSweep, p.HandleBiddingSweep)
}

func (p *Processor) HandleBiddingClose(ctx context.Context, t *asynq.Task) error {
	var payload BiddingClosePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal bidding close payload: %v: %w", err, asynq.SkipRetry)
	}

	result, err := p.closer.CloseBidding(ctx, payload.ListingID)
	switch {
	case errors.Is(err, listings.ErrListingNotFound):
		p.logger.Warn("bidding close for unknown listing", "listing_id", payload.ListingID)
		return fmt.Errorf("listing %s not found: %w", payload.ListingID, asynq.SkipRetry)
	case errors.Is(err, bids.ErrBiddingStillOpen):
		// Worker clock is behind the deadline; retry later.
		return err
	case err != nil:
		return fmt.Errorf("failed to close bidding: %w", err)
	}

	p.logger.Info("bidding closed",
		"listing_id", payload.ListingID,
		"outcome", result.Outcome,
	)
	return nil
}

func (p *Processor) HandleBiddingSweep(ctx context.Context, _ *asynq.Task) error {
	n, err := p.closer.CloseExpired(ctx, p.sweepSize)
	if n > 0 {
		p.logger.Info("sweep closed listings", "count", n)
	}
	if err != nil {
		return fmt.Errorf("sweep failed after %d listings: %w", n, err)
	}
	return nil
}

// NewServer configures the asynq server that runs the processor.
func NewServer(opt asynq.RedisConnOpt, concurrency int, logger *slog.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", "type", task.Type(), "error", err)
		}),
	})
}

// NewSweepScheduler registers the periodic sweep on spec, a cron expression
// or "@every <duration>".
func NewSweepScheduler(opt asynq.RedisConnOpt, spec string) (*asynq.Scheduler, error) {
	s := asynq.NewScheduler(opt, nil)
	if _, err := s.Register(spec, asynq.NewTask(TypeBiddingSweep, nil), asynq.Queue(QueueDefault), asynq.Unique(time.Minute)); err != nil {
		return nil, fmt.Errorf("failed to register sweep: %w", err)
	}
	return s, nil
}
