package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	pkgevents "github.com/dirtsid3r/cellflip/pkg/events"
)

// Queues, one per consuming concern.
const (
	NotificationQueue = "cellflip_notifications"
	VendorStatsQueue  = "cellflip_vendor_stats"
)

// notificationKeys are the event types bound to NotificationQueue.
var notificationKeys = []string{
	pkgevents.TypeUserRegistered,
	pkgevents.TypeOTPIssued,
	"listing.*",
	"bid.*",
	pkgevents.TypeBiddingEnded,
	pkgevents.TypeAgentAssigned,
	pkgevents.TypeVerificationCompleted,
	pkgevents.TypePaymentSettled,
	pkgevents.TypeTransactionDisputed,
}

var vendorStatsKeys = []string{
	pkgevents.TypeBidPlaced,
	pkgevents.TypeBidAccepted,
	pkgevents.TypePaymentSettled,
}

// Handler processes one delivery body. Errors wrapping permanent are dropped,
// anything else is requeued.
type Handler interface {
	Handle(ctx context.Context, payload []byte) error
}

// Consumer feeds the events bound to one durable queue to a Handler.
type Consumer struct {
	conn        *amqp.Connection
	queue       string
	routingKeys []string
	handler     Handler
	permanent   error
	prefetch    int
	logger      *slog.Logger
}

func NewConsumer(conn *amqp.Connection, queue string, routingKeys []string, handler Handler, permanent error, logger *slog.Logger) *Consumer {
	return &Consumer{
		conn:        conn,
		queue:       queue,
		routingKeys: routingKeys,
		handler:     handler,
		permanent:   permanent,
		prefetch:    16,
		logger:      logger.With("queue", queue),
	}
}

// NewNotificationConsumer feeds marketplace events to the notifier.
func NewNotificationConsumer(conn *amqp.Connection, handler Handler, permanent error, logger *slog.Logger) *Consumer {
	return NewConsumer(conn, NotificationQueue, notificationKeys, handler, permanent, logger)
}

// NewVendorStatsConsumer feeds bid and settlement events to the vendor stats projection.
func NewVendorStatsConsumer(conn *amqp.Connection, handler Handler, permanent error, logger *slog.Logger) *Consumer {
	return NewConsumer(conn, VendorStatsQueue, vendorStatsKeys, handler, permanent, logger)
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setup(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	err := c.handler.Handle(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
	case c.permanent != nil && errors.Is(err, c.permanent):
		c.logger.Error("dropping unprocessable event", "routing_key", d.RoutingKey, "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
	default:
		c.logger.Error("failed to process event", "routing_key", d.RoutingKey, "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message (requeue)", "error", nackErr)
		}
	}
}

func (c *Consumer) setup(ch *amqp.Channel) error {
	if err := pkgevents.DeclareExchange(ch); err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		c.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return err
	}

	for _, key := range c.routingKeys {
		if err := ch.QueueBind(q.Name, key, pkgevents.DefaultExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}
