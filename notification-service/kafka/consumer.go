package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agromart/notification-service/notifier"
	"agromart/pkg/events"
	pkgkafka "agromart/pkg/kafka"
	"agromart/pkg/telemetry"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Handler interface {
	Handle(ctx context.Context, ev events.Notification) error
}

// Consumer feeds notification events to a Handler, retrying failures with a
// linear backoff.
type Consumer struct {
	handler    Handler
	logger     *zap.Logger
	maxRetries int
	backoff    time.Duration
}

func NewConsumer(handler Handler, logger *zap.Logger) *Consumer {
	return &Consumer{handler: handler, logger: logger, maxRetries: 3, backoff: time.Second}
}

// Run consumes topic until ctx is done.
func (c *Consumer) Run(ctx context.Context, consumer sarama.Consumer, topic string) error {
	return pkgkafka.Consume(ctx, consumer, topic, c.logger, func(msg *sarama.ConsumerMessage) {
		c.HandleMessage(ctx, msg)
	})
}

func (c *Consumer) HandleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	// Extract trace context from Kafka message headers
	ctx = otel.GetTextMapPropagator().Extract(ctx, pkgkafka.ConsumerCarrier(message.Headers))

	var tracer trace.Tracer = otel.Tracer("notification-service")
	ctx, span := tracer.Start(ctx, "ProcessNotification")
	defer span.End()

	var ev events.Notification
	if err := json.Unmarshal(message.Value, &ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed event")
		c.logger.Error("Skipping malformed notification event",
			zap.String("trace_id", telemetry.GetTraceID(ctx)),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Error(err),
		)
		return
	}

	span.SetAttributes(
		attribute.String("event.type", ev.EventType),
		attribute.String("event.id", ev.EventID),
		attribute.String("user.id", ev.RecipientID),
	)

	if err := c.handleWithRetry(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		notifier.RecordFailed(ev.EventType)
		c.logger.Error("Failed to handle notification after retries",
			zap.String("trace_id", telemetry.GetTraceID(ctx)),
			zap.String("event_id", ev.EventID),
			zap.String("event_type", ev.EventType),
			zap.Error(err),
		)
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, ev events.Notification) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err := c.handler.Handle(ctx, ev)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < c.maxRetries {
			backoff := time.Duration(attempt) * c.backoff
			c.logger.Warn("Retrying notification handling",
				zap.String("event_id", ev.EventID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("gave up after %d attempts: %w", attempt, ctx.Err())
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}
