// Package notifier fans a notification event out to email, the in-app inbox
// and connected websocket clients.
package notifier

import (
	"context"
	"fmt"

	"agromart/notification-service/inbox"
	"agromart/pkg/events"
	"agromart/pkg/telemetry"

	"go.uber.org/zap"
)

type Inbox interface {
	Save(ctx context.Context, n *inbox.Notification) (bool, error)
}

type Pusher interface {
	Push(userID string, v any) int
}

type Notifier struct {
	inbox  Inbox
	email  Sender
	pusher Pusher
	logger *zap.Logger
}

func New(in Inbox, email Sender, pusher Pusher, logger *zap.Logger) *Notifier {
	return &Notifier{inbox: in, email: email, pusher: pusher, logger: logger}
}

// Handle delivers ev. Unknown event types are skipped. Login codes go by
// email only and never reach the inbox. Other events are stored first and
// delivered only when the inbox saw their EventID for the first time, so a
// redelivered or retried event sends no second email or push.
func (n *Notifier) Handle(ctx context.Context, ev events.Notification) error {
	traceID := telemetry.GetTraceID(ctx)
	msg, ok := Render(ev)
	if !ok {
		n.logger.Debug("Unknown event type", zap.String("trace_id", traceID), zap.String("event_type", ev.EventType))
		return nil
	}
	if ev.RecipientID == "" {
		n.logger.Warn("Dropping notification without recipient",
			zap.String("trace_id", traceID), zap.String("event_id", ev.EventID), zap.String("event_type", ev.EventType))
		return nil
	}

	if ev.EventType == events.TypeOTPRequested {
		if ev.Email == "" {
			n.logger.Warn("Login code requested for user without email",
				zap.String("trace_id", traceID), zap.String("user_id", ev.RecipientID))
			return nil
		}
		return n.sendEmail(ctx, ev, msg, true)
	}

	note := &inbox.Notification{
		EventID:     ev.EventID,
		UserID:      ev.RecipientID,
		Type:        ev.EventType,
		Title:       msg.Title,
		Message:     msg.Body,
		OrderID:     ev.OrderID,
		OrderNumber: ev.OrderNumber,
		CreatedAt:   ev.CreatedAt,
	}
	inserted, err := n.inbox.Save(ctx, note)
	if err != nil {
		return err
	}
	if !inserted {
		n.logger.Info("Duplicate notification event ignored",
			zap.String("trace_id", traceID), zap.String("event_id", ev.EventID))
		return nil
	}
	recordSent(ev.EventType, "inbox")

	if delivered := n.pusher.Push(ev.RecipientID, note); delivered > 0 {
		recordSent(ev.EventType, "websocket")
	}

	// Past this point the event is recorded, so an email failure is logged
	// rather than returned: a retry would be treated as a duplicate.
	if ev.Email != "" {
		if err := n.sendEmail(ctx, ev, msg, false); err != nil {
			n.logger.Error("Failed to send notification email",
				zap.String("trace_id", traceID),
				zap.String("event_id", ev.EventID),
				zap.Error(err))
		}
	}

	n.logger.Info("Notification delivered",
		zap.String("trace_id", traceID),
		zap.String("event_type", ev.EventType),
		zap.String("user_id", ev.RecipientID),
		zap.String("order_number", ev.OrderNumber),
	)
	return nil
}

func (n *Notifier) sendEmail(ctx context.Context, ev events.Notification, msg Message, sensitive bool) error {
	err := n.email.Send(ctx, Email{To: ev.Email, Subject: msg.Title, Body: msg.Body, Sensitive: sensitive})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	recordSent(ev.EventType, "email")
	return nil
}
