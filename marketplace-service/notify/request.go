// Package notify delivers order and account notifications to the
// notification service over Kafka. Delivery is best effort: failures are
// logged and never surface to the caller.
package notify

import (
	"time"

	"agromart/pkg/events"

	"github.com/google/uuid"
)

type Request struct {
	Type        string
	RecipientID string
	Email       string
	OrderID     string
	OrderNumber string
	Status      string
	Data        map[string]string
}

func (r Request) Event(now time.Time) events.Notification {
	return events.Notification{
		EventID:     uuid.NewString(),
		EventType:   r.Type,
		RecipientID: r.RecipientID,
		Email:       r.Email,
		OrderID:     r.OrderID,
		OrderNumber: r.OrderNumber,
		Status:      r.Status,
		Data:        r.Data,
		CreatedAt:   now.UTC(),
	}
}
