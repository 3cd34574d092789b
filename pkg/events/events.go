package events

import "time"

// Notification is the message published on the notification topic. The
// marketplace produces it, notification-service consumes it.
type Notification struct {
	EventID     string            `json:"event_id"`
	EventType   string            `json:"event_type"`
	RecipientID string            `json:"recipient_id"`
	Email       string            `json:"email,omitempty"`
	OrderID     string            `json:"order_id,omitempty"`
	OrderNumber string            `json:"order_number,omitempty"`
	Status      string            `json:"status,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

const (
	TypeOrderConfirmed     = "order_confirmed"
	TypeNewOrder           = "new_order"
	TypeOrderStatusChanged = "order_status_changed"
	TypeOrderCancelled     = "order_cancelled"
	TypeOTPRequested       = "otp_requested"
)

// DefaultTopic is used when KAFKA_NOTIFICATION_TOPIC is unset.
const DefaultTopic = "notification_events"
