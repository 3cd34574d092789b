package notifier

import (
	"fmt"
	"strings"

	"agromart/pkg/events"
)

type Message struct {
	Title string
	Body  string
}

// Render turns an event into user-facing text. ok is false for event types
// this service does not know.
func Render(ev events.Notification) (msg Message, ok bool) {
	switch ev.EventType {
	case events.TypeOrderConfirmed:
		return Message{
			Title: "Order confirmed",
			Body: fmt.Sprintf("Your order %s has been placed successfully. Total: %s for %s item(s). We'll notify you when it ships.",
				ev.OrderNumber, ev.Data["total"], ev.Data["itemCount"]),
		}, true
	case events.TypeNewOrder:
		return Message{
			Title: "New order received",
			Body:  fmt.Sprintf("Order %s includes your items worth %s.", ev.OrderNumber, ev.Data["amount"]),
		}, true
	case events.TypeOrderStatusChanged:
		body := fmt.Sprintf("Your order %s is now %s.", ev.OrderNumber, ev.Status)
		if tn := ev.Data["trackingNumber"]; tn != "" {
			carrier := ev.Data["carrier"]
			if carrier == "" {
				carrier = "the carrier"
			}
			body += fmt.Sprintf(" Track it with %s using %s.", carrier, tn)
		}
		return Message{Title: "Order " + ev.Status, Body: body}, true
	case events.TypeOrderCancelled:
		body := fmt.Sprintf("Order %s was cancelled.", ev.OrderNumber)
		if reason := strings.TrimSpace(ev.Data["reason"]); reason != "" {
			body += " Reason: " + reason
		}
		return Message{Title: "Order cancelled", Body: body}, true
	case events.TypeOTPRequested:
		return Message{
			Title: "Your login code",
			Body:  fmt.Sprintf("Your AgroMart login code is %s. It expires shortly; do not share it.", ev.Data["code"]),
		}, true
	}
	return Message{}, false
}
