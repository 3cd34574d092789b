package orders

import (
	"strconv"

	"agromart/marketplace-service/models"
	"agromart/marketplace-service/notify"
	"agromart/pkg/events"
)

func placementNotifications(o *models.Order) []notify.Request {
	reqs := []notify.Request{{
		Type:        events.TypeOrderConfirmed,
		RecipientID: o.BuyerID,
		Email:       o.BuyerEmail,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Data: map[string]string{
			"total":     o.TotalAmount.StringFixed(2),
			"itemCount": strconv.Itoa(o.ItemCount()),
		},
	}}
	for _, seller := range o.SellerIDs() {
		reqs = append(reqs, notify.Request{
			Type:        events.TypeNewOrder,
			RecipientID: seller,
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Status:      string(o.Status),
			Data: map[string]string{
				"amount": o.SellerSubtotal(seller).StringFixed(2),
			},
		})
	}
	return reqs
}

func statusNotifications(o *models.Order) []notify.Request {
	data := map[string]string{}
	if o.TrackingNumber != "" {
		data["trackingNumber"] = o.TrackingNumber
	}
	if o.Carrier != "" {
		data["carrier"] = o.Carrier
	}
	return []notify.Request{{
		Type:        events.TypeOrderStatusChanged,
		RecipientID: o.BuyerID,
		Email:       o.BuyerEmail,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Data:        data,
	}}
}

func cancellationNotifications(o *models.Order) []notify.Request {
	reqs := statusNotifications(o)
	for _, seller := range o.SellerIDs() {
		reqs = append(reqs, notify.Request{
			Type:        events.TypeOrderCancelled,
			RecipientID: seller,
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Status:      string(o.Status),
			Data: map[string]string{
				"reason": o.CancellationReason,
			},
		})
	}
	return reqs
}
