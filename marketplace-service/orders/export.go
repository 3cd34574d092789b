package orders

import (
	"fmt"
	"io"
	"strings"

	"agromart/marketplace-service/models"

	"github.com/tealeg/xlsx"
)

var exportHeader = []string{
	"Order Number", "Invoice Number", "Created At", "Buyer ID", "Status", "Payment Method",
	"Items", "Subtotal", "Tax", "Shipping", "Discount", "Total", "City", "Tracking Number",
}

// WriteXLSX writes one row per order to a single-sheet workbook.
func WriteXLSX(w io.Writer, list []models.Order) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}

	for i := range list {
		o := &list[i]
		row := sheet.AddRow()
		row.AddCell().SetString(o.OrderNumber)
		row.AddCell().SetString(o.InvoiceNumber)
		row.AddCell().SetString(o.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(o.BuyerID)
		row.AddCell().SetString(string(o.Status))
		row.AddCell().SetString(string(o.PaymentMethod))
		row.AddCell().SetString(describeItems(o.Items))
		for _, amount := range []string{
			o.Subtotal.StringFixed(2),
			o.TaxAmount.StringFixed(2),
			o.ShippingAmount.StringFixed(2),
			o.DiscountAmount.StringFixed(2),
			o.TotalAmount.StringFixed(2),
		} {
			row.AddCell().SetString(amount)
		}
		row.AddCell().SetString(o.ShippingAddress.City)
		row.AddCell().SetString(o.TrackingNumber)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func describeItems(items []models.LineItem) string {
	parts := make([]string, len(items))
	for i, l := range items {
		parts[i] = fmt.Sprintf("%s x%d", l.Name, l.Quantity)
	}
	return strings.Join(parts, "; ")
}
