package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NumberGenerator mints the human-facing order and invoice numbers.
type NumberGenerator interface {
	Next(now time.Time) (orderNumber, invoiceNumber string)
}

// randomNumbers derives both numbers from the date and 48 random bits, which
// keeps collisions rare enough that the insert retry almost never fires.
type randomNumbers struct{}

func (randomNumbers) Next(now time.Time) (string, string) {
	id := uuid.New()
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12])
	date := now.UTC().Format("20060102")
	return "ORD-" + date + "-" + suffix, "INV-" + date + "-" + suffix
}
