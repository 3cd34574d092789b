package orders

import (
	"context"
	"sort"
	"time"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/models"

	"github.com/shopspring/decimal"
)

type StatusSummary struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type PeriodSummary struct {
	Period  string          `json:"period"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type Stats struct {
	From              time.Time                            `json:"from"`
	To                time.Time                            `json:"to"`
	TotalOrders       int                                  `json:"totalOrders"`
	TotalRevenue      decimal.Decimal                      `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal                      `json:"averageOrderValue"`
	ByStatus          map[models.OrderStatus]StatusSummary `json:"byStatus"`
	Daily             []PeriodSummary                      `json:"daily"`
	Monthly           []PeriodSummary                      `json:"monthly"`
}

// ComputeStats summarizes orders. Revenue and the period series leave out
// cancelled orders; counts by status include them.
func ComputeStats(list []models.Order, from, to time.Time) *Stats {
	s := &Stats{
		From:         from,
		To:           to,
		TotalOrders:  len(list),
		TotalRevenue: decimal.Zero,
		ByStatus:     make(map[models.OrderStatus]StatusSummary, len(models.AllStatuses)),
	}
	for _, st := range models.AllStatuses {
		s.ByStatus[st] = StatusSummary{Amount: decimal.Zero}
	}

	daily := map[string]*PeriodSummary{}
	monthly := map[string]*PeriodSummary{}
	revenueOrders := 0
	for i := range list {
		o := &list[i]
		bucket := s.ByStatus[o.Status]
		bucket.Count++
		bucket.Amount = bucket.Amount.Add(o.TotalAmount)
		s.ByStatus[o.Status] = bucket

		if o.Status == models.StatusCancelled {
			continue
		}
		revenueOrders++
		s.TotalRevenue = s.TotalRevenue.Add(o.TotalAmount)
		addPeriod(daily, o.CreatedAt.UTC().Format("2006-01-02"), o.TotalAmount)
		addPeriod(monthly, o.CreatedAt.UTC().Format("2006-01"), o.TotalAmount)
	}

	s.AverageOrderValue = decimal.Zero
	if revenueOrders > 0 {
		s.AverageOrderValue = s.TotalRevenue.Div(decimal.NewFromInt(int64(revenueOrders))).Round(2)
	}
	s.Daily = sortedPeriods(daily)
	s.Monthly = sortedPeriods(monthly)
	return s
}

func addPeriod(m map[string]*PeriodSummary, key string, amount decimal.Decimal) {
	p, ok := m[key]
	if !ok {
		p = &PeriodSummary{Period: key, Revenue: decimal.Zero}
		m[key] = p
	}
	p.Orders++
	p.Revenue = p.Revenue.Add(amount)
}

func sortedPeriods(m map[string]*PeriodSummary) []PeriodSummary {
	out := make([]PeriodSummary, 0, len(m))
	for _, p := range m {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// Stats reports on orders created in [from, to).
func (e *Engine) Stats(ctx context.Context, actor auth.Actor, from, to time.Time) (*Stats, error) {
	list, err := e.ordersInRange(ctx, actor, auth.ActionViewStats, from, to)
	if err != nil {
		return nil, err
	}
	return ComputeStats(list, from, to), nil
}

// Export returns the orders created in [from, to) for the spreadsheet export.
func (e *Engine) Export(ctx context.Context, actor auth.Actor, from, to time.Time) ([]models.Order, error) {
	return e.ordersInRange(ctx, actor, auth.ActionExportOrders, from, to)
}

func (e *Engine) ordersInRange(ctx context.Context, actor auth.Actor, action auth.Action, from, to time.Time) ([]models.Order, error) {
	if err := auth.Authorize(actor, action, auth.Resource{}); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, apperr.Invalid("to", "must be after from")
	}
	list, err := e.orders.OrdersBetween(ctx, from, to)
	if err != nil {
		return nil, apperr.Persistence("load orders", err)
	}
	return list, nil
}
