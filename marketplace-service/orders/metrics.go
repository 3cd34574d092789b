package orders

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders successfully placed",
		},
	)

	placementFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_placement_failures_total",
			Help: "Order placements rejected or failed, by reason",
		},
		[]string{"reason"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Order status changes, by target status",
		},
		[]string{"status"},
	)

	stockReconciliationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_reconciliation_failures_total",
			Help: "Catalog items whose stock could not be restored",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersPlaced)
	prometheus.MustRegister(placementFailures)
	prometheus.MustRegister(statusTransitions)
	prometheus.MustRegister(stockReconciliationFailures)
}
