package hub

import "github.com/prometheus/client_golang/prometheus"

var connectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "websocket_connections",
	Help: "Number of open notification websocket connections",
})

func init() {
	prometheus.MustRegister(connectedClients)
}
