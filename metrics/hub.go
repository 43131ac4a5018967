package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubStats reports current subscribers and cumulative delivered and dropped
// events, as hub.Hub.Stats does.
type HubStats func() (subscribers int64, delivered, dropped uint64)

// RegisterHub exposes the distribution hub's counters.
func (m *MetricsServer) RegisterHub(namespace string, stats HubStats) error {
	return m.Register(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Subscriptions currently attached to the hub.",
		}, func() float64 {
			n, _, _ := stats()
			return float64(n)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "delivered_total",
			Help:      "Events handed to subscriber buffers.",
		}, func() float64 {
			_, n, _ := stats()
			return float64(n)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "dropped_total",
			Help:      "Events dropped because a subscriber buffer was full.",
		}, func() float64 {
			_, _, n := stats()
			return float64(n)
		}),
	)
}
