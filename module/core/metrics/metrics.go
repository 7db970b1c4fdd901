package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the core module.
	Registry = prometheus.NewRegistry()

	SamplesEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "geofence_samples_evaluated_total", Help: "Position samples run through the evaluator."},
	)
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geofence_transitions_total", Help: "Geofence boundary crossings by direction."},
		[]string{"direction"},
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geofence_notifications_total", Help: "Push notification outcomes."},
		[]string{"outcome"},
	)
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alert_deliveries_total", Help: "SOS alert deliveries by channel and status."},
		[]string{"channel", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call more
// than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(SamplesEvaluated)
		Registry.MustRegister(Transitions)
		Registry.MustRegister(Notifications)
		Registry.MustRegister(Deliveries)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
