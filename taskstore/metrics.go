package taskstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/IDGHIM/TaskFlow/domain"
)

// Metrics holds Prometheus collectors for task stores. A nil *Metrics is valid
// and records nothing.
//
// Metrics:
//   - taskflow_commands_total{type,result} - commands dispatched, result is "applied" or "noop"
//   - taskflow_events_total{type} - task events produced
//   - taskflow_persist_failures_total - snapshot saves that failed
//   - taskflow_publish_failures_total - event batches that could not be published
//   - taskflow_stores - task lists held in memory
type Metrics struct {
	CommandsTotal        *prometheus.CounterVec
	EventsTotal          *prometheus.CounterVec
	PersistFailuresTotal prometheus.Counter
	PublishFailuresTotal prometheus.Counter
	Stores               prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CommandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_commands_total",
				Help: "Total number of commands dispatched to task stores",
			},
			[]string{"type", "result"},
		),
		EventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_events_total",
				Help: "Total number of task events produced",
			},
			[]string{"type"},
		),
		PersistFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_persist_failures_total",
			Help: "Total number of failed snapshot saves",
		}),
		PublishFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_publish_failures_total",
			Help: "Total number of event batches that failed to publish",
		}),
		Stores: f.NewGauge(prometheus.GaugeOpts{
			Name: "taskflow_stores",
			Help: "Number of task lists held in memory",
		}),
	}
}

func (m *Metrics) observeCommand(t domain.CommandType, out domain.Outcome) {
	if m == nil {
		return
	}
	result := "noop"
	if out.Changed {
		result = "applied"
	}
	m.CommandsTotal.WithLabelValues(string(t), result).Inc()
	for _, ev := range out.Events {
		m.EventsTotal.WithLabelValues(string(ev.Type)).Inc()
	}
}

func (m *Metrics) persistFailed() {
	if m != nil {
		m.PersistFailuresTotal.Inc()
	}
}

func (m *Metrics) publishFailed() {
	if m != nil {
		m.PublishFailuresTotal.Inc()
	}
}

func (m *Metrics) storeAdded() {
	if m != nil {
		m.Stores.Inc()
	}
}
