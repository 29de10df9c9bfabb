package poller

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the poller's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hwbot_poll_cycles_total",
			Help: "Polling cycles by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hwbot_notifications_total",
			Help: "Notifications sent to the chat by kind and result.",
		}, []string{"kind", "result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hwbot_last_success_timestamp_seconds",
			Help: "Unix time of the last cycle that completed without error.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.notifications, m.lastSuccess)
	}
	return m
}

func (m *Metrics) cycle(o Outcome) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) notification(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) success(unix int64) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(unix))
}
