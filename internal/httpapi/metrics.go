package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Metrics exposes the agent's Prometheus surface: commands executed by
// verb and outcome, and whether a sequence is currently executing.
type Metrics struct {
	registry        *prometheus.Registry
	commandsTotal   *prometheus.CounterVec
	executingGauge  prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	commandsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dronesphere_commands_total",
		Help: "Commands executed, by verb and outcome.",
	}, []string{"verb", "outcome"})

	executingGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dronesphere_executing",
		Help: "1 while a command sequence is executing, 0 otherwise.",
	})

	reg.MustRegister(commandsTotal, executingGauge)

	return &Metrics{registry: reg, commandsTotal: commandsTotal, executingGauge: executingGauge}
}

// RecordCommand increments the per-verb outcome counter.
func (m *Metrics) RecordCommand(verb string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.commandsTotal.WithLabelValues(verb, outcome).Inc()
}

func (m *Metrics) SetExecuting(executing bool) {
	if executing {
		m.executingGauge.Set(1)
	} else {
		m.executingGauge.Set(0)
	}
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
