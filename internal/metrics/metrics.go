// Package metrics exposes Prometheus collectors for sensor polling.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/mcp23017-sensor/internal/logic"
)

// Poll results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collectors holds the daemon metrics on a private registry.
type Collectors struct {
	registry *prometheus.Registry

	polls         *prometheus.CounterVec
	sensorState   *prometheus.GaugeVec
	publishErrors prometheus.Counter
}

// New creates and registers the collectors, plus Go runtime and process collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binary_sensor_polls_total",
				Help: "Total polls by sensor and result.",
			},
			[]string{"sensor", "result"},
		),
		sensorState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "binary_sensor_state",
				Help: "Logical sensor state: 1 on, 0 off, -1 unknown.",
			},
			[]string{"sensor"},
		),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_publish_errors_total",
			Help: "Total MQTT publish failures.",
		}),
	}
	c.registry.MustRegister(
		c.polls,
		c.sensorState,
		c.publishErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObservePoll records one poll outcome and the resulting state.
func (c *Collectors) ObservePoll(sensor string, state logic.State, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.polls.WithLabelValues(sensor, result).Inc()
	c.sensorState.WithLabelValues(sensor).Set(stateValue(state))
}

// ObservePublishError counts a failed MQTT publish.
func (c *Collectors) ObservePublishError() {
	c.publishErrors.Inc()
}

// Registry returns the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func stateValue(s logic.State) float64 {
	switch s {
	case logic.StateOn:
		return 1
	case logic.StateOff:
		return 0
	}
	return -1
}
