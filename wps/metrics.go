package wps

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tempus"

// Metrics counts WPS requests and times service executions and plugin
// phases.
type Metrics struct {
	requests   *prometheus.CounterVec
	executions *prometheus.HistogramVec
	phases     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "wps",
			Name:      "requests_total",
			Help:      "WPS requests by operation and HTTP status",
		}, []string{"request", "status"}),
		executions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "wps",
			Name:      "execute_duration_seconds",
			Help:      "Duration of Execute operations by service",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"service", "result"}),
		phases: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "plugin",
			Name:      "phase_duration_seconds",
			Help:      "Duration of plugin processing phases",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}, []string{"plugin", "phase"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.executions, m.phases} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) request(operation string, status int) {
	switch operation {
	case "GetCapabilities", "DescribeProcess", "Execute":
	default:
		operation = "other"
	}
	m.requests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

func (m *Metrics) execution(service string, err error, seconds float64) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.executions.WithLabelValues(service, result).Observe(seconds)
}

// ObservePhase has the signature of plugin.Observer.
func (m *Metrics) ObservePhase(plugin, phase string, seconds float64) {
	m.phases.WithLabelValues(plugin, phase).Observe(seconds)
}
