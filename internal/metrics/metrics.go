package metrics

import (
	"errors"
	"time"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/transport"

	"github.com/prometheus/client_golang/prometheus"
)

// TransportMetrics turns transport instrumentation into prometheus
// series labelled by backend and call name.
type TransportMetrics struct {
	backend  string
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

func NewTransportMetrics(backend string) *TransportMetrics {
	return &TransportMetrics{
		backend: backend,
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airzone",
			Subsystem: "transport",
			Name:      "call_duration_seconds",
			Help:      "Duration of Airzone transport calls.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"backend", "call"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airzone",
			Subsystem: "transport",
			Name:      "call_errors_total",
			Help:      "Failed Airzone transport calls by error class.",
		}, []string{"backend", "call", "class"}),
	}
}

func (m *TransportMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.duration, m.errors}
}

func (m *TransportMetrics) Instrument() transport.Instrument {
	return transport.Instrument{
		RecordTime: func(fnName string, callTime time.Duration) {
			m.duration.WithLabelValues(m.backend, fnName).Observe(callTime.Seconds())
		},
		RecordError: func(fnName string, err error) {
			m.errors.WithLabelValues(m.backend, fnName, ErrorClass(err)).Inc()
		},
	}
}

func ErrorClass(err error) string {
	switch {
	case errors.Is(err, climate.ErrTransport):
		return "transport"
	case errors.Is(err, climate.ErrParse):
		return "parse"
	case errors.Is(err, climate.ErrConfiguration):
		return "configuration"
	}
	return "other"
}

// NewRegistry registers the transport metrics together with the go and
// process collectors.
func NewRegistry(transportMetrics *TransportMetrics) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(transportMetrics.Collectors()...)
	return registry
}
