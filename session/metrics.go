package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dashboard_client"

// Metrics records request and refresh outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	renewals *prometheus.CounterVec
	waiting  prometheus.Gauge
}

// NewMetrics registers the session collectors with reg. Collectors already
// registered by another session on the same registry are shared.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "requests_total",
		Help:      "Logical API calls by method and result.",
	}, []string{"method", "result"}))
	if err != nil {
		return nil, err
	}
	renewals, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "token_refreshes_total",
		Help:      "Token refresh calls by result (success, transient, terminal).",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	waiting, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "token_refresh_waiters",
		Help:      "Callers currently waiting for an in-flight token refresh.",
	}))
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, renewals: renewals, waiting: waiting}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) request(method, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, result).Inc()
}

func (m *Metrics) renewal(err error) {
	if m == nil {
		return
	}
	result := "success"
	switch {
	case err == nil:
	case IsTerminal(err):
		result = "terminal"
	default:
		result = "transient"
	}
	m.renewals.WithLabelValues(result).Inc()
}

func (m *Metrics) waiterJoined() {
	if m == nil {
		return
	}
	m.waiting.Inc()
}

func (m *Metrics) waitersResumed(n int) {
	if m == nil || n == 0 {
		return
	}
	m.waiting.Sub(float64(n))
}
