package curli

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/apibean/apibean-cli/internal/apierr"
)

// Metrics records request outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apibean_requests_total",
				Help: "Requests that produced a response, by method and status code",
			},
			[]string{"method", "status"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apibean_transport_failures_total",
				Help: "Requests that failed in transport, by method and error code",
			},
			[]string{"method", "code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apibean_request_duration_seconds",
				Help:    "Time from dispatch to response headers or failure",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

func (m *Metrics) observeResponse(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) observeFailure(method string, code apierr.Code, d time.Duration) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(method, string(code)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Summary totals what a Metrics instance recorded.
type Summary struct {
	Responses int
	Failures  int
	// Duration is the summed time spent in requests, not wall time.
	Duration time.Duration
}

// Summarize totals the apibean collectors found in g.
func Summarize(g prometheus.Gatherer) (Summary, error) {
	families, err := g.Gather()
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "apibean_requests_total":
				s.Responses += int(m.GetCounter().GetValue())
			case "apibean_transport_failures_total":
				s.Failures += int(m.GetCounter().GetValue())
			case "apibean_request_duration_seconds":
				s.Duration += time.Duration(m.GetHistogram().GetSampleSum() * float64(time.Second))
			}
		}
	}
	return s, nil
}
