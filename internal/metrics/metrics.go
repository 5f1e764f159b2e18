package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	AdviceRequests *prometheus.CounterVec
	AdviceLatency  prometheus.Histogram
	HistorySaves   *prometheus.CounterVec
	HistoryLoads   *prometheus.CounterVec
	RateLimited    prometheus.Counter
}

// Outcome label values.
const (
	OK    = "ok"
	Error = "error"
	Busy  = "busy"
)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AdviceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrichat_advice_requests_total",
			Help: "Advice requests by outcome.",
		}, []string{"outcome"}),
		AdviceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nutrichat_advice_duration_seconds",
			Help:    "Time spent generating advice.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}),
		HistorySaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrichat_history_saves_total",
			Help: "Turn saves by outcome.",
		}, []string{"outcome"}),
		HistoryLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrichat_history_loads_total",
			Help: "History loads by outcome.",
		}, []string{"outcome"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nutrichat_rate_limited_total",
			Help: "Requests rejected by the per-user rate limiter.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AdviceRequests,
		m.AdviceLatency,
		m.HistorySaves,
		m.HistoryLoads,
		m.RateLimited,
	)
	return m
}

// WatchQueue exports depth and worker counts sampled at scrape time.
func (m *Metrics) WatchQueue(depth func() int, workers func() (running, idle int)) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "nutrichat_advice_queue_depth",
			Help: "Advice jobs waiting for a worker.",
		}, func() float64 { return float64(depth()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "nutrichat_advice_workers",
			Help: "Advice workers currently running.",
		}, func() float64 {
			running, _ := workers()
			return float64(running)
		}),
	)
}

// Outcome maps an error to its label.
func Outcome(err error) string {
	if err != nil {
		return Error
	}
	return OK
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
