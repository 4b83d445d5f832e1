package infra

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the runner's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	steps    *prometheus.CounterVec
	duration prometheus.Histogram
	queued   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exflow",
			Name:      "runs_total",
			Help:      "Workflow runs by final status.",
		}, []string{"status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exflow",
			Name:      "steps_total",
			Help:      "Executed steps by type and outcome.",
		}, []string{"type", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "exflow",
			Name:      "run_duration_seconds",
			Help:      "Wall time of workflow runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "exflow",
			Name:      "runs_queued",
			Help:      "Runs waiting for the worker.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.steps, m.duration, m.queued)
	}
	return m
}

func (m *Metrics) observeRun(rec RunRecord) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(rec.Status)).Inc()
	m.duration.Observe(rec.Duration().Seconds())
	for _, s := range rec.Steps {
		status := "ok"
		if !s.Success {
			status = "error"
		}
		m.steps.WithLabelValues(s.Type, status).Inc()
	}
}

func (m *Metrics) queueDelta(d float64) {
	if m == nil {
		return
	}
	m.queued.Add(d)
}

