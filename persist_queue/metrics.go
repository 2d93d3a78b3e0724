package persist_queue

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	tasks   *prometheus.CounterVec
	dropped prometheus.Counter
	pending prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "umc_persist_tasks_total",
			Help: "Background persistence tasks by result.",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "umc_persist_failures_dropped_total",
			Help: "Task failures nobody read from the failures channel.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "umc_persist_tasks_pending",
			Help: "Tasks enqueued but not yet finished.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.tasks, m.dropped, m.pending)
	}

	return m
}
