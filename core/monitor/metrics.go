package monitor

import "github.com/prometheus/client_golang/prometheus"

const namespace = "sentinel_monitor"

type metrics struct {
	passes      *prometheus.CounterVec
	deleted     *prometheus.CounterVec
	sweepErrors *prometheus.CounterVec
	threats     prometheus.Gauge
	alerts      prometheus.Counter
	running     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Monitoring and cleanup passes by task and result.",
		}, []string{"task", "result"}),
		deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_keys_total",
			Help:      "Expired keys removed by the cleanup sweeps.",
		}, []string{"prefix"}),
		sweepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Sweeps that hit a key store error.",
		}, []string{"prefix"}),
		threats: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threats_last_hour",
			Help:      "High and critical events seen in the last hour.",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "High threat activity alerts raised.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the monitor is running.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.passes, m.deleted, m.sweepErrors, m.threats, m.alerts, m.running)
	}
	return m
}
