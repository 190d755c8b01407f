package monitor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the instrumentation for one evaluation pipeline.
type Metrics struct {
	Evaluations   prometheus.Counter
	SkippedCycles prometheus.Counter
	AlertsRaised  *prometheus.CounterVec
	FeedStale     prometheus.Counter
	MarginRatio   prometheus.Gauge
	Equity        prometheus.Gauge
	OpenPositions prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskcore_evaluations_total",
			Help: "Completed evaluation cycles.",
		}),
		SkippedCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskcore_evaluation_skips_total",
			Help: "Evaluation cycles skipped because the backend snapshot failed validation.",
		}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcore_alerts_raised_total",
			Help: "Alerts created or replaced, by tier.",
		}, []string{"level"}),
		FeedStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskcore_feed_stale_total",
			Help: "Staleness events raised by depth feed workers.",
		}),
		MarginRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskcore_margin_ratio",
			Help: "Margin ratio of the last published risk snapshot.",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskcore_equity",
			Help: "Equity of the last published risk snapshot.",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskcore_open_positions",
			Help: "Open positions in the last published risk snapshot.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Evaluations,
			m.SkippedCycles,
			m.AlertsRaised,
			m.FeedStale,
			m.MarginRatio,
			m.Equity,
			m.OpenPositions,
		)
	}
	return m
}

func (m *Metrics) alertRaised(level int) {
	m.AlertsRaised.WithLabelValues(strconv.Itoa(level)).Inc()
}
