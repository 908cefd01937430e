package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	snapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hostwatch",
			Name:      "snapshots_total",
			Help:      "Snapshots scored by the real-time loop.",
		},
	)

	anomaliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hostwatch",
			Name:      "anomalies_total",
			Help:      "Snapshots the anomaly model flagged.",
		},
	)

	collectErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hostwatch",
			Name:      "collect_errors_total",
			Help:      "Failed snapshot acquisitions or persistence steps in the scoring loop.",
		},
	)

	anomalyScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostwatch",
			Name:      "anomaly_score",
			Help:      "Isolation score of the most recent snapshot (1 = strong anomaly).",
		},
	)

	trainingRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostwatch",
			Name:      "training_rows",
			Help:      "Rows used by the last anomaly model training run.",
		},
	)

	logLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostwatch",
			Name:      "log_lines_total",
			Help:      "Classified log lines, partitioned by label and deciding tier.",
		},
		[]string{"label", "tier"},
	)
)

// Register attaches hostwatch collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		snapshotsTotal,
		anomaliesTotal,
		collectErrorsTotal,
		anomalyScore,
		trainingRows,
		logLinesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSnapshot records one scored snapshot
func ObserveSnapshot(score float64, anomalous bool) {
	snapshotsTotal.Inc()
	anomalyScore.Set(score)
	if anomalous {
		anomaliesTotal.Inc()
	}
}

// ObserveCollectError counts a failed cycle step
func ObserveCollectError() {
	collectErrorsTotal.Inc()
}

// ObserveTraining records the size of the last training set
func ObserveTraining(rows int) {
	trainingRows.Set(float64(rows))
}

// ObserveLogLine counts one classified line
func ObserveLogLine(label, tier string) {
	logLinesTotal.WithLabelValues(label, tier).Inc()
}
