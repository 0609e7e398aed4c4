package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the launcher, registered with the default
// registry via promauto and exposed on the status API's /metrics.
var (
	// PhasesTotal counts phase completions by outcome.
	PhasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcher",
			Subsystem: "phases",
			Name:      "total",
			Help:      "Launcher phase completions by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)

	// ProbeDuration tracks how long each tool probe took.
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "launcher",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Duration of prerequisite tool probes in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
		[]string{"tool"},
	)

	// InstallDuration tracks the dependency install time.
	InstallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "launcher",
			Subsystem: "install",
			Name:      "duration_seconds",
			Help:      "Duration of the dependency install in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17m
		},
	)

	// ChildRunning is 1 while the supervised server process is alive.
	ChildRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "launcher",
			Subsystem: "child",
			Name:      "running",
			Help:      "Whether the supervised server process is currently running",
		},
	)

	// ChildExitCode records the last observed child exit code.
	ChildExitCode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "launcher",
			Subsystem: "child",
			Name:      "exit_code",
			Help:      "Exit code of the supervised server process",
		},
	)

	// InterruptsTotal counts user interrupts observed during the run phase.
	InterruptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "launcher",
			Subsystem: "child",
			Name:      "interrupts_total",
			Help:      "User interrupts that stopped the supervised server",
		},
	)
)

// RecordPhase records a completed phase with its outcome.
func RecordPhase(phase, outcome string) {
	PhasesTotal.WithLabelValues(phase, outcome).Inc()
}
