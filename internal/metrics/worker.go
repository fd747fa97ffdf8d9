// Package metrics provides Prometheus metrics for the supervised worker
// and deployments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warden",
		Subsystem: "worker",
		Name:      "state",
		Help:      "Current worker state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	workerUptime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "warden",
		Subsystem: "worker",
		Name:      "uptime_seconds",
		Help:      "Uptime of the current worker process in seconds",
	})

	workerRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Subsystem: "worker",
		Name:      "restarts_total",
		Help:      "Total automatic worker restarts after a crash",
	})

	workerCrashLoops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Subsystem: "worker",
		Name:      "crash_loops_total",
		Help:      "Times the worker hit the restart ceiling and was left crashed",
	})

	deployments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "deployments_total",
		Help:      "Deployment attempts by outcome",
	}, []string{"outcome"})
)

// knownStates keeps the state gauge exhaustive so dashboards can rely
// on every label being present.
var knownStates = []string{"stopped", "starting", "running", "stopping", "crashed"}

// SetWorkerState marks the given state active and all others inactive.
func SetWorkerState(state string) {
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		workerState.WithLabelValues(s).Set(v)
	}
}

// SetWorkerUptime records the current worker uptime.
func SetWorkerUptime(seconds float64) {
	workerUptime.Set(seconds)
}

// IncWorkerRestarts counts one automatic restart.
func IncWorkerRestarts() {
	workerRestarts.Inc()
}

// IncWorkerCrashLoops counts one terminal crash loop.
func IncWorkerCrashLoops() {
	workerCrashLoops.Inc()
}

// IncDeployments counts one deployment attempt with its outcome.
func IncDeployments(outcome string) {
	deployments.WithLabelValues(outcome).Inc()
}
