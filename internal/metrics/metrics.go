// Package metrics records seeder activity as Prometheus metrics.
//
// A Recorder owns its own registry so short-lived CLI runs can export a
// snapshot to a node_exporter textfile without a scrape endpoint.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/seeds/internal/script"
)

// Recorder collects seeder metrics. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry

	scripts  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
	lockWait prometheus.Histogram
	lastRun  *prometheus.GaugeVec
}

// New creates a recorder with a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		scripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seeds",
			Name:      "scripts_total",
			Help:      "Scripts executed, by operation (run or revert) and kind.",
		}, []string{"operation", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seeds",
			Name:      "script_duration_seconds",
			Help:      "Execution time of individual scripts.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seeds",
			Name:      "failures_total",
			Help:      "Engine invocations that ended in a fatal error, by reason.",
		}, []string{"operation", "reason"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seeds",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for the tracking table lock.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "seeds",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last engine invocation, by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
	r.registry.MustRegister(r.scripts, r.duration, r.failures, r.lockWait, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ScriptExecuted records one applied or reverted script.
func (r *Recorder) ScriptExecuted(operation string, kind script.Kind, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.scripts.WithLabelValues(operation, kind.String()).Inc()
	r.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Failed records a fatal engine error.
func (r *Recorder) Failed(operation, reason string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(operation, reason).Inc()
}

// LockWaited records how long acquiring the lock took.
func (r *Recorder) LockWaited(d time.Duration) {
	if r == nil {
		return
	}
	r.lockWait.Observe(d.Seconds())
}

// Finished stamps the completion time of an invocation.
func (r *Recorder) Finished(operation string, ok bool, at time.Time) {
	if r == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	r.lastRun.WithLabelValues(operation, outcome).Set(float64(at.Unix()))
}

// WriteTextfile writes the current metrics in the Prometheus text format,
// atomically replacing path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
