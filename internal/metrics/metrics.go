// Package metrics exports upgrade outcomes as prometheus metrics.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

const namespace = "commons"

// Recorder counts finished targets and operations. It implements
// upgrade.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	targetsTotal    *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	operationsTotal *prometheus.CounterVec
	targetDuration  *prometheus.HistogramVec

	lastRunTimestamp prometheus.Gauge
	lastRunDuration  prometheus.Gauge
	lastRunFailed    prometheus.Gauge
}

// NewRecorder registers the upgrade metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		targetsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upgrade",
				Name:      "targets_total",
				Help:      "Targets processed, by final state",
			},
			[]string{"state"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upgrade",
				Name:      "failures_total",
				Help:      "Failed targets, by the state they failed in and the operation running",
			},
			[]string{"failed_at", "operation"},
		),
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upgrade",
				Name:      "operations_total",
				Help:      "Operations started, by name",
			},
			[]string{"operation"},
		),
		targetDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upgrade",
				Name:      "target_duration_seconds",
				Help:      "Time spent upgrading one target",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"state"},
		),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upgrade",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last full run finished",
		}),
		lastRunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upgrade",
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last full run",
		}),
		lastRunFailed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upgrade",
			Name:      "last_run_failed_targets",
			Help:      "Failed targets in the last full run",
		}),
	}
}

// Gatherer exposes the registry for exporters.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordTarget implements upgrade.Recorder.
func (r *Recorder) RecordTarget(status upgrade.TargetStatus) {
	state := string(status.State)
	r.targetsTotal.WithLabelValues(state).Inc()
	r.targetDuration.WithLabelValues(state).Observe(status.Duration.Seconds())

	// Operation is the index of the last one started, so every operation up
	// to and including it ran.
	for i := 0; i <= status.Operation && i < len(status.Operations); i++ {
		r.operationsTotal.WithLabelValues(status.Operations[i]).Inc()
	}

	if status.Failed() {
		r.failuresTotal.WithLabelValues(string(status.FailedAt), status.CurrentOperation()).Inc()
	}
}

// Report implements upgrade.Reporter by updating the run gauges.
func (r *Recorder) Report(_ context.Context, report *upgrade.Report) error {
	if report == nil {
		return fmt.Errorf("no report to record")
	}
	_, _, failed := report.Counts()
	r.lastRunTimestamp.Set(float64(report.Finished.Unix()))
	r.lastRunDuration.Set(report.Finished.Sub(report.Started).Seconds())
	r.lastRunFailed.Set(float64(failed))
	return nil
}

// Textfile writes a gatherer to a file in the node exporter textfile format
// whenever a run finishes.
type Textfile struct {
	path     string
	gatherer prometheus.Gatherer
}

// NewTextfile returns a reporter writing gatherer to path.
func NewTextfile(path string, gatherer prometheus.Gatherer) *Textfile {
	return &Textfile{path: path, gatherer: gatherer}
}

// Report implements upgrade.Reporter.
func (t *Textfile) Report(context.Context, *upgrade.Report) error {
	if err := prometheus.WriteToTextfile(t.path, t.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
