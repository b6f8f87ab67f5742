// Package metrics holds the prometheus instruments of an analysis run.
//
// Every Engine owns its own registry so that repeated runs in one process
// (watch mode, tests) never collide. All methods are safe on a nil *Metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "undead"

// Skip reasons reported on files_skipped_total.
const (
	ReasonNoBuildCondition   = "no_build_condition"
	ReasonBuildUnchanged     = "build_condition_unchanged"
	ReasonStructureUnchanged = "structure_unchanged"
)

// Metrics groups the counters of one engine.
type Metrics struct {
	registry *prometheus.Registry

	filesAnalyzed   prometheus.Counter
	filesSkipped    *prometheus.CounterVec
	satQueries      prometheus.Counter
	satCacheHits    prometheus.Counter
	deadBlocks      prometheus.Counter
	elementFailures *prometheus.CounterVec
	fileDuration    prometheus.Histogram
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		filesAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_analyzed_total",
			Help:      "Source files checked for dead blocks",
		}),
		filesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Source files skipped by reason",
		}, []string{"reason"}),
		satQueries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sat_queries_total",
			Help:      "Satisfiability queries sent to the solver",
		}),
		satCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sat_cache_hits_total",
			Help:      "Satisfiability checks answered from the per-file memo",
		}),
		deadBlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_blocks_total",
			Help:      "Dead blocks reported",
		}),
		elementFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "element_failures_total",
			Help:      "Elements excluded after a conversion or solver failure",
		}, []string{"stage"}),
		fileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time spent checking one source file",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FileAnalyzed records one checked file and how long it took.
func (m *Metrics) FileAnalyzed(d time.Duration) {
	if m == nil {
		return
	}
	m.filesAnalyzed.Inc()
	m.fileDuration.Observe(d.Seconds())
}

// FileSkipped records a skipped file.
func (m *Metrics) FileSkipped(reason string) {
	if m == nil {
		return
	}
	m.filesSkipped.WithLabelValues(reason).Inc()
}

// SATQuery records a solver invocation.
func (m *Metrics) SATQuery() {
	if m == nil {
		return
	}
	m.satQueries.Inc()
}

// SATCacheHit records a memoized answer.
func (m *Metrics) SATCacheHit() {
	if m == nil {
		return
	}
	m.satCacheHits.Inc()
}

// DeadBlock records a reported block.
func (m *Metrics) DeadBlock() {
	if m == nil {
		return
	}
	m.deadBlocks.Inc()
}

// ElementFailure records an element excluded at stage ("convert" or "solve").
func (m *Metrics) ElementFailure(stage string) {
	if m == nil {
		return
	}
	m.elementFailures.WithLabelValues(stage).Inc()
}

// WriteFile dumps all metrics in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
