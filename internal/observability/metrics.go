// Package observability exposes Prometheus collectors for the engine.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report engine activity.
type Metrics struct {
	turnsTotal        prometheus.Counter
	taskCompletions   *prometheus.CounterVec
	toolCalls         *prometheus.CounterVec
	translationErrors prometheus.Counter
	runsActive        prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// Default returns the package-level metrics instance registered with the
// global Prometheus registry. Collectors are created only once to avoid
// duplicate registration panics when multiple orchestrators exist in one
// process.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Supply a fresh registry in tests. Registration errors panic, mirroring
// promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	turnsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weft",
		Subsystem: "engine",
		Name:      "turns_total",
		Help:      "Total number of orchestrator turns executed.",
	})
	taskCompletions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "engine",
			Name:      "task_completions_total",
			Help:      "Tasks reaching a terminal state, by state.",
		},
		[]string{"state"},
	)
	toolCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weft",
			Subsystem: "engine",
			Name:      "tool_calls_total",
			Help:      "Tool calls observed in the event stream, by origin.",
		},
		[]string{"origin"},
	)
	translationErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weft",
		Subsystem: "engine",
		Name:      "suppressed_translation_errors_total",
		Help:      "Run events dropped because translation failed.",
	})
	runsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "weft",
		Subsystem: "engine",
		Name:      "runs_active",
		Help:      "Orchestrator runs currently in flight.",
	})

	collectors := []prometheus.Collector{turnsTotal, taskCompletions, toolCalls, translationErrors, runsActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector {
				case turnsTotal:
					turnsTotal = already.ExistingCollector.(prometheus.Counter)
				case taskCompletions:
					taskCompletions = already.ExistingCollector.(*prometheus.CounterVec)
				case toolCalls:
					toolCalls = already.ExistingCollector.(*prometheus.CounterVec)
				case translationErrors:
					translationErrors = already.ExistingCollector.(prometheus.Counter)
				case runsActive:
					runsActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		turnsTotal:        turnsTotal,
		taskCompletions:   taskCompletions,
		toolCalls:         toolCalls,
		translationErrors: translationErrors,
		runsActive:        runsActive,
	}
}

// IncTurn records one executed turn.
func (m *Metrics) IncTurn() {
	if m == nil || m.turnsTotal == nil {
		return
	}
	m.turnsTotal.Inc()
}

// IncTaskCompletion records a task reaching a terminal state.
func (m *Metrics) IncTaskCompletion(state string) {
	if m == nil || m.taskCompletions == nil {
		return
	}
	m.taskCompletions.WithLabelValues(state).Inc()
}

// IncToolCall records a tool-call event by origin.
func (m *Metrics) IncToolCall(origin string) {
	if m == nil || m.toolCalls == nil {
		return
	}
	m.toolCalls.WithLabelValues(origin).Inc()
}

// AddTranslationErrors records suppressed event-translation errors.
func (m *Metrics) AddTranslationErrors(n int) {
	if m == nil || m.translationErrors == nil || n <= 0 {
		return
	}
	m.translationErrors.Add(float64(n))
}

// IncActiveRuns marks a run as started.
func (m *Metrics) IncActiveRuns() {
	if m == nil || m.runsActive == nil {
		return
	}
	m.runsActive.Inc()
}

// DecActiveRuns marks a run as finished.
func (m *Metrics) DecActiveRuns() {
	if m == nil || m.runsActive == nil {
		return
	}
	m.runsActive.Dec()
}
