// Package metrics exposes Prometheus collectors for routing, tool calls and
// agent turns.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "docchat"

// Metrics owns a registry and the collectors registered on it. It satisfies
// tool.Observer and router.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	RouteTotal      *prometheus.CounterVec
	TurnDuration    *prometheus.HistogramVec
	TurnDegraded    prometheus.Counter
	AgentSteps      prometheus.Histogram
	BudgetExhausted prometheus.Counter
	ToolCalls       *prometheus.CounterVec
	ToolErrors      *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
}

// New creates a Metrics instance on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RouteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_total",
			Help:      "Routing decisions by mode.",
		}, []string{"mode"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time to answer one message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		TurnDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_degraded_total",
			Help:      "Turns answered with an apology after a failure.",
		}),
		AgentSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_steps",
			Help:      "Model rounds used by tool-using turns.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12},
		}),
		BudgetExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_budget_exhausted_total",
			Help:      "Tool-using turns that hit the step bound.",
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool.",
		}, []string{"tool"}),
		ToolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_errors_total",
			Help:      "Tool invocations that returned an error result.",
		}, []string{"tool"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	m.registry.MustRegister(
		m.RouteTotal, m.TurnDuration, m.TurnDegraded,
		m.AgentSteps, m.BudgetExhausted,
		m.ToolCalls, m.ToolErrors, m.ToolDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveToolCall records one tool invocation.
func (m *Metrics) ObserveToolCall(name string, duration time.Duration, failed bool) {
	m.ToolCalls.WithLabelValues(name).Inc()
	if failed {
		m.ToolErrors.WithLabelValues(name).Inc()
	}
	m.ToolDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// ObserveTurn records one routed turn.
func (m *Metrics) ObserveTurn(mode string, steps int, budgetExhausted, degraded bool, duration time.Duration) {
	m.RouteTotal.WithLabelValues(mode).Inc()
	m.TurnDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if degraded {
		m.TurnDegraded.Inc()
		return
	}
	if mode == "tooled" {
		m.AgentSteps.Observe(float64(steps))
	}
	if budgetExhausted {
		m.BudgetExhausted.Inc()
	}
}

// WritePrometheus writes all gathered metrics to w in the text exposition format.
func (m *Metrics) WritePrometheus(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
