package subscription

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the subscription lifecycle.
// A nil *Metrics records nothing.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	GatewayCalls    *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
	ReconcileItems  *prometheus.CounterVec
	ReconcileRuns   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "subscription",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by transition and outcome.",
		}, []string{"transition", "outcome"}),
		GatewayCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Billing provider calls by call and outcome.",
		}, []string{"call", "outcome"}),
		GatewayDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Billing provider call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call"}),
		ReconcileItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "reconcile",
			Name:      "items_total",
			Help:      "Expired pauses processed by the auto-resume job, by outcome.",
		}, []string{"outcome"}),
		ReconcileRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Auto-resume job runs by outcome.",
		}, []string{"outcome"}),
	}
}

const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
	outcomeDiverged = "diverged"
	outcomeSkipped  = "skipped"
	outcomeBusy     = "busy"
)

func (m *Metrics) transition(name, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) gatewayCall(call GatewayCall, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailed
	}
	m.GatewayCalls.WithLabelValues(call.String(), outcome).Inc()
	m.GatewayDuration.WithLabelValues(call.String()).Observe(took.Seconds())
}

func (m *Metrics) reconcileItem(outcome string) {
	if m == nil {
		return
	}
	m.ReconcileItems.WithLabelValues(outcome).Inc()
}

func (m *Metrics) reconcileRun(outcome string) {
	if m == nil {
		return
	}
	m.ReconcileRuns.WithLabelValues(outcome).Inc()
}
