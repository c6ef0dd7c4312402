package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the payment core.
type Metrics struct {
	webhooksReceived   *prometheus.CounterVec
	decisionsApplied   *prometheus.CounterVec
	decisionDuration   prometheus.Histogram
	pollTicks          *prometheus.CounterVec
	sweepRuns          prometheus.Counter
	sweepErrors        prometheus.Counter
	idempotencyReplays prometheus.Counter
}

// New registers the core collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aruspay_webhooks_received_total",
			Help: "Inbound provider webhooks by provider and verification outcome.",
		}, []string{"provider", "outcome"}),
		decisionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aruspay_decisions_applied_total",
			Help: "Terminal decisions applied by the ledger engine.",
		}, []string{"kind", "status"}),
		decisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aruspay_decision_duration_seconds",
			Help:    "Duration of ledger engine decision transactions.",
			Buckets: prometheus.DefBuckets,
		}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aruspay_poll_ticks_total",
			Help: "Per-payment reconciliation poll ticks by result.",
		}, []string{"result"}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aruspay_sweep_runs_total",
			Help: "Periodic reconciliation sweep passes.",
		}),
		sweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aruspay_sweep_errors_total",
			Help: "Errors observed during sweep passes.",
		}),
		idempotencyReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aruspay_idempotency_replays_total",
			Help: "Requests answered from the idempotency cache.",
		}),
	}

	reg.MustRegister(
		m.webhooksReceived,
		m.decisionsApplied,
		m.decisionDuration,
		m.pollTicks,
		m.sweepRuns,
		m.sweepErrors,
		m.idempotencyReplays,
	)
	return m
}

func (m *Metrics) RecordWebhook(provider, outcome string) {
	if m == nil {
		return
	}
	m.webhooksReceived.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) RecordDecision(kind string, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.decisionsApplied.WithLabelValues(kind, status).Inc()
	m.decisionDuration.Observe(took.Seconds())
}

func (m *Metrics) RecordPollTick(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pollTicks.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSweep(err error) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	if err != nil {
		m.sweepErrors.Inc()
	}
}

func (m *Metrics) RecordIdempotencyReplay() {
	if m == nil {
		return
	}
	m.idempotencyReplays.Inc()
}
