package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the client's counters. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	pollCycles  *prometheus.CounterVec
	submissions *prometheus.CounterVec
	lastSeq     prometheus.Gauge
}

// Poll cycle outcomes.
const (
	CycleStarted   = "started"
	CycleApplied   = "applied"
	CycleFailed    = "failed"
	CycleStale     = "stale"
	CycleDiscarded = "discarded" // finished after Stop
)

// Submission outcomes.
const (
	SubmitConfirmed = "confirmed"
	SubmitInvalid   = "invalid"
	SubmitRejected  = "rejected"
	SubmitFailed    = "failed"
	CancelConfirmed = "cancel_confirmed"
	CancelFailed    = "cancel_failed"
)

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookwatch_poll_cycles_total",
			Help: "Poll cycles by outcome",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookwatch_submissions_total",
			Help: "Order submissions and cancels by outcome",
		}, []string{"outcome"}),
		lastSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bookwatch_store_seq",
			Help: "Sequence number of the last applied poll cycle",
		}),
	}
	reg.MustRegister(m.pollCycles, m.submissions, m.lastSeq)
	return m
}

func (m *Metrics) Cycle(outcome string) {
	if m == nil {
		return
	}
	m.pollCycles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Applied(seq uint64) {
	if m == nil {
		return
	}
	m.pollCycles.WithLabelValues(CycleApplied).Inc()
	m.lastSeq.Set(float64(seq))
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}
