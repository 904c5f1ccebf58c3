// Package metrics holds the Prometheus instruments of reconciliation and
// ledger posting. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recon"

// Metrics groups the instruments registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	BatchItems      *prometheus.CounterVec
	BatchDuration   prometheus.Histogram
	Confirmations   *prometheus.CounterVec
	Undos           prometheus.Counter
	Rejections      prometheus.Counter
	LedgerPosted    *prometheus.CounterVec
	LedgerFailures  *prometheus.CounterVec
	ReferenceChecks *prometheus.CounterVec
	ScheduledRuns   *prometheus.CounterVec
}

// New registers the instruments on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,

		BatchItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "batch_items_total",
			Help:      "Transactions processed by batch reconciliation, by outcome.",
		}, []string{"outcome"}),

		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch reconciliation runs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "confirmations_total",
			Help:      "Confirmed matches by reconciliation type.",
		}, []string{"type"}),

		Undos: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "undo_total",
			Help:      "Reconciliations undone.",
		}),

		Rejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "rejections_total",
			Help:      "Suggestions rejected.",
		}),

		LedgerPosted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_posted_total",
			Help:      "Ledger entries created, by status.",
		}, []string{"status"}),

		LedgerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "failures_total",
			Help:      "Ledger postings that failed, by reason.",
		}, []string{"reason"}),

		ReferenceChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reference",
			Name:      "validations_total",
			Help:      "Structured reference validations, by result.",
		}, []string{"result"}),

		ScheduledRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled batch runs, by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// BatchItem counts one batch outcome.
func (m *Metrics) BatchItem(outcome string) {
	if m == nil {
		return
	}
	m.BatchItems.WithLabelValues(outcome).Inc()
}

// ObserveBatch records the duration of a batch run.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

// Confirmation counts a confirmed match of type auto or manual.
func (m *Metrics) Confirmation(kind string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(kind).Inc()
}

// Undo counts an undone reconciliation.
func (m *Metrics) Undo() {
	if m == nil {
		return
	}
	m.Undos.Inc()
}

// Rejection counts a rejected suggestion.
func (m *Metrics) Rejection() {
	if m == nil {
		return
	}
	m.Rejections.Inc()
}

// LedgerEntry counts a created entry.
func (m *Metrics) LedgerEntry(status string) {
	if m == nil {
		return
	}
	m.LedgerPosted.WithLabelValues(status).Inc()
}

// LedgerFailure counts a failed posting.
func (m *Metrics) LedgerFailure(reason string) {
	if m == nil {
		return
	}
	m.LedgerFailures.WithLabelValues(reason).Inc()
}

// ReferenceCheck counts a reference validation.
func (m *Metrics) ReferenceCheck(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.ReferenceChecks.WithLabelValues(result).Inc()
}

// ScheduledRun counts a scheduler tick.
func (m *Metrics) ScheduledRun(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.ScheduledRuns.WithLabelValues(result).Inc()
}
