// Package metrics holds the ledger's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledger"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	journalOps       *prometheus.CounterVec
	journalDuration  *prometheus.HistogramVec
	validationIssues *prometheus.CounterVec
	txRetries        prometheus.Counter
	trialBalanceRows prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		journalOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_operations_total",
			Help:      "Journal operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		journalDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "journal_operation_duration_seconds",
			Help:      "Journal operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		validationIssues: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_issues_total",
			Help:      "Rejected journal input issues by kind.",
		}, []string{"kind"}),
		txRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posting_tx_retries_total",
			Help:      "Posting transactions retried after a write conflict.",
		}),
		trialBalanceRows: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trial_balance_rows",
			Help:      "Rows returned per trial balance.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// JournalOp records one create/update/delete/get with its outcome
// ("ok" or an error kind).
func (m *Metrics) JournalOp(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.journalOps.WithLabelValues(op, outcome).Inc()
	m.journalDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ValidationIssue counts one rejected input issue.
func (m *Metrics) ValidationIssue(kind string) {
	if m == nil {
		return
	}
	m.validationIssues.WithLabelValues(kind).Inc()
}

// TxRetry counts a retried posting transaction.
func (m *Metrics) TxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// TrialBalance records the size of a computed report.
func (m *Metrics) TrialBalance(rows int) {
	if m == nil {
		return
	}
	m.trialBalanceRows.Observe(float64(rows))
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
