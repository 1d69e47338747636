package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Batch metrics
	BatchesApplied  *prometheus.CounterVec
	BatchDuration   prometheus.Histogram
	BatchSize       prometheus.Histogram
	EntriesApplied  prometheus.Counter
	EntriesReplayed prometheus.Counter
	EntriesRejected *prometheus.CounterVec
	EntryAmount     prometheus.Histogram

	// Profile metrics
	ProfilesCreated      prometheus.Counter
	ReconciliationChecks *prometheus.CounterVec

	// Cache metrics
	BalanceCacheLookups *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates and registers all Prometheus metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Batch metrics
		BatchesApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offledger_batches_applied_total",
				Help: "Total number of sync batches by outcome",
			},
			[]string{"outcome"},
		),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "offledger_batch_duration_seconds",
			Help:    "Duration of batch reconciliation",
			Buckets: prometheus.DefBuckets,
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "offledger_batch_entries",
			Help:    "Number of entries per submitted batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		EntriesApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "offledger_entries_applied_total",
			Help: "Total number of entries written to the ledger",
		}),
		EntriesReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "offledger_entries_replayed_total",
			Help: "Total number of already known entries acknowledged again",
		}),
		EntriesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offledger_entries_rejected_total",
				Help: "Total number of rejected entries by reason",
			},
			[]string{"reason"},
		),
		EntryAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "offledger_entry_amount",
			Help:    "Amounts of applied entries",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),

		// Profile metrics
		ProfilesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "offledger_profiles_created_total",
			Help: "Total number of profiles created",
		}),
		ReconciliationChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offledger_reconciliation_checks_total",
				Help: "Total profile reconciliation checks by result",
			},
			[]string{"result"},
		),

		// Cache metrics
		BalanceCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offledger_balance_cache_lookups_total",
				Help: "Balance cache lookups by result",
			},
			[]string{"result"},
		),

		// Authentication metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "offledger_rate_limit_hits_total",
			Help: "Total requests refused by the rate limiter",
		}),
	}
}
