// Package metrics holds the Prometheus collectors for the login guard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginsProcessed counts guard decisions by status (evaluated, failed, locked_now, locked).
	LoginsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginguard_logins_processed_total",
			Help: "Total number of login attempts processed, by outcome status",
		},
		[]string{"status"},
	)

	RuleScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loginguard_rule_score",
			Help:    "Distribution of clamped rule-based risk scores",
			Buckets: []float64{0, 10, 20, 30, 50, 70, 80, 90, 100},
		},
	)

	// RuleTriggered counts individual anomaly rules that fired.
	RuleTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginguard_rule_triggered_total",
			Help: "Total number of times each anomaly rule fired",
		},
		[]string{"rule"},
	)

	EnsembleScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loginguard_ensemble_score",
			Help:    "Distribution of blended ensemble risk scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	BruteForceScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loginguard_bruteforce_score",
			Help:    "Distribution of raw (unclamped) brute-force scores",
			Buckets: []float64{0, 60, 70, 80, 90, 150, 200, 300},
		},
	)

	AccountsLocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loginguard_accounts_locked_total",
			Help: "Total number of Unlocked to Locked transitions",
		},
	)

	GeoLookupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loginguard_geo_lookup_failures_total",
			Help: "Total number of IP geolocation lookups that failed",
		},
	)

	PersistenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginguard_persistence_errors_total",
			Help: "Total number of event or result persistence failures",
		},
		[]string{"kind"},
	)

	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginguard_alerts_total",
			Help: "Total number of alert deliveries, by result",
		},
		[]string{"result"},
	)

	IngestRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loginguard_ingest_rate_limited_total",
			Help: "Total number of ingest requests rejected by the rate limiter",
		},
	)
)
