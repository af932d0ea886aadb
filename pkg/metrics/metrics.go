package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BatchesSubmitted counts completed batch submissions by terminal status
var BatchesSubmitted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oms_batches_submitted_total",
		Help: "Total number of batch submissions by terminal status",
	},
	[]string{"status"},
)

// BatchOrders counts per-order outcomes across all batches
var BatchOrders = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oms_batch_orders_total",
		Help: "Total number of orders processed in batches by outcome",
	},
	[]string{"outcome"},
)

// AdmissionDecisions counts admission gate decisions
var AdmissionDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oms_admission_decisions_total",
		Help: "Total number of admission gate decisions",
	},
	[]string{"decision"},
)

// VenueCallLatency records latency distribution of bulk venue calls
var VenueCallLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "oms_venue_call_latency_seconds",
		Help:    "Latency in seconds of bulk calls to the trade venue",
		Buckets: prometheus.DefBuckets,
	},
)

// VenueCallErrors counts venue call failures by error class
var VenueCallErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "oms_venue_call_errors_total",
		Help: "Total number of failed venue calls by error class",
	},
	[]string{"class"},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oms_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
	)

	DBInUseConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oms_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
	)
)

// Overload detector self-observability
var (
	OverloadChecks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oms_overload_checks_total",
			Help: "Total number of overload detector evaluations",
		},
	)

	OverloadCheckLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oms_overload_check_latency_seconds",
			Help:    "Latency in seconds of overload detector evaluations",
			Buckets: []float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2},
		},
	)
)

func init() {
	prometheus.MustRegister(BatchesSubmitted, BatchOrders, AdmissionDecisions)
	prometheus.MustRegister(VenueCallLatency, VenueCallErrors)
	prometheus.MustRegister(DBOpenConns, DBInUseConns)
	prometheus.MustRegister(OverloadChecks, OverloadCheckLatency)
}
