package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job phases observed by JobPhaseDuration
const (
	PhaseDecode = "decode"
	PhaseBuild  = "build"
	PhaseRun    = "run"
	PhaseRender = "render"
)

var (
	// Connection metrics
	ConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minicluster_connections_total",
			Help: "Total number of connections handled by received signal",
		},
		[]string{"signal"},
	)

	// Job metrics
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minicluster_jobs_total",
			Help: "Total number of jobs by final status",
		},
		[]string{"status"},
	)

	JobPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minicluster_job_phase_duration_seconds",
			Help:    "Time spent in each job phase in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	RowsReturned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minicluster_rows_returned_total",
			Help: "Total number of result rows rendered",
		},
	)

	// Cache metrics
	FilesLocalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minicluster_files_localized_total",
			Help: "Total number of files written to the local cache",
		},
	)

	BytesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minicluster_bytes_fetched_total",
			Help: "Total number of bytes fetched from object storage",
		},
	)

	// Ledger metrics, refreshed by Collector
	LedgerJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "minicluster_ledger_jobs",
			Help: "Number of jobs recorded in the ledger by status",
		},
		[]string{"status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobPhaseDuration)
	prometheus.MustRegister(RowsReturned)
	prometheus.MustRegister(FilesLocalized)
	prometheus.MustRegister(BytesFetched)
	prometheus.MustRegister(LedgerJobs)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServeMux returns a mux exposing /metrics, /health, /ready and /live
func NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/ready", ReadyHandler())
	mux.HandleFunc("/live", LivenessHandler())
	return mux
}
