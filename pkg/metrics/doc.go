/*
Package metrics provides Prometheus metrics and health endpoints for the
worker.

Metrics are package-level collectors registered with the default registry
at init. Every stage of a job reports into them: the worker counts
connections and outcomes, the cache counts fetched files and bytes, the job
times its phases, and the Collector samples ledger totals on an interval.

# Metrics

Traffic:
  - minicluster_connections_total{signal}: connections by decoded signal
    (PING, WORK, SHUTDOWN, INVALID, CLOSED)
  - minicluster_jobs_total{status}: handled connections by outcome

Execution:
  - minicluster_job_phase_duration_seconds{phase}: decode, build, run, render
  - minicluster_rows_returned_total: rows rendered to the output writer

Cache:
  - minicluster_files_localized_total: objects fetched from the store
  - minicluster_bytes_fetched_total: bytes written into the cache

Ledger:
  - minicluster_ledger_jobs{status}: recorded jobs, sampled by Collector

# Usage

Timing a phase:

	timer := metrics.NewTimer()
	err := job.Build(ctx)
	timer.ObservePhase(metrics.PhaseBuild)

Serving the endpoints:

	srv := &http.Server{Addr: ":9090", Handler: metrics.NewServeMux()}
	go srv.ListenAndServe()

# Health

The HealthChecker tracks component status reported by the worker:

	metrics.UpdateComponent(metrics.ComponentListener, true, lis.Addr().String())
	metrics.UpdateComponent(metrics.ComponentDatabase, false, err.Error())

/health reports every component, /ready fails while a critical component
(listener, database) is unhealthy, and /live answers 200 while the process
runs. Storage and ledger are informational only.

# See Also

  - pkg/worker for where connection metrics are recorded
  - pkg/storage for the ledger sampled by Collector
*/
package metrics
