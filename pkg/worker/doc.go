/*
Package worker implements the TCP worker that accepts framed requests and
executes workloads against the local store.

The worker is the whole data plane of a minicluster node. It binds one
listening socket, handles one connection at a time, and for every WORK
frame it localizes the referenced files, loads them into dataset tables,
runs the workload's ops in sequence order, and renders the final result
set as a pipe-delimited table on its output writer.

# Architecture

	┌──────────────────────── WORKER NODE ─────────────────────────┐
	│                                                                │
	│   client ──TCP──► ┌────────────────────────┐                  │
	│                   │ Worker                 │                  │
	│                   │  - accept loop         │                  │
	│                   │  - frame dispatch      │                  │
	│                   │  - shutdown latch      │                  │
	│                   └──────┬─────────────────┘                  │
	│                          │ WORK                               │
	│                   ┌──────▼─────────────────┐   ┌───────────┐  │
	│                   │ job.Job                │──►│ ledger    │  │
	│                   │  Build: localize, load │   │ (bbolt)   │  │
	│                   │  Run:   ops by seq     │   └───────────┘  │
	│                   └──┬──────────────┬──────┘                  │
	│                      │              │                         │
	│             ┌────────▼──────┐ ┌─────▼─────────┐               │
	│             │ cache         │ │ db.Gateway    │               │
	│             │ <root>/b/key  │ │ db.sqlite     │               │
	│             └────────┬──────┘ └─────┬─────────┘               │
	│                      │              │                         │
	│                 object store   render.Table ──► stdout        │
	└────────────────────────────────────────────────────────────────┘

# Frame Dispatch

Every connection starts with a 3-byte header read by wire.ReadFrame:

	PING      no payload, logged and ignored
	WORK      protobuf Workload payload, executed as a job
	SHUTDOWN  no payload, stops the accept loop when HonorShutdown is set

An unknown signal byte is an ErrProtocol failure scoped to that
connection. The worker logs it, records the job as failed, and keeps
accepting. A peer that closes before sending a full header is recorded
as ignored and does not count as a failure.

# Worker Lifecycle

Startup:
 1. NewWorker validates the Config and applies defaults
 2. Listen binds Config.Addr (port 0 picks a free port, read it via Addr)
 3. Serve runs the accept loop until ctx is done, Stop is called, or a
    SHUTDOWN frame is honoured

Request:
 1. Accept a connection and assign a time-ordered job id
 2. Read the header and payload
 3. Dispatch on signal
 4. Close the connection and record the outcome

Shutdown:
 1. Cancelling ctx or calling Stop closes the listener
 2. A job that has already started runs to completion
 3. Serve returns nil once the loop exits

Jobs run on a context detached from Serve's, so cancellation never
leaves a dataset table half loaded. Bounded waiting is the client's
concern.

# Usage

	localizer := cache.NewLocalizer(cfg.CacheDir(), fetcher, cfg.Cache.Concurrency)
	gateway := db.NewGateway(cfg.DatabasePath())

	w, err := worker.NewWorker(&worker.Config{
		Addr:          cfg.Addr(),
		Localizer:     localizer,
		Store:         gateway,
		Ledger:        ledger,
		HonorShutdown: true,
	})
	if err != nil {
		return err
	}
	if err := w.Listen(); err != nil {
		return err
	}
	return w.Serve(ctx)

Connections can also be driven directly, which is how the tests exercise
the protocol without a socket:

	server, client := net.Pipe()
	go w.HandleConnection(ctx, server)

# Failure Scenarios

Object Fetch Fails:
  - The job fails with ErrStorage before any table is touched
  - Nothing is rendered, the worker keeps serving

Malformed CSV Header:
  - The job fails with ErrSchema, the table is not created
  - The next WORK naming the same file retries the load

Statement Error:
  - Earlier ops that succeeded are not rolled back
  - The job fails with ErrDatabase

Ledger Unavailable:
  - Write errors are logged and otherwise ignored
  - Serving is never blocked on the ledger

# Monitoring

  - minicluster_connections_total{signal}: traffic by signal
  - minicluster_jobs_total{status}: job outcomes
  - minicluster_job_phase_duration_seconds{phase}: decode, build, run, render
  - minicluster_rows_returned_total: rendered rows

# See Also

  - pkg/wire for the frame format
  - pkg/job for workload execution
  - pkg/client for the sending side
*/
package worker
