/*
Package log provides structured logging for the worker using zerolog.

A single global Logger is configured once at startup by Init and shared by
every package. Logs go to stderr by default because stdout carries the
rendered result tables and must stay machine-readable.

# Usage

	log.Init(log.Config{Level: log.ParseLevel("debug"), JSONOutput: true})

	logger := log.WithComponent("worker")
	logger.Info().Str("addr", addr).Msg("Worker listening")

Per-connection loggers carry the job id and remote address so every line
of one job can be correlated:

	logger := log.WithConnection(base, jobID, conn.RemoteAddr().String())
	logger.Error().Err(err).Msg("Job failed")

# Output

Console (default):

	2026-10-14T09:12:03Z INF Job succeeded component=worker job_id=0192f1c2-... rows=3

JSON:

	{"level":"info","component":"worker","job_id":"0192f1c2-...","rows":3,"message":"Job succeeded"}

# Fields

  - component: emitting package (worker, job, cache, serve)
  - job_id: ledger id of the connection
  - remote_addr: peer address
  - error: attached with .Err(err)
*/
package log
