/*
Package storage persists the worker's job ledger in BoltDB.

Every connection the worker handles becomes a JobRecord: its id, remote
address, signal, op and file counts, status, error, row count, and
timing. Records live in a single "jobs" bucket keyed by id and encoded as
JSON. Ids are UUIDv7, so keys sort by creation time and a cursor walk
returns jobs oldest first.

	ledger.db
	  └── jobs
	        ├── 0192f1c2-...  {"id":..., "status":"succeeded", ...}
	        └── 0192f1c3-...  {"id":..., "status":"failed", ...}

The ledger is an audit trail, not a source of truth. Workloads are never
replayed from it and losing it loses nothing the worker needs.

# Usage

	store, err := storage.NewBoltStore(cfg.LedgerPath())
	if err != nil {
		return err
	}
	defer store.Close()

	rec := &types.JobRecord{ID: id, Status: types.JobStatusRunning, StartedAt: time.Now()}
	store.CreateJob(rec)
	rec.Finish(types.JobStatusSucceeded, nil)
	store.UpdateJob(rec)

# Locking

BoltDB takes an exclusive file lock for writers. A serving worker holds
it for its lifetime, so OpenReadOnly from another process waits
openTimeout and then fails. Inspect the ledger of a stopped worker, or
scrape minicluster_ledger_jobs from a running one.

# See Also

  - pkg/worker for where records are written
  - pkg/metrics Collector for ledger gauges
*/
package storage
