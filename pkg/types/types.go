package types

import (
	"fmt"
	"strconv"
	"time"
)

// TablePrefix is prepended to a file id to name the table loaded from it
const TablePrefix = "dataset_"

// Workload is one client-submitted unit of work. Ops run strictly in
// sequence; schema changes made by one op are visible to the next.
type Workload struct {
	Ops []*Op
}

// Op is one SQL statement plus the files it reads
type Op struct {
	Statement   string
	SequenceNum int32
	Targets     []*File
}

// File references a remote object. ID is the deduplication key: two
// references with the same ID are the same logical file.
type File struct {
	ID   int32
	Path string // scheme://bucket/key
}

// TableName returns the dataset table the file is loaded into
func (f *File) TableName() string {
	return TablePrefix + strconv.FormatInt(int64(f.ID), 10)
}

// Validate checks the invariants a decoded workload must satisfy before it
// is executed: a file id maps to a single address, and sequence numbers
// increase strictly in array order.
func (w *Workload) Validate() error {
	paths := make(map[int32]string)
	for i, op := range w.Ops {
		if op == nil {
			return fmt.Errorf("%w: op %d is nil", ErrInvalidWorkload, i)
		}
		if i > 0 && op.SequenceNum <= w.Ops[i-1].SequenceNum {
			return fmt.Errorf("%w: op %d has sequence number %d, previous op has %d",
				ErrInvalidWorkload, i, op.SequenceNum, w.Ops[i-1].SequenceNum)
		}
		for _, f := range op.Targets {
			if f == nil {
				return fmt.Errorf("%w: op %d has a nil target", ErrInvalidWorkload, i)
			}
			if prev, ok := paths[f.ID]; ok && prev != f.Path {
				return fmt.Errorf("%w: file %d refers to both %q and %q",
					ErrInvalidWorkload, f.ID, prev, f.Path)
			}
			paths[f.ID] = f.Path
		}
	}
	return nil
}

// LocalFile pairs a file reference with the path it was localized to
type LocalFile struct {
	File *File
	Path string
}

// ResultSet is the rows produced by the final op of a workload. Cells hold
// whatever the store driver returned; the store does not track column types.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the result set has no columns and no rows
func (r *ResultSet) Empty() bool {
	return r == nil || (len(r.Columns) == 0 && len(r.Rows) == 0)
}

// Signal is the first byte of a frame header
type Signal byte

const (
	SignalPing     Signal = 0
	SignalWork     Signal = 1
	SignalShutdown Signal = 2
)

func (s Signal) String() string {
	switch s {
	case SignalPing:
		return "PING"
	case SignalWork:
		return "WORK"
	case SignalShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
	}
}

// Valid reports whether s is one of the recognised signal codes
func (s Signal) Valid() bool {
	return s <= SignalShutdown
}

// JobStatus is the outcome recorded for a handled connection
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusIgnored   JobStatus = "ignored" // ping, shutdown, or clean early close
)

// JobRecord is the ledger entry for one handled connection
type JobRecord struct {
	ID         string     `json:"id"`
	Remote     string     `json:"remote"`
	Signal     string     `json:"signal"`
	Ops        int        `json:"ops"`
	Files      int        `json:"files"`
	Status     JobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	Rows       int        `json:"rows"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Finish marks the record done with status, stamping FinishedAt
func (r *JobRecord) Finish(status JobStatus, err error) {
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns how long the job ran, or zero if it has not finished
func (r *JobRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
