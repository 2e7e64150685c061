package storage

import (
	"errors"

	"github.com/cuemby/minicluster/pkg/types"
)

// ErrJobNotFound is returned when no record exists for a job id
var ErrJobNotFound = errors.New("job not found")

// JobStore is the ledger of connections the worker has handled
type JobStore interface {
	// CreateJob inserts a new record; an existing id is overwritten
	CreateJob(job *types.JobRecord) error
	GetJob(id string) (*types.JobRecord, error)
	// ListJobs returns records in key order, which for time-ordered ids is
	// the order jobs started
	ListJobs() ([]*types.JobRecord, error)
	UpdateJob(job *types.JobRecord) error
	DeleteJob(id string) error

	Close() error
}

var _ JobStore = (*BoltStore)(nil)
