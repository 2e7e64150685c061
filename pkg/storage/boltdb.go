package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/minicluster/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketJobs = []byte("jobs")
)

// openTimeout bounds how long Open waits for the file lock held by another
// process
const openTimeout = time.Second

// ErrLedgerMissing is returned by OpenReadOnly when no ledger file exists
var ErrLedgerMissing = errors.New("job ledger does not exist")

// BoltStore implements JobStore using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the ledger file at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketJobs); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketJobs, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// OpenReadOnly opens an existing ledger for inspection. It fails with
// bolt.ErrTimeout while a running worker holds the file.
func OpenReadOnly(path string) (*BoltStore, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrLedgerMissing, path)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Job operations
func (s *BoltStore) CreateJob(job *types.JobRecord) error {
	if job.ID == "" {
		return errors.New("job record has no id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return b.Put([]byte(job.ID), data)
	})
}

func (s *BoltStore) GetJob(id string) (*types.JobRecord, error) {
	var job types.JobRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		if b == nil {
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *BoltStore) ListJobs() ([]*types.JobRecord, error) {
	var jobs []*types.JobRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var job types.JobRecord
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("failed to decode job %s: %w", k, err)
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	return jobs, err
}

func (s *BoltStore) UpdateJob(job *types.JobRecord) error {
	return s.CreateJob(job) // upsert
}

func (s *BoltStore) DeleteJob(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).Delete([]byte(id))
	})
}

// CountByStatus tallies records per status
func (s *BoltStore) CountByStatus() (map[types.JobStatus]int, error) {
	jobs, err := s.ListJobs()
	if err != nil {
		return nil, err
	}
	counts := make(map[types.JobStatus]int)
	for _, job := range jobs {
		counts[job.Status]++
	}
	return counts, nil
}
