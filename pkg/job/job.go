// Package job builds and runs a single workload against the local store.
package job

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/minicluster/pkg/log"
	"github.com/cuemby/minicluster/pkg/metrics"
	"github.com/cuemby/minicluster/pkg/types"
	"github.com/rs/zerolog"
)

// Localizer materializes the files a workload references
type Localizer interface {
	LocalizeAll(ctx context.Context, w *types.Workload) ([]types.LocalFile, error)
}

// Store is the slice of the relational store gateway a job uses
type Store interface {
	Drop(ctx context.Context, table string) error
	Load(ctx context.Context, table, source string) error
	Execute(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (*types.ResultSet, error)
}

// Job binds a workload to the store it runs against. Build must succeed
// before Run.
type Job struct {
	workload *types.Workload
	store    Store
	logger   zerolog.Logger

	localized []types.LocalFile
}

// New creates a job for workload
func New(workload *types.Workload, store Store) *Job {
	if workload == nil {
		workload = &types.Workload{}
	}
	return &Job{
		workload: workload,
		store:    store,
		logger:   log.WithComponent("job"),
	}
}

// WithLogger replaces the job's logger, e.g. with one carrying a job id
func (j *Job) WithLogger(logger zerolog.Logger) *Job {
	j.logger = logger
	return j
}

// Workload returns the job's workload
func (j *Job) Workload() *types.Workload {
	return j.workload
}

// Localized returns the files the last Build loaded
func (j *Job) Localized() []types.LocalFile {
	return j.localized
}

// Build localizes every referenced file and reloads its dataset table. The
// table is always dropped first, so each build loads the current contents.
func (j *Job) Build(ctx context.Context, localizer Localizer) error {
	timer := metrics.NewTimer()
	defer timer.ObservePhase(metrics.PhaseBuild)

	files, err := localizer.LocalizeAll(ctx, j.workload)
	if err != nil {
		return err
	}
	j.logger.Debug().Int("files", len(files)).Msg("Localized workload files")

	for _, lf := range files {
		table := lf.File.TableName()
		if err := j.store.Drop(ctx, table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
		if err := j.store.Load(ctx, table, lf.Path); err != nil {
			return fmt.Errorf("failed to load %s from %s: %w", table, lf.Path, err)
		}
		j.logger.Debug().Str("table", table).Str("source", lf.Path).Msg("Loaded dataset table")
	}

	j.localized = files
	return nil
}

// Run executes the ops in sequence-number order. Every op but the last is
// executed for its side effects; the last is queried and its result set
// returned. A workload without ops returns an empty result set without
// touching the store.
func (j *Job) Run(ctx context.Context) (*types.ResultSet, error) {
	if len(j.workload.Ops) == 0 {
		return &types.ResultSet{}, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObservePhase(metrics.PhaseRun)

	ops := make([]*types.Op, len(j.workload.Ops))
	copy(ops, j.workload.Ops)
	sort.SliceStable(ops, func(a, b int) bool {
		return ops[a].SequenceNum < ops[b].SequenceNum
	})

	last := len(ops) - 1
	for _, op := range ops[:last] {
		if err := j.store.Execute(ctx, op.Statement); err != nil {
			return nil, fmt.Errorf("op %d: %w", op.SequenceNum, err)
		}
		j.logger.Debug().Int32("seq", op.SequenceNum).Msg("Executed op")
	}

	result, err := j.store.Query(ctx, ops[last].Statement)
	if err != nil {
		return nil, fmt.Errorf("op %d: %w", ops[last].SequenceNum, err)
	}
	j.logger.Debug().Int32("seq", ops[last].SequenceNum).Int("rows", len(result.Rows)).Msg("Queried final op")
	return result, nil
}
