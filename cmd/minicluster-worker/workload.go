package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cuemby/minicluster/pkg/types"
	"gopkg.in/yaml.v3"
)

// WorkloadFile is the YAML form of a workload accepted by submit and frame:
//
//	ops:
//	  - statement: SELECT * FROM dataset_1
//	    seq: 1
//	    targets:
//	      - id: 1
//	        path: s3://bucket/key.csv
type WorkloadFile struct {
	Ops []OpSpec `yaml:"ops"`
}

// OpSpec is one op of a WorkloadFile. Seq defaults to the op's position.
type OpSpec struct {
	Statement string       `yaml:"statement"`
	Seq       *int32       `yaml:"seq,omitempty"`
	Targets   []TargetSpec `yaml:"targets,omitempty"`
}

// TargetSpec is a file an op depends on, by id and s3:// address
type TargetSpec struct {
	ID   int32  `yaml:"id"`
	Path string `yaml:"path"`
}

// Workload converts the file to the wire model. Ops without seq are
// numbered by position starting at 1. Files that share an id share one
// File value.
func (f *WorkloadFile) Workload() (*types.Workload, error) {
	files := make(map[int32]*types.File)
	w := &types.Workload{}

	for i, spec := range f.Ops {
		op := &types.Op{Statement: spec.Statement, SequenceNum: int32(i + 1)}
		if spec.Seq != nil {
			op.SequenceNum = *spec.Seq
		}
		for _, t := range spec.Targets {
			file, ok := files[t.ID]
			if !ok {
				file = &types.File{ID: t.ID, Path: t.Path}
				files[t.ID] = file
			} else if file.Path != t.Path {
				return nil, fmt.Errorf("file %d refers to both %q and %q", t.ID, file.Path, t.Path)
			}
			op.Targets = append(op.Targets, file)
		}
		w.Ops = append(w.Ops, op)
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// parseWorkload decodes a YAML workload document
func parseWorkload(data []byte) (*types.Workload, error) {
	var f WorkloadFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse workload: %w", err)
	}
	return f.Workload()
}

// readWorkload loads a YAML workload from path, or stdin when path is "-"
func readWorkload(path string) (*types.Workload, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return parseWorkload(data)
}
