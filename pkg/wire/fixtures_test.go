package wire

import "github.com/cuemby/minicluster/pkg/types"

// Test fixtures. Zero-valued arguments fall back to the defaults below.

func craftFile(id int32, path string) *types.File {
	if id == 0 {
		id = 1
	}
	if path == "" {
		path = "s3://foo/bar"
	}
	return &types.File{ID: id, Path: path}
}

func craftOp(targets []*types.File, statement string, seq int32) *types.Op {
	if targets == nil {
		targets = []*types.File{craftFile(0, "")}
	}
	if statement == "" {
		statement = "SELECT * FROM table"
	}
	if seq == 0 {
		seq = 1
	}
	return &types.Op{Statement: statement, SequenceNum: seq, Targets: targets}
}

func craftWorkload(ops ...*types.Op) *types.Workload {
	if len(ops) == 0 {
		ops = []*types.Op{craftOp(nil, "", 0)}
	}
	return &types.Workload{Ops: ops}
}
