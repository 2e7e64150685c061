package wire

import (
	"fmt"

	"github.com/cuemby/minicluster/pkg/types"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the workload message:
//
//	message File     { int32 id = 1; string path = 2; }
//	message Op       { string statement = 1; int32 op_sequence_num = 2; repeated File targets = 3; }
//	message Workload { repeated Op ops = 1; }
const (
	fieldWorkloadOps protowire.Number = 1

	fieldOpStatement protowire.Number = 1
	fieldOpSequence  protowire.Number = 2
	fieldOpTargets   protowire.Number = 3

	fieldFileID   protowire.Number = 1
	fieldFilePath protowire.Number = 2
)

// MarshalWorkload encodes w in protobuf wire format. Zero-valued scalar
// fields are omitted, as proto3 does.
func MarshalWorkload(w *types.Workload) []byte {
	var b []byte
	for _, op := range w.Ops {
		b = protowire.AppendTag(b, fieldWorkloadOps, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalOp(op))
	}
	return b
}

func marshalOp(op *types.Op) []byte {
	var b []byte
	if op.Statement != "" {
		b = protowire.AppendTag(b, fieldOpStatement, protowire.BytesType)
		b = protowire.AppendString(b, op.Statement)
	}
	if op.SequenceNum != 0 {
		b = protowire.AppendTag(b, fieldOpSequence, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(op.SequenceNum)))
	}
	for _, f := range op.Targets {
		b = protowire.AppendTag(b, fieldOpTargets, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalFile(f))
	}
	return b
}

func marshalFile(f *types.File) []byte {
	var b []byte
	if f.ID != 0 {
		b = protowire.AppendTag(b, fieldFileID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(f.ID)))
	}
	if f.Path != "" {
		b = protowire.AppendTag(b, fieldFilePath, protowire.BytesType)
		b = protowire.AppendString(b, f.Path)
	}
	return b
}

// UnmarshalWorkload decodes a protobuf-encoded workload. Unknown fields are
// skipped. Malformed input is an ErrProtocol.
func UnmarshalWorkload(b []byte) (*types.Workload, error) {
	w := &types.Workload{}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldWorkloadOps && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			op, err := unmarshalOp(v)
			if err != nil {
				return 0, err
			}
			w.Ops = append(w.Ops, op)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode workload: %w", types.ErrProtocol, err)
	}
	return w, nil
}

func unmarshalOp(b []byte) (*types.Op, error) {
	op := &types.Op{}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldOpStatement && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			op.Statement = v
			return n, nil
		case num == fieldOpSequence && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			op.SequenceNum = int32(v)
			return n, nil
		case num == fieldOpTargets && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			f, err := unmarshalFile(v)
			if err != nil {
				return 0, err
			}
			op.Targets = append(op.Targets, f)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, fmt.Errorf("op: %w", err)
	}
	return op, nil
}

func unmarshalFile(b []byte) (*types.File, error) {
	f := &types.File{}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldFileID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.ID = int32(v)
			return n, nil
		case num == fieldFilePath && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			f.Path = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	return f, nil
}

// consumeFields walks the tag/value pairs in b. fn consumes one field value
// and returns the number of bytes used, or a negative protowire error code.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
