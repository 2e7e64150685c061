/*
Package types defines the data model shared by every stage of the worker.

A Workload is an ordered list of Ops. Each Op carries a SQL statement, its
sequence number, and the Files it depends on. A File is identified by an
integer id, which is the deduplication key across ops, and addressed as
s3://bucket/key. Each localized file becomes the table dataset_<id>.

	Workload
	  └── Op (statement, sequence number)
	        └── File (id, s3://bucket/key)  ──►  table dataset_<id>

Only the final Op produces a ResultSet. Earlier ops are expected to be
side-effecting (DDL/DML) and their rows, if any, are discarded.

# Error kinds

The worker reports failures by kind. Each kind is a sentinel that callers
test with errors.Is:

	ErrNetwork   socket and connection failures
	ErrStorage   object fetch failures (ErrAddress for malformed addresses)
	ErrSchema    missing or malformed table header
	ErrDatabase  store connection, query, or row decode failures
	ErrProtocol  unrecognised signal byte, malformed payload, invalid workload
	ErrRender    a result cell no candidate decoder understands
*/
package types
