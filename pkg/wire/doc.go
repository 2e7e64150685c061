/*
Package wire implements the worker's frame format and Workload codec.

A frame is a 3-byte header followed by a payload:

	 0        1        2        3 ...
	┌────────┬────────┬────────┬──────────────────────┐
	│ signal │ len hi │ len lo │ payload (len bytes)  │
	└────────┴────────┴────────┴──────────────────────┘

The length is a big-endian uint16, so payloads top out at MaxPayloadSize.
PING and SHUTDOWN carry no payload. WORK carries a protobuf-encoded
Workload:

	Workload { repeated Op ops = 1; }
	Op       { string statement = 1; int32 op_sequence_num = 2; repeated File targets = 3; }
	File     { int32 id = 1; string path = 2; }

The codec is written against protowire directly. Unknown fields are
skipped and a missing field decodes to its zero value, so payloads from
newer senders still decode.

ReadFrame reports a peer that hangs up mid-frame as ErrPeerClosed rather
than an error, since clients routinely connect and leave.
*/
package wire
