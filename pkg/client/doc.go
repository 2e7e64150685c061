/*
Package client sends framed requests to a minicluster worker.

A Client is a thin, stateless wrapper over a TCP address. Each call dials a
fresh connection, writes exactly one frame, and closes. The protocol has no
response frame: results are rendered on the worker's stdout, so the client
only ever learns whether the frame was delivered.

# Usage

	c := client.NewClient("127.0.0.1:8000",
		client.WithDialTimeout(2*time.Second),
		client.WithWait(true),
	)

	if err := c.Ping(ctx); err != nil {
		return err
	}
	if err := c.Submit(ctx, workload); err != nil {
		return err
	}

SendRaw writes bytes untouched and exists for exercising the worker with
truncated or invalid frames:

	c.SendRaw(ctx, []byte{0x07, 0x00, 0x00})

# Waiting

By default a call returns as soon as the frame is written. WithWait makes
the client half-close its side and block until the worker closes the
connection, which the worker does once it has finished handling the
frame. The context bounds the wait:

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := c.Submit(ctx, workload)

# Error Handling

Dial, write, and wait failures are wrapped with types.ErrNetwork. Encoding
failures (payload over wire.MaxPayloadSize, unmarshalable workload) are
returned before dialing. When the context ends the error also wraps
ctx.Err():

	if errors.Is(err, context.DeadlineExceeded) {
		// worker did not finish in time
	}

# Thread Safety

A Client holds no connection state and may be shared between goroutines.
*/
package client
