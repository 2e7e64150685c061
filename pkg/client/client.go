package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/cuemby/minicluster/pkg/types"
	"github.com/cuemby/minicluster/pkg/wire"
)

// DefaultDialTimeout bounds connection setup
const DefaultDialTimeout = 5 * time.Second

// Client sends single frames to a worker. The protocol has no response:
// each call dials, writes one frame, and closes.
type Client struct {
	addr        string
	dialTimeout time.Duration
	wait        bool
}

// Option configures a Client
type Option func(*Client)

// WithDialTimeout overrides DefaultDialTimeout
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithWait makes every call block until the worker closes the connection,
// which it does once it has finished handling the frame
func WithWait(wait bool) Option {
	return func(c *Client) { c.wait = wait }
}

// NewClient creates a client for the worker at addr (host:port)
func NewClient(addr string, opts ...Option) *Client {
	c := &Client{addr: addr, dialTimeout: DefaultDialTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addr returns the worker address
func (c *Client) Addr() string {
	return c.addr
}

// Ping sends a PING frame
func (c *Client) Ping(ctx context.Context) error {
	return c.Send(ctx, types.SignalPing, nil)
}

// Shutdown sends a SHUTDOWN frame
func (c *Client) Shutdown(ctx context.Context) error {
	return c.Send(ctx, types.SignalShutdown, nil)
}

// Submit serializes w and sends it in a WORK frame
func (c *Client) Submit(ctx context.Context, w *types.Workload) error {
	return c.Send(ctx, types.SignalWork, wire.MarshalWorkload(w))
}

// Send encodes and sends one frame
func (c *Client) Send(ctx context.Context, signal types.Signal, payload []byte) error {
	frame, err := wire.EncodeFrame(signal, payload)
	if err != nil {
		return err
	}
	return c.SendRaw(ctx, frame)
}

// SendRaw writes b verbatim, which may be a truncated or malformed frame
func (c *Client) SendRaw(ctx context.Context, b []byte) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: failed to connect to %s: %w", types.ErrNetwork, c.addr, err)
	}
	defer conn.Close()

	// Cancellation forces any blocked read or write to fail
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(b); err != nil {
		return c.wrap(ctx, fmt.Errorf("%w: failed to write frame: %w", types.ErrNetwork, err))
	}

	if !c.wait {
		return nil
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	// The worker never replies, so anything before EOF is discarded
	if _, err := io.Copy(io.Discard, conn); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, syscall.ECONNRESET) {
		return c.wrap(ctx, fmt.Errorf("%w: waiting for worker: %w", types.ErrNetwork, err))
	}
	return nil
}

// wrap prefers the context error when the deadline was forced by cancellation
func (c *Client) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", err, ctxErr)
	}
	return err
}
