package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cuemby/minicluster/pkg/cache"
	"github.com/cuemby/minicluster/pkg/job"
	"github.com/cuemby/minicluster/pkg/log"
	"github.com/cuemby/minicluster/pkg/metrics"
	"github.com/cuemby/minicluster/pkg/render"
	"github.com/cuemby/minicluster/pkg/storage"
	"github.com/cuemby/minicluster/pkg/types"
	"github.com/cuemby/minicluster/pkg/wire"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Worker accepts one connection at a time and runs the workload it carries
type Worker struct {
	addr          string
	localizer     job.Localizer
	store         job.Store
	ledger        storage.JobStore
	output        io.Writer
	honorShutdown bool
	logger        zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	running  bool

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// Config holds worker configuration
type Config struct {
	Addr          string           // host:port to bind, port 0 picks a free port
	Localizer     job.Localizer    // materializes workload files
	Store         job.Store        // relational store gateway
	Ledger        storage.JobStore // optional, nil disables job records
	Output        io.Writer        // rendered results, defaults to os.Stdout
	HonorShutdown bool             // stop serving after a SHUTDOWN frame
}

// pinger is implemented by stores that can check their connection
type pinger interface {
	Ping(ctx context.Context) error
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) (*Worker, error) {
	if cfg.Localizer == nil {
		return nil, errors.New("worker requires a localizer")
	}
	if cfg.Store == nil {
		return nil, errors.New("worker requires a store")
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	return &Worker{
		addr:          cfg.Addr,
		localizer:     cfg.Localizer,
		store:         cfg.Store,
		ledger:        cfg.Ledger,
		output:        output,
		honorShutdown: cfg.HonorShutdown,
		logger:        log.WithComponent("worker"),
		shutdownCh:    make(chan struct{}),
	}, nil
}

// Listen binds the listener. Serve calls it if it has not been called.
func (w *Worker) Listen() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.listener != nil {
		return nil
	}

	lis, err := net.Listen("tcp", w.addr)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentListener, false, err.Error())
		return fmt.Errorf("%w: failed to listen on %s: %w", types.ErrNetwork, w.addr, err)
	}
	w.listener = lis
	metrics.UpdateComponent(metrics.ComponentListener, true, lis.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen
func (w *Worker) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

// ShutdownRequested is closed once a SHUTDOWN frame has been honoured
func (w *Worker) ShutdownRequested() <-chan struct{} {
	return w.shutdownCh
}

func (w *Worker) requestShutdown() {
	w.shutdownOnce.Do(func() {
		close(w.shutdownCh)
		w.closeListener()
	})
}

func (w *Worker) closeListener() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener != nil {
		_ = w.listener.Close()
	}
}

func (w *Worker) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-w.shutdownCh:
		return true
	default:
		return false
	}
}

// Serve accepts connections strictly one after another: the next Accept
// happens only once the current connection is fully handled. It returns nil
// when ctx is canceled or a SHUTDOWN frame is honoured, after the connection
// in progress completes. Failed connections are logged and do not stop the
// loop, and failed accepts are retried with backoff.
func (w *Worker) Serve(ctx context.Context) error {
	if err := w.Listen(); err != nil {
		return err
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already serving")
	}
	w.running = true
	lis := w.listener
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		metrics.UpdateComponent(metrics.ComponentListener, false, "stopped")
	}()

	if p, ok := w.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			metrics.UpdateComponent(metrics.ComponentDatabase, false, err.Error())
			return err
		}
		metrics.UpdateComponent(metrics.ComponentDatabase, true, "")
	}

	// Closing the listener is what unblocks Accept on cancellation
	stop := context.AfterFunc(ctx, w.closeListener)
	defer stop()

	w.logger.Info().
		Str("address", lis.Addr().String()).
		Bool("honor_shutdown", w.honorShutdown).
		Msg("Worker listening")

	var delay time.Duration
	for {
		conn, err := lis.Accept()
		if err != nil {
			if w.stopping(ctx) {
				w.logger.Info().Msg("Worker stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%w: accept failed: %w", types.ErrNetwork, err)
			}

			// Transient failures such as EMFILE or ECONNABORTED: back off and retry
			delay = nextAcceptDelay(delay)
			w.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Accept failed")
			if !w.sleep(ctx, delay) {
				w.logger.Info().Msg("Worker stopped")
				return nil
			}
			continue
		}
		delay = 0

		// A job that has started runs to completion even if ctx is canceled
		_ = w.HandleConnection(context.WithoutCancel(ctx), conn)

		if w.stopping(ctx) {
			w.logger.Info().Msg("Worker stopped")
			return nil
		}
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// nextAcceptDelay doubles the previous delay, bounded by maxAcceptDelay
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	return min(prev*2, maxAcceptDelay)
}

// sleep waits for d and reports false if the worker was stopped meanwhile
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.shutdownCh:
		return false
	}
}

// Stop closes the listener; a Serve in progress returns once the current
// connection completes
func (w *Worker) Stop() {
	w.requestShutdown()
}

// newJobID returns a time-ordered id so ledger keys sort by start time
func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// HandleConnection reads one frame from conn, acts on it, and closes conn.
// A peer that closes before sending a complete frame is a clean exit and
// returns nil. Any other failure is logged, recorded, and returned.
func (w *Worker) HandleConnection(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	rec := &types.JobRecord{
		ID:        newJobID(),
		Remote:    conn.RemoteAddr().String(),
		Status:    types.JobStatusRunning,
		StartedAt: time.Now(),
	}
	logger := log.WithConnection(w.logger, rec.ID, rec.Remote)

	status, err := w.handle(ctx, conn, rec, logger)

	rec.Finish(status, err)
	metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	w.record(logger, rec, false)

	if err != nil {
		logger.Error().Err(err).Str("signal", rec.Signal).Msg("Job failed")
		return err
	}
	logger.Info().
		Str("signal", rec.Signal).
		Str("status", string(status)).
		Dur("duration", rec.Duration()).
		Msg("Connection handled")
	return nil
}

func (w *Worker) handle(ctx context.Context, conn net.Conn, rec *types.JobRecord, logger zerolog.Logger) (types.JobStatus, error) {
	frame, err := wire.ReadFrame(conn)
	metrics.ConnectionsTotal.WithLabelValues(signalLabel(frame)).Inc()
	if frame != nil {
		rec.Signal = frame.Signal.String()
	}
	if errors.Is(err, wire.ErrPeerClosed) {
		logger.Info().Msg("Client closed the connection before sending a complete frame")
		return types.JobStatusIgnored, nil
	}
	if err != nil {
		return types.JobStatusFailed, err
	}

	switch frame.Signal {
	case types.SignalPing:
		logger.Info().Msg("Received PING signal")
		return types.JobStatusIgnored, nil

	case types.SignalShutdown:
		logger.Info().Bool("honored", w.honorShutdown).Msg("Received SHUTDOWN signal")
		if w.honorShutdown {
			w.requestShutdown()
		}
		return types.JobStatusIgnored, nil

	default:
		logger.Info().Int("payload_bytes", len(frame.Payload)).Msg("Received WORK signal")
		if err := w.runWork(ctx, frame.Payload, rec, logger); err != nil {
			return types.JobStatusFailed, err
		}
		return types.JobStatusSucceeded, nil
	}
}

// signalLabel bounds the connections metric to the known signals plus
// INVALID and CLOSED
func signalLabel(frame *wire.Frame) string {
	switch {
	case frame == nil:
		return "CLOSED"
	case !frame.Signal.Valid():
		return "INVALID"
	default:
		return frame.Signal.String()
	}
}

// runWork decodes the payload and drives it through build, run and render
func (w *Worker) runWork(ctx context.Context, payload []byte, rec *types.JobRecord, logger zerolog.Logger) error {
	timer := metrics.NewTimer()
	workload, err := wire.UnmarshalWorkload(payload)
	if err != nil {
		return err
	}
	if err := workload.Validate(); err != nil {
		return err
	}
	timer.ObservePhase(metrics.PhaseDecode)

	rec.Ops = len(workload.Ops)
	rec.Files = len(cache.GetFiles(workload))
	w.record(logger, rec, true)

	j := job.New(workload, w.store).WithLogger(logger)

	logger.Debug().Int("ops", rec.Ops).Int("files", rec.Files).Msg("Building job")
	if err := j.Build(ctx, w.localizer); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	logger.Debug().Msg("Running job")
	result, err := j.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	timer = metrics.NewTimer()
	if err := render.Table(w.output, result); err != nil {
		return err
	}
	timer.ObservePhase(metrics.PhaseRender)

	rec.Rows = len(result.Rows)
	metrics.RowsReturned.Add(float64(rec.Rows))
	logger.Info().Int("rows", rec.Rows).Msg("Done processing workload")
	return nil
}

// record writes rec to the ledger. Ledger failures never fail the job.
func (w *Worker) record(logger zerolog.Logger, rec *types.JobRecord, create bool) {
	if w.ledger == nil {
		return
	}

	var err error
	if create {
		err = w.ledger.CreateJob(rec)
	} else {
		err = w.ledger.UpdateJob(rec)
	}
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentLedger, false, err.Error())
		logger.Warn().Err(err).Msg("Failed to record job")
		return
	}
	metrics.UpdateComponent(metrics.ComponentLedger, true, "")
}
