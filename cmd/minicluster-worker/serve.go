package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/minicluster/pkg/cache"
	"github.com/cuemby/minicluster/pkg/db"
	"github.com/cuemby/minicluster/pkg/log"
	"github.com/cuemby/minicluster/pkg/metrics"
	"github.com/cuemby/minicluster/pkg/objstore"
	"github.com/cuemby/minicluster/pkg/storage"
	"github.com/cuemby/minicluster/pkg/worker"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker",
	Long: `Bind the worker port and handle connections one at a time until
interrupted or, unless disabled, until a SHUTDOWN frame arrives.

Rendered result tables go to stdout; logs go to stderr.

Examples:
  # Listen on the default 127.0.0.1:8080
  minicluster-worker serve

  # Use a local S3-compatible server and expose metrics
  minicluster-worker serve --endpoint http://localhost:9000 --path-style --metrics-addr :9100`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "Address to bind (default 127.0.0.1)")
	serveCmd.Flags().Int("port", 0, "Port to bind (default 8080)")
	serveCmd.Flags().String("metrics-addr", "", "Serve /metrics, /health, /ready and /live on this address")
	serveCmd.Flags().String("endpoint", "", "S3 endpoint URL (default AWS)")
	serveCmd.Flags().String("region", "", "S3 region (default us-east-1)")
	serveCmd.Flags().Bool("path-style", false, "Use path-style S3 addressing")
	serveCmd.Flags().Bool("honor-shutdown", true, "Stop serving when a SHUTDOWN frame arrives")
	serveCmd.Flags().Int("fetch-concurrency", 0, "Parallel S3 fetches per job (default 4)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.WithComponent("serve")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := objstore.NewS3Fetcher(ctx, cfg.S3())
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	metrics.UpdateComponent(metrics.ComponentStorage, true, "")

	// The ledger is optional; a worker that cannot open it still serves
	var ledger storage.JobStore
	boltStore, err := storage.NewBoltStore(cfg.LedgerPath())
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentLedger, false, err.Error())
		warnColor.Fprintf(os.Stderr, "! Job ledger disabled: %v\n", err)
	} else {
		defer boltStore.Close()
		ledger = boltStore
		metrics.UpdateComponent(metrics.ComponentLedger, true, "")

		collector := metrics.NewCollector(boltStore, metrics.DefaultCollectInterval)
		collector.Start()
		defer collector.Stop()
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.NewServeMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("address", cfg.MetricsAddr).Msg("Metrics server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		okColor.Fprintf(os.Stderr, "✓ Metrics on http://%s/metrics\n", cfg.MetricsAddr)
	}

	w, err := worker.NewWorker(&worker.Config{
		Addr:          cfg.Addr(),
		Localizer:     cache.NewLocalizer(cfg.CacheDir(), fetcher, cfg.Cache.FetchConcurrency),
		Store:         db.NewGateway(cfg.DatabasePath()),
		Ledger:        ledger,
		Output:        os.Stdout,
		HonorShutdown: cfg.HonorShutdown,
	})
	if err != nil {
		return err
	}
	if err := w.Listen(); err != nil {
		return err
	}

	okColor.Fprintf(os.Stderr, "✓ Worker listening on %s (cache %s)\n", w.Addr(), cfg.CacheDir())
	if err := w.Serve(ctx); err != nil {
		return err
	}

	okColor.Fprintln(os.Stderr, "✓ Shutdown complete")
	return nil
}
