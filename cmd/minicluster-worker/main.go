package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cuemby/minicluster/pkg/config"
	"github.com/cuemby/minicluster/pkg/log"
	"github.com/cuemby/minicluster/pkg/metrics"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "minicluster-worker",
	Short: "Mini-cluster worker - run SQL workloads over S3-hosted CSV files",
	Long: `The mini-cluster worker accepts one workload at a time over a raw TCP
connection, localizes the CSV files it references from S3 into a local
cache, loads them into an embedded SQLite store, runs the workload's
statements in order and prints the final result set to stdout.

The same binary also acts as a minimal client: submit, ping and shutdown
send single frames to a running worker.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(cmd)
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"minicluster-worker version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultFileName, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("env-file", "", "Load environment variables from this file (default: .env if present)")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory for the cache, database and job ledger")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")

	metrics.SetVersion(Version)
}

// loadEnvFile loads the --env-file, or .env when present, so AWS
// credentials can be supplied that way
func loadEnvFile(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the config file and applies flag overrides. A missing
// file is only an error when --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) || cmd.Flags().Changed("config") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("host") {
		cfg.Listen.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Listen.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("endpoint") {
		cfg.Storage.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("region") {
		cfg.Storage.Region, _ = flags.GetString("region")
	}
	if flags.Changed("path-style") {
		cfg.Storage.UsePathStyle, _ = flags.GetBool("path-style")
	}
	if flags.Changed("honor-shutdown") {
		cfg.HonorShutdown, _ = flags.GetBool("honor-shutdown")
	}
	if flags.Changed("fetch-concurrency") {
		cfg.Cache.FetchConcurrency, _ = flags.GetInt("fetch-concurrency")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	return cfg, nil
}
