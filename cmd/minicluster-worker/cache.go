package main

import (
	"fmt"
	"os"

	"github.com/cuemby/minicluster/pkg/cache"
	"github.com/cuemby/minicluster/pkg/db"
	"github.com/cuemby/minicluster/pkg/objstore"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local file cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete localized files and the embedded database",
	Long: `Delete every localized file and the embedded database, which lives
inside the cache directory. Dataset tables are rebuilt on the next job.
Do not run this while a worker is serving.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Remove the database first so its journal files go with it even if
		// the cache root is a mount point that cannot itself be removed
		if err := db.NewGateway(cfg.DatabasePath()).DropDatabase(); err != nil {
			return err
		}
		if err := cache.NewLocalizer(cfg.CacheDir(), objstore.NewStaticFetcher(nil), 1).Clear(); err != nil {
			return err
		}

		okColor.Fprintf(os.Stderr, "✓ Cleared %s\n", cfg.CacheDir())
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the cache and database paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cache:    %s\ndatabase: %s\nledger:   %s\n",
			cfg.CacheDir(), cfg.DatabasePath(), cfg.LedgerPath())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}
