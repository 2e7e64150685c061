package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send a PING frame to a worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := newClient(cmd, true)
		if err != nil {
			return err
		}
		defer cancel()

		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("worker %s unreachable: %w", c.Addr(), err)
		}
		okColor.Fprintf(os.Stderr, "✓ Worker %s is up\n", c.Addr())
		return nil
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Send a SHUTDOWN frame to a worker",
	Long: `Send a SHUTDOWN frame. A worker started with --honor-shutdown (the
default) stops accepting connections once the frame is handled; otherwise
the frame is only logged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := newClient(cmd, true)
		if err != nil {
			return err
		}
		defer cancel()

		if err := c.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to send shutdown to %s: %w", c.Addr(), err)
		}
		okColor.Fprintf(os.Stderr, "✓ Shutdown sent to %s\n", c.Addr())
		return nil
	},
}

func init() {
	addClientFlags(pingCmd)
	addClientFlags(shutdownCmd)

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(shutdownCmd)
}
