package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cuemby/minicluster/pkg/client"
	"github.com/cuemby/minicluster/pkg/config"
	"github.com/cuemby/minicluster/pkg/types"
	"github.com/cuemby/minicluster/pkg/wire"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send a workload to a running worker",
	Long: `Send the workload in a YAML file to a worker as a WORK frame.

The worker prints the result to its own stdout; nothing is returned over
the connection. With --wait the command returns once the worker has
finished the job and closed the connection.

Examples:
  # Submit a workload
  minicluster-worker submit -f workload.yaml

  # Submit and wait for the job to finish
  minicluster-worker submit -f workload.yaml --wait --timeout 5m`,
	RunE: runSubmit,
}

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Print the WORK frame for a workload",
	Long: `Encode the workload in a YAML file as a WORK frame and print it as
escaped hex (\x01\x00\x2B...), or as raw bytes with --raw.

Examples:
  # Inspect a frame
  minicluster-worker frame -f workload.yaml

  # Send it by hand
  minicluster-worker frame -f workload.yaml --raw | nc localhost 8080`,
	RunE: runFrame,
}

func init() {
	addClientFlags(submitCmd)
	submitCmd.Flags().StringP("file", "f", "", "YAML workload file, - for stdin (required)")
	submitCmd.Flags().Bool("wait", false, "Wait until the worker has handled the job")
	_ = submitCmd.MarkFlagRequired("file")

	frameCmd.Flags().StringP("file", "f", "", "YAML workload file, - for stdin (required)")
	frameCmd.Flags().Bool("raw", false, "Write raw frame bytes instead of escaped hex")
	_ = frameCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(frameCmd)
}

// addClientFlags registers the flags shared by commands that talk to a worker
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "", "Worker address (default from config, 127.0.0.1:8080)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Overall timeout")
}

// newClient resolves the worker address and returns a client plus a context
// bounded by --timeout
func newClient(cmd *cobra.Command, wait bool) (*client.Client, context.Context, context.CancelFunc, error) {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		cfg, err := config.Load(mustString(cmd, "config"))
		if err != nil && cfg == nil {
			return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		addr = cfg.Addr()
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return client.NewClient(addr, client.WithWait(wait)), ctx, cancel, nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func runSubmit(cmd *cobra.Command, args []string) error {
	w, err := readWorkload(mustString(cmd, "file"))
	if err != nil {
		return err
	}
	wait, _ := cmd.Flags().GetBool("wait")

	c, ctx, cancel, err := newClient(cmd, wait)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.Submit(ctx, w); err != nil {
		return fmt.Errorf("failed to submit workload: %w", err)
	}

	if wait {
		okColor.Fprintf(os.Stderr, "✓ Workload with %d op(s) handled by %s\n", len(w.Ops), c.Addr())
	} else {
		okColor.Fprintf(os.Stderr, "✓ Workload with %d op(s) sent to %s\n", len(w.Ops), c.Addr())
	}
	return nil
}

// escapeFrame renders b as \xNN escapes
func escapeFrame(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 4)
	for _, c := range b {
		fmt.Fprintf(&sb, `\x%02X`, c)
	}
	return sb.String()
}

func runFrame(cmd *cobra.Command, args []string) error {
	w, err := readWorkload(mustString(cmd, "file"))
	if err != nil {
		return err
	}

	frame, err := wire.EncodeWorkFrame(w)
	if err != nil {
		return err
	}

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		_, err := cmd.OutOrStdout().Write(frame)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), escapeFrame(frame))
	fmt.Fprintf(cmd.ErrOrStderr(), "%s frame: %d byte header + %d byte payload\n",
		types.SignalWork, wire.HeaderSize, len(frame)-wire.HeaderSize)
	return nil
}
