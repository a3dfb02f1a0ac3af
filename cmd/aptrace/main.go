// Command aptrace works with capture logs: it renders connections, answers
// context queries, triages crashes against a live target and serves the log
// over MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/usestring/aptrace/internal/config"
	"github.com/usestring/aptrace/internal/logging"
)

const (
	// ExitNotFound is the exit status when an offset resolves to no connection.
	ExitNotFound = 5
	// ExitInterrupted is the exit status when a signal cancels the command.
	ExitInterrupted = 130
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

// run executes the command line args and returns the process exit status.
func run(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		slog.Warn("aptrace interrupted", slog.Int("exit", ExitInterrupted))
		return ExitInterrupted
	}

	code := 1
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	slog.Error("aptrace failed", slog.String("error", err.Error()), slog.Int("exit", code))
	return code
}

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		cleanup  func() error
	)

	rootCmd := &cobra.Command{
		Use:   "aptrace",
		Short: "Inspect, render and triage capture logs",
		Long: `aptrace reads .ap capture logs: reassembled TCP connections stored
back to back with a trailing index of record lengths.

Any byte offset into a log identifies the connection that contains it.
Commands take such offsets, as printed by search tools, and turn them into
dumps, replay scripts, pcaps or triage verdicts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "serve" {
				// The MCP server installs its own logger.
				return nil
			}
			lc := logging.FromConfig(config.Load())
			if logLevel != "" {
				lc.Level = logLevel
			}
			lc.Writer = cmd.ErrOrStderr()
			var err error
			cleanup, err = logging.Setup(lc)
			if err != nil {
				return fmt.Errorf("setting up logging: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cleanup == nil {
				return nil
			}
			return cleanup()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default LOG_LEVEL or info)")

	rootCmd.AddCommand(
		newStreamCmd(),
		newContextCmd(),
		newSearchCmd(),
		newListCmd(),
		newTriageCmd(),
		newServeCmd(),
	)
	return rootCmd
}
