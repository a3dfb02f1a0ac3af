package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/usestring/aptrace/pkg/mcpsrv"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [log]",
		Short: "Serve a capture log to MCP clients on stdio",
		Long: `Start an MCP server on standard input and output exposing the
connections of [log], or of APLOG_PATH when no log is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runServe,
	}
	cmd.Flags().String("capture", "", "original full capture for pcap renders")
	cmd.Flags().String("log-file", "", "write logs to this file instead of stderr")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	}

	var opts []mcpsrv.Option
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		opts = append(opts, mcpsrv.WithLogLevel(level))
	}
	if file, _ := cmd.Flags().GetString("log-file"); file != "" {
		opts = append(opts, mcpsrv.WithLogFile(file))
	}
	if capture, _ := cmd.Flags().GetString("capture"); capture != "" {
		opts = append(opts, mcpsrv.WithCapturePath(capture))
	}

	server, err := mcpsrv.NewServer(path, opts...)
	if err != nil {
		return err
	}
	defer server.Close()

	slog.Info("starting aptrace MCP server on stdio")
	if err := server.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
