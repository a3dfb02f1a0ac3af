package mcpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/internal/cache"
	"github.com/usestring/aptrace/internal/config"
	"github.com/usestring/aptrace/internal/logging"
	"github.com/usestring/aptrace/internal/mcp"
	"github.com/usestring/aptrace/internal/mcp/tools"
	"github.com/usestring/aptrace/pkg/aplog"
)

// Server is the aptrace MCP server.
// It wraps the internal implementation and provides extension points.
type Server struct {
	internal   *mcp.Server
	log        *aplog.Reader
	deps       *Deps
	logCleanup func() error
}

// NewServer opens the capture log at logPath and creates an MCP server with
// the builtin aplog tools over it. An empty logPath uses APLOG_PATH.
//
// Use functional options to configure logging, add custom tools, etc.
func NewServer(logPath string, opts ...Option) (*Server, error) {
	cfg := &serverConfig{
		config: config.Load(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if logPath != "" {
		cfg.config.LogPath = logPath
	}
	if cfg.capturePath != "" {
		cfg.config.CapturePath = cfg.capturePath
	}
	if cfg.config.LogPath == "" {
		return nil, errors.New("capture log path is required (argument or APLOG_PATH)")
	}

	logCfg := logging.FromConfig(cfg.config)
	if cfg.logLevel != "" {
		logCfg.Level = cfg.logLevel
	}
	if cfg.logFile != "" {
		logCfg.FilePath = cfg.logFile
	}
	logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	r, err := cache.OpenLog(cfg.config.LogPath, cfg.config.HeaderCacheMaxItems)
	if err != nil {
		logCleanup()
		return nil, fmt.Errorf("failed to open capture log: %w", err)
	}
	slog.Info("capture log opened",
		slog.String("path", cfg.config.LogPath),
		slog.Int("connections", r.Count()),
		slog.Int64("size", r.Size()),
	)

	toolDeps := tools.NewDeps(cfg.config, r)
	deps := &Deps{
		Config:  toolDeps.Config,
		Log:     toolDeps.Log,
		Query:   toolDeps.Query,
		Diff:    toolDeps.Diff,
		Search:  toolDeps.Search,
		Catalog: toolDeps.Catalog,
	}

	var internalOpts []mcp.ServerOption
	if !cfg.disableBuiltinTools {
		internalOpts = append(internalOpts, mcp.WithBuiltinTools())
	}
	if !cfg.disableBuiltinPrompts {
		internalOpts = append(internalOpts, mcp.WithBuiltinPrompts())
	}
	for _, fn := range cfg.registrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(fn))
	}
	for _, fn := range cfg.deferredToolRegistrations {
		internalOpts = append(internalOpts, mcp.WithCustomRegistration(func(srv *sdkmcp.Server) {
			fn(srv, deps)
		}))
	}

	internal, err := mcp.NewServer(toolDeps, internalOpts...)
	if err != nil {
		r.Close()
		logCleanup()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Server{
		internal:   internal,
		log:        r,
		deps:       deps,
		logCleanup: logCleanup,
	}, nil
}

// Run starts the MCP server with stdio transport.
// The server runs until the context is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.internal.Run(ctx)
}

// Close releases the capture log and flushes log output.
func (s *Server) Close() error {
	err := s.log.Close()
	if s.logCleanup != nil {
		err = errors.Join(err, s.logCleanup())
	}
	return err
}

// Deps returns the dependencies for building custom tools.
func (s *Server) Deps() *Deps {
	return s.deps
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *sdkmcp.Server {
	return s.internal.MCPServer()
}
