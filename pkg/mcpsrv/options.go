package mcpsrv

import (
	"context"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/internal/config"
)

// serverConfig is the environment config plus the overrides options set.
type serverConfig struct {
	config *config.Config

	// Empty values keep the environment setting.
	logLevel    string
	logFile     string
	capturePath string

	disableBuiltinTools   bool
	disableBuiltinPrompts bool

	// Registration callbacks for custom tools, prompts and resources, in
	// the order their options were given.
	registrations []func(*mcp.Server)

	// Run once the capture log is open and Deps exists.
	deferredToolRegistrations []func(*mcp.Server, *Deps)
}

// Option adjusts how NewServer opens and exposes a capture log.
type Option func(*serverConfig)

// WithLogLevel overrides LOG_LEVEL for the server's slog output.
func WithLogLevel(level string) Option {
	return func(cfg *serverConfig) {
		cfg.logLevel = level
	}
}

// WithLogFile overrides LOG_FILE. Records then go to that file, rotated by
// size, instead of stderr.
func WithLogFile(path string) Option {
	return func(cfg *serverConfig) {
		cfg.logFile = path
	}
}

// WithCapturePath overrides APLOG_CAPTURE_PATH, the pcap the log was
// reassembled from. The pcap render format fails without it.
func WithCapturePath(path string) Option {
	return func(cfg *serverConfig) {
		cfg.capturePath = path
	}
}

// WithoutBuiltinTools skips the aplog_* tools and the aplog:// resources so
// that only tools given through WithTool or WithDepsTool are served.
func WithoutBuiltinTools() Option {
	return func(cfg *serverConfig) {
		cfg.disableBuiltinTools = true
	}
}

// WithoutBuiltinPrompts skips the investigate_offset and analyze_fault
// prompts.
func WithoutBuiltinPrompts() Option {
	return func(cfg *serverConfig) {
		cfg.disableBuiltinPrompts = true
	}
}

// WithTool adds a tool that does not read the capture log. In is decoded
// from the call arguments and Out is returned as structured content; their
// JSON schemas come from the struct tags.
func WithTool[In, Out any](tool *mcp.Tool, handler func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error)) Option {
	return func(cfg *serverConfig) {
		cfg.registrations = append(cfg.registrations, func(srv *mcp.Server) {
			AddTool(srv, tool, handler)
		})
	}
}

// WithDepsTool adds a tool built against the open log. builder runs after
// the reader, catalog and engines in Deps exist, so the handler can resolve
// offsets or scan payloads. See examples/banners for a complete tool.
func WithDepsTool[In, Out any](tool *mcp.Tool, builder func(*Deps) func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error)) Option {
	return func(cfg *serverConfig) {
		cfg.deferredToolRegistrations = append(cfg.deferredToolRegistrations, func(srv *mcp.Server, deps *Deps) {
			AddTool(srv, tool, builder(deps))
		})
	}
}

// WithPrompt adds a prompt next to the builtin ones.
func WithPrompt(prompt *mcp.Prompt, handler func(context.Context, *mcp.GetPromptRequest) (*mcp.GetPromptResult, error)) Option {
	return func(cfg *serverConfig) {
		cfg.registrations = append(cfg.registrations, func(srv *mcp.Server) {
			srv.AddPrompt(prompt, handler)
		})
	}
}

// WithResourceTemplate serves an extra URI family, for example notes keyed
// by log offset:
//
//	mcpsrv.WithResourceTemplate(
//	    &mcp.ResourceTemplate{URITemplate: "notes://{offset}", Name: "Analyst notes"},
//	    func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
//	        return &mcp.ReadResourceResult{
//	            Contents: []*mcp.ResourceContents{
//	                {URI: req.Params.URI, MIMEType: "text/plain", Text: "looks like a login"},
//	            },
//	        }, nil
//	    },
//	)
func WithResourceTemplate(template *mcp.ResourceTemplate, handler func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)) Option {
	return func(cfg *serverConfig) {
		cfg.registrations = append(cfg.registrations, func(srv *mcp.Server) {
			srv.AddResourceTemplate(template, handler)
		})
	}
}
