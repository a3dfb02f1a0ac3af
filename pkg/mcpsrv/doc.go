// Package mcpsrv provides an extensible MCP server over an aptrace capture
// log.
//
// This package exposes a high-level API for creating and running an MCP server
// with all builtin aplog tools, prompts, and resources. Users can extend the
// server with custom tools, prompts, and resources using functional options.
//
// # Basic Usage
//
// Serve a capture log over stdio:
//
//	server, err := mcpsrv.NewServer("/data/dump.ap")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Close()
//	server.Run(ctx)
//
// An empty path falls back to the APLOG_PATH environment variable.
//
// # Extension
//
// Add custom tools using MCP SDK types directly:
//
//	import mcp "github.com/modelcontextprotocol/go-sdk/mcp"
//
//	type CountInput struct {
//	    Server string `json:"server"`
//	}
//
//	type CountOutput struct {
//	    Count int `json:"count"`
//	}
//
//	server, err := mcpsrv.NewServer(
//	    path,
//	    mcpsrv.WithDepsTool(
//	        &mcp.Tool{Name: "count_server", Description: "Count connections to a server"},
//	        func(d *mcpsrv.Deps) func(ctx context.Context, req *mcp.CallToolRequest, in CountInput) (*mcp.CallToolResult, CountOutput, error) {
//	            return func(ctx context.Context, req *mcp.CallToolRequest, in CountInput) (*mcp.CallToolResult, CountOutput, error) {
//	                cat, err := d.Catalog()
//	                if err != nil {
//	                    return nil, CountOutput{}, err
//	                }
//	                resp := cat.List(&types.ListRequest{Server: in.Server})
//	                return nil, CountOutput{Count: resp.Total}, nil
//	            }
//	        },
//	    ),
//	)
//
// # Configuration
//
// Configure logging and the original capture used for pcap renders:
//
//	server, err := mcpsrv.NewServer(
//	    path,
//	    mcpsrv.WithLogLevel("debug"),
//	    mcpsrv.WithLogFile("/var/log/aptrace.log"),
//	    mcpsrv.WithCapturePath("/data/full.pcap"),
//	)
package mcpsrv
