package mcpsrv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/aptrace/pkg/aplog/aplogtest"
	"github.com/usestring/aptrace/pkg/types"
)

type countInput struct {
	Server string `json:"server"`
}

type countOutput struct {
	Count int `json:"count"`
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	t.Setenv("LOG_FILE", "")

	path := aplogtest.File(t,
		aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")),
		aplogtest.Conn(aplogtest.C("PING"), aplogtest.S("PONG")),
	)
	opts = append([]Option{WithLogFile(filepath.Join(t.TempDir(), "aptrace.log"))}, opts...)
	srv, err := NewServer(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func TestNewServer_RequiresPath(t *testing.T) {
	t.Setenv("APLOG_PATH", "")
	_, err := NewServer("")
	assert.Error(t, err)
}

func TestNewServer_MissingLog(t *testing.T) {
	_, err := NewServer(filepath.Join(t.TempDir(), "missing.ap"),
		WithLogFile(filepath.Join(t.TempDir(), "aptrace.log")))
	assert.Error(t, err)
}

func TestNewServer_Deps(t *testing.T) {
	srv := newTestServer(t, WithCapturePath("/data/full.pcap"))

	d := srv.Deps()
	require.NotNil(t, d.Log)
	assert.Equal(t, 2, d.Log.Count())
	assert.Equal(t, "/data/full.pcap", d.Config.CapturePath)

	cat, err := d.Catalog()
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
}

func TestWithDepsTool(t *testing.T) {
	srv := newTestServer(t, WithDepsTool(
		&mcp.Tool{Name: "count_server", Description: "Count connections to a server"},
		func(d *Deps) func(context.Context, *mcp.CallToolRequest, countInput) (*mcp.CallToolResult, countOutput, error) {
			return func(ctx context.Context, req *mcp.CallToolRequest, in countInput) (*mcp.CallToolResult, countOutput, error) {
				cat, err := d.Catalog()
				if err != nil {
					return nil, countOutput{}, err
				}
				return nil, countOutput{Count: cat.List(&types.ListRequest{Server: in.Server}).Total}, nil
			}
		},
	))

	res := callTool(t, srv, "count_server", map[string]any{"server": "10.0.0.2:9000"})
	require.False(t, res.IsError)
	assert.Equal(t, map[string]any{"count": float64(2)}, res.StructuredContent)
}

func TestWithTool_WithoutBuiltins(t *testing.T) {
	srv := newTestServer(t,
		WithoutBuiltinTools(),
		WithoutBuiltinPrompts(),
		WithTool(&mcp.Tool{Name: "echo", Description: "Echo"},
			func(ctx context.Context, req *mcp.CallToolRequest, in countInput) (*mcp.CallToolResult, countOutput, error) {
				return nil, countOutput{Count: len(in.Server)}, nil
			}),
	)

	res := callTool(t, srv, "echo", map[string]any{"server": "abc"})
	require.False(t, res.IsError)
	assert.Equal(t, map[string]any{"count": float64(3)}, res.StructuredContent)
}

func TestServer_BuiltinToggles(t *testing.T) {
	tests := []struct {
		name        string
		opts        []Option
		wantTools   bool
		wantPrompts []string
	}{
		{"defaults", nil, true, []string{"analyze_fault", "investigate_offset"}},
		{"without tools", []Option{WithoutBuiltinTools()}, false, []string{"analyze_fault", "investigate_offset"}},
		{"without prompts", []Option{WithoutBuiltinPrompts()}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.opts...)
			ctx := context.Background()

			clientTransport, serverTransport := mcp.NewInMemoryTransports()
			ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
			require.NoError(t, err)
			t.Cleanup(func() { ss.Close() })

			client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0.0.1"}, nil)
			cs, err := client.Connect(ctx, clientTransport, nil)
			require.NoError(t, err)
			t.Cleanup(func() { cs.Close() })

			var tools []string
			for tool, err := range cs.Tools(ctx, nil) {
				require.NoError(t, err)
				tools = append(tools, tool.Name)
			}
			if tt.wantTools {
				assert.Contains(t, tools, "aplog_search_payloads")
			} else {
				assert.Empty(t, tools)
			}

			var prompts []string
			for prompt, err := range cs.Prompts(ctx, nil) {
				require.NoError(t, err)
				prompts = append(prompts, prompt.Name)
			}
			assert.ElementsMatch(t, tt.wantPrompts, prompts)
		})
	}
}

func TestWithLogFile_Level(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		logged bool
	}{
		{"default level records the open", "", true},
		{"error level drops it", "error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logFile := filepath.Join(t.TempDir(), "aptrace.log")
			newTestServer(t, WithLogFile(logFile), WithLogLevel(tt.level))

			data, _ := os.ReadFile(logFile)
			assert.Equal(t, tt.logged, strings.Contains(string(data), "capture log opened"))
		})
	}
}
