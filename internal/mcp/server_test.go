package mcp

import (
	"context"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/aptrace/internal/config"
	"github.com/usestring/aptrace/internal/mcp/tools"
	"github.com/usestring/aptrace/pkg/aplog/aplogtest"
)

func testDeps(t *testing.T) *tools.Deps {
	t.Helper()
	cfg := &config.Config{
		LogPath:          "dump.ap",
		DefaultListLimit: 50,
		MaxRenderBytes:   1 << 20,
		TriageHost:       "127.0.0.1",
		TriagePort:       4000,
		TriageMarker:     "FARKFARKFARK",
	}
	r := aplogtest.Reader(t,
		aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")),
		aplogtest.Conn(aplogtest.C("PING"), aplogtest.S("PONG")),
	)
	return tools.NewDeps(cfg, r)
}

func connect(t *testing.T, opts ...ServerOption) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	srv, err := NewServer(testDeps(t), opts...)
	require.NoError(t, err)

	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestNewServer_RequiresLog(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)

	_, err = NewServer(&tools.Deps{})
	assert.Error(t, err)
}

func TestServer_ListsBuiltins(t *testing.T) {
	cs := connect(t, WithBuiltinTools(), WithBuiltinPrompts())
	ctx := context.Background()

	toolList, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range toolList.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"aplog_summary",
		"aplog_list_connections",
		"aplog_query_connections",
		"aplog_search_payloads",
		"aplog_resolve_offset",
		"aplog_context",
		"aplog_render",
		"aplog_diff_connections",
		"aplog_fingerprint",
	}, names)

	prompts, err := cs.ListPrompts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, prompts.Prompts, 2)

	templates, err := cs.ListResourceTemplates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, templates.ResourceTemplates, 1)
	assert.Equal(t, "aplog://connection/{offset}", templates.ResourceTemplates[0].URITemplate)
}

func TestServer_CustomRegistrationOnly(t *testing.T) {
	registered := false
	cs := connect(t, WithCustomRegistration(func(*sdkmcp.Server) { registered = true }))
	assert.True(t, registered)

	templates, err := cs.ListResourceTemplates(context.Background(), nil)
	if err == nil {
		assert.Empty(t, templates.ResourceTemplates)
	}
}

func TestServer_CallTool(t *testing.T) {
	cs := connect(t, WithBuiltinTools())
	ctx := context.Background()

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "aplog_resolve_offset",
		Arguments: map[string]any{"offset": 30},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	out, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, out["on_payload"])
	assert.Equal(t, "cs", out["direction"])

	res, err = cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "aplog_render",
		Arguments: map[string]any{"offset": 0, "format": "python"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "aplog_list_connections",
		Arguments: map[string]any{"where": ".client_bytes == 4"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	out = res.StructuredContent.(map[string]any)
	assert.Equal(t, float64(1), out["total"])
}

func TestServer_ReadConnection(t *testing.T) {
	cs := connect(t, WithBuiltinTools())
	ctx := context.Background()

	res, err := cs.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "aplog://connection/50"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, tools.MimeText, res.Contents[0].MIMEType)
	assert.Contains(t, res.Contents[0].Text, "PING\n")
	assert.NotContains(t, res.Contents[0].Text, "HELLO")

	_, err = cs.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "aplog://connection/9999"})
	assert.Error(t, err)

	res, err = cs.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "aplog://summary"})
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, `"connections": 2`)
}

func TestParseConnectionURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    int64
		wantErr bool
	}{
		{"aplog://connection/0", 0, false},
		{"aplog://connection/4711", 4711, false},
		{"aplog://connection/-3", 0, true},
		{"aplog://connection/x", 0, true},
		{"aplog://conn/1", 0, true},
		{"file:///tmp/x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := parseConnectionURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
