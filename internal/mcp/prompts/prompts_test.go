package prompts

import (
	"context"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptText(t *testing.T, res *sdkmcp.GetPromptResult) string {
	t.Helper()
	require.Len(t, res.Messages, 1)
	tc, ok := res.Messages[0].Content.(*sdkmcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func request(args map[string]string) *sdkmcp.GetPromptRequest {
	return &sdkmcp.GetPromptRequest{Params: &sdkmcp.GetPromptParams{Arguments: args}}
}

func TestHandleInvestigateOffset(t *testing.T) {
	cfg := &Config{LogPath: "/data/dump.ap"}

	res, err := HandleInvestigateOffset(cfg)(context.Background(), request(map[string]string{"offset": "4711", "length": "4"}))
	require.NoError(t, err)
	text := promptText(t, res)
	assert.Contains(t, text, "`/data/dump.ap`")
	assert.Contains(t, text, "aplog_resolve_offset(offset=4711, length=4)")
	assert.Contains(t, text, "aplog_context(offset=4711, length=4)")

	res, err = HandleInvestigateOffset(&Config{})(context.Background(), request(nil))
	require.NoError(t, err)
	text = promptText(t, res)
	assert.Contains(t, text, "aplog_resolve_offset(offset=<offset>, length=1)")
	assert.NotContains(t, text, "The capture log is")
}

func TestHandleAnalyzeFault(t *testing.T) {
	cfg := &Config{FaultMarker: "FARKFARKFARK", ReplayTarget: "127.0.0.1:4000"}

	res, err := HandleAnalyzeFault(cfg)(context.Background(), request(map[string]string{"offset": "90"}))
	require.NoError(t, err)
	text := promptText(t, res)
	assert.Contains(t, text, "`FARKFARKFARK`")
	assert.Contains(t, text, "aplog_diff_connections(baseline_offset=<neighbour>, candidate_offset=90)")
	assert.Contains(t, text, "127.0.0.1:4000")
}
