// Package tools contains MCP tool implementations for capture logs.
package tools

import (
	"strconv"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/pkg/types"
)

// MIME type constants.
const (
	MimeJSON = "application/json"
	MimeText = "text/plain"
)

// ConnectionURIPrefix starts every connection resource URI.
const ConnectionURIPrefix = "aplog://connection/"

// ConnectionURI names the text dump resource of the connection holding offset.
func ConnectionURI(offset int64) string {
	return ConnectionURIPrefix + strconv.FormatInt(offset, 10)
}

func connectionRef(offset int64) *types.ResourceRef {
	return &types.ResourceRef{
		URI:  ConnectionURI(offset),
		MIME: MimeText,
		Hint: "Fetch for the full text dump of the connection",
	}
}

// textResult wraps text as the visible content of a tool result.
func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{
			&sdkmcp.TextContent{Text: text},
		},
	}
}

// cappedBuffer keeps the first limit bytes written to it and counts the rest.
type cappedBuffer struct {
	limit   int
	buf     []byte
	written int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.written += len(p)
	if room := c.limit - len(c.buf); room > 0 {
		c.buf = append(c.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

func (c *cappedBuffer) truncated() bool {
	return c.written > len(c.buf)
}
