package prompts

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandleInvestigateOffset implements the offset investigation workflow.
func HandleInvestigateOffset(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		args := req.Params.Arguments
		offset := argOr(args, "offset", "<offset>")
		length := argOr(args, "length", "1")

		var sb strings.Builder

		sb.WriteString("# Investigate a Capture Log Offset\n\n")
		sb.WriteString("You are a network protocol analyst. ")
		if cfg.LogPath != "" {
			fmt.Fprintf(&sb, "The capture log is `%s`. ", cfg.LogPath)
		}
		fmt.Fprintf(&sb, "Explain what the %s byte(s) at offset %s are and which conversation they belong to.\n\n", length, offset)

		sb.WriteString("## Context Usage Guide\n\n")
		sb.WriteString("- **Tools** return spans, summaries and short windows - use these first\n")
		sb.WriteString("- **Resources** (`aplog://connection/{offset}`) return a full text dump - fetch only when the whole conversation matters\n\n")

		sb.WriteString("## Workflow Steps\n\n")
		sb.WriteString("1. **Resolve** the offset to its connection and packet\n")
		sb.WriteString("   - `on_payload: false` means the offset hits a record header or a packet length, not traffic\n")
		sb.WriteString("2. **Read the context** around the bytes (50 before, 30 after)\n")
		sb.WriteString("3. **Place the connection** among its peers: same server, same time window\n")
		sb.WriteString("4. **Render** the connection as `repr` when the surrounding packets matter\n\n")

		sb.WriteString("## Suggested Tools\n\n")
		sb.WriteString("```\n")
		fmt.Fprintf(&sb, "aplog_resolve_offset(offset=%s, length=%s)\n", offset, length)
		fmt.Fprintf(&sb, "aplog_context(offset=%s, length=%s)\n", offset, length)
		sb.WriteString("aplog_list_connections(server=\"<connection.server>\", limit=10)\n")
		fmt.Fprintf(&sb, "aplog_render(offset=%s, format=\"repr\")\n", offset)
		sb.WriteString("aplog_search_payloads(pattern=\"<target bytes>\", server=\"<connection.server>\")\n")
		sb.WriteString("```\n\n")

		sb.WriteString("## Expected Output Format\n\n")
		sb.WriteString("1. **Location**: connection start, packet index, direction (cs = client to server)\n")
		sb.WriteString("2. **Meaning**: what the bytes are in the protocol, quoting the context\n")
		sb.WriteString("3. **Related**: other connections to the same server that carry similar bytes, if any\n\n")

		sb.WriteString("## Constraints\n\n")
		sb.WriteString("- Do NOT render pcap unless asked; it needs the original capture and an output path\n")
		sb.WriteString("- STOP once the bytes are explained\n")

		return &sdkmcp.GetPromptResult{
			Description: "Guide for explaining a capture log offset",
			Messages: []*sdkmcp.PromptMessage{
				{
					Role:    "user",
					Content: &sdkmcp.TextContent{Text: sb.String()},
				},
			},
		}, nil
	}
}
