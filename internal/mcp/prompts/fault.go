package prompts

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandleAnalyzeFault implements the confirmed fault workflow.
func HandleAnalyzeFault(cfg *Config) func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
	return func(ctx context.Context, req *sdkmcp.GetPromptRequest) (*sdkmcp.GetPromptResult, error) {
		offset := argOr(req.Params.Arguments, "offset", "<offset>")

		var sb strings.Builder

		sb.WriteString("# Analyze a Confirmed Fault\n\n")
		fmt.Fprintf(&sb, "Replaying the client side of the connection at offset %s made the target print `%s`. ", offset, cfg.FaultMarker)
		sb.WriteString("Find which client packet triggers the fault and how it differs from traffic that did not.\n\n")

		sb.WriteString("## Workflow Steps\n\n")
		sb.WriteString("1. **Fingerprint** the faulting connection to see its packet shape\n")
		sb.WriteString("2. **Find neighbours**: connections to the same server with a similar shape\n")
		sb.WriteString("3. **Diff** the faulting connection against the closest neighbour\n")
		sb.WriteString("   - `first_divergence` points at the first differing packet and byte\n")
		sb.WriteString("   - severity `high` means the packet sequence itself differs\n")
		sb.WriteString("4. **Write a replay script** to reproduce the fault by hand\n\n")

		sb.WriteString("## Suggested Tools\n\n")
		sb.WriteString("```\n")
		fmt.Fprintf(&sb, "aplog_fingerprint(offset=%s)\n", offset)
		sb.WriteString("aplog_list_connections(server=\"<fingerprint.connection.server>\", where=\".client_packets > 0\")\n")
		fmt.Fprintf(&sb, "aplog_diff_connections(baseline_offset=<neighbour>, candidate_offset=%s)\n", offset)
		fmt.Fprintf(&sb, "aplog_render(offset=%s, format=\"replay-diff\", output_path=\"/tmp/fault.py\")\n", offset)
		sb.WriteString("```\n\n")

		if cfg.ReplayTarget != "" {
			fmt.Fprintf(&sb, "Replay scripts take host and port arguments; the triage target listens on %s.\n\n", cfg.ReplayTarget)
		}

		sb.WriteString("## Expected Output Format\n\n")
		sb.WriteString("1. **Trigger**: packet index and the bytes that differ, quoted with aplog_context\n")
		sb.WriteString("2. **Evidence**: the diff lines that matter\n")
		sb.WriteString("3. **Reproduction**: path of the replay script and how to run it\n")

		return &sdkmcp.GetPromptResult{
			Description: "Guide for analyzing a confirmed fault",
			Messages: []*sdkmcp.PromptMessage{
				{
					Role:    "user",
					Content: &sdkmcp.TextContent{Text: sb.String()},
				},
			},
		}, nil
	}
}
