package tools

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all tools with the MCP server.
func Register(srv *sdkmcp.Server, d *Deps) {
	AddTool(srv, &sdkmcp.Tool{
		Name:        "aplog_summary",
		Description: "Summarize the capture log: size, connection count, time range, traffic totals and the busiest server endpoints with example offsets",
	}, ToolSummary(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "aplog_list_connections",
		Description: "List connection summaries in log order. Filter by server, client, port, time window or packet count; 'where' takes a jq expression evaluated against each summary (e.g. '.server_bytes > 1000').",
	}, ToolListConnections(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "aplog_query_connections",
		Description: "Run a jq expression against every matching connection summary and collect the values (e.g. '.server' with deduplicate=true lists distinct servers)",
	}, ToolQueryConnections(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "aplog_search_payloads",
		Description: "Find a byte pattern (text or hex) in packet payloads and return the absolute offset, connection, packet and context of every match. Matches never span packets. Feed the offsets to aplog_context or aplog_render.",
	}, ToolSearchPayloads(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "aplog_resolve_offset",
		Description: "Resolve an absolute log offset to its connection, packet index, direction and payload span. on_payload is false when the offset lands on a header or length byte.",
	}, ToolResolveOffset(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "aplog_context",
		Description: "Show the bytes at an offset with up to 50 bytes of context before and 30 after, crossing at most one packet boundary on each side, escaped on one line",
	}, ToolContext(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "aplog_render",
		Description: "Render the connection holding an offset as str, hex or repr dumps, locate or bounds spans, a Go literal file, a naive or diffing Python replay script, or a pcap of its original frames (pcap needs output_path)",
	}, ToolRender(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "aplog_diff_connections",
		Description: "Compare the packet sequences of two connections: traffic counts, first divergent packet and byte, metadata differences and a unified diff of the transcripts",
	}, ToolDiffConnections(d))

	AddTool(srv, &sdkmcp.Tool{
		Name:        "aplog_fingerprint",
		Description: "Hash the packet sequence of a connection, overall and per direction, with its shape (direction and length per packet)",
	}, ToolFingerprint(d))
}
