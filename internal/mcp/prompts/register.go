package prompts

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register registers all prompts with the MCP server.
func Register(srv *sdkmcp.Server, cfg *Config) {
	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "investigate_offset",
		Description: "RECOMMENDED: Explain what sits at a byte offset of the capture log, e.g. a hit reported by a grep or a fuzzer. Walks from offset to packet to connection and suggests the cheapest tools first.",
		Arguments: []*sdkmcp.PromptArgument{
			{
				Name:        "offset",
				Description: "Absolute byte offset into the capture log",
				Required:    true,
			},
			{
				Name:        "length",
				Description: "Number of bytes of interest (default: 1)",
				Required:    false,
			},
		},
	}, HandleInvestigateOffset(cfg))

	srv.AddPrompt(&sdkmcp.Prompt{
		Name:        "analyze_fault",
		Description: "Analyze a connection confirmed by triage to make the target print its fault marker: compare it with similar connections and isolate the packet that triggers the fault.",
		Arguments: []*sdkmcp.PromptArgument{
			{
				Name:        "offset",
				Description: "Confirmed offset reported by triage",
				Required:    true,
			},
		},
	}, HandleAnalyzeFault(cfg))
}
