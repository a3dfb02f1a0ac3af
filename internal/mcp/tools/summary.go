package tools

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/pkg/types"
)

const defaultTopEndpoints = 10

// SummaryInput is the input for aplog_summary.
type SummaryInput struct {
	TopEndpoints int `json:"top_endpoints,omitempty" jsonschema:"Number of busiest server endpoints to include (default: 10)"`
}

// SummaryOutput is the output for aplog_summary.
type SummaryOutput struct {
	Summary *types.LogSummary `json:"summary"`
}

// ToolSummary describes the whole capture log.
func ToolSummary(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input SummaryInput) (*sdkmcp.CallToolResult, SummaryOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input SummaryInput) (*sdkmcp.CallToolResult, SummaryOutput, error) {
		cat, err := d.Catalog()
		if err != nil {
			return nil, SummaryOutput{}, WrapLogError(err)
		}

		top := input.TopEndpoints
		if top <= 0 {
			top = defaultTopEndpoints
		}

		summary := cat.Summary(top)
		summary.Path = d.Config.LogPath
		return nil, SummaryOutput{Summary: summary}, nil
	}
}
