package tools

import (
	"context"
	"errors"

	"github.com/RoaringBitmap/roaring/v2"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/internal/search"
	"github.com/usestring/aptrace/pkg/types"
)

// SearchPayloadsInput is the input for aplog_search_payloads.
type SearchPayloadsInput struct {
	ConnectionFilter
	Pattern    string `json:"pattern" jsonschema:"Bytes to find, as text or as hex when hex is set"`
	Hex        bool   `json:"hex,omitempty" jsonschema:"Treat pattern as hex, spaces ignored"`
	IgnoreCase bool   `json:"ignore_case,omitempty" jsonschema:"Fold ASCII letters before matching"`
	Direction  string `json:"direction,omitempty" jsonschema:"client or server; both when empty"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Page size (default: 50)"`
	Offset     int    `json:"offset,omitempty" jsonschema:"Number of matches to skip"`
}

// SearchPayloadsOutput is the output for aplog_search_payloads.
type SearchPayloadsOutput struct {
	types.SearchResponse
	Resources []*types.ResourceRef `json:"resources,omitzero"`
}

// ToolSearchPayloads finds a byte pattern in packet payloads and returns
// the absolute offsets of the matches.
func ToolSearchPayloads(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input SearchPayloadsInput) (*sdkmcp.CallToolResult, SearchPayloadsOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input SearchPayloadsInput) (*sdkmcp.CallToolResult, SearchPayloadsOutput, error) {
		sreq := &types.SearchRequest{
			Pattern:    input.Pattern,
			Hex:        input.Hex,
			IgnoreCase: input.IgnoreCase,
			Direction:  input.Direction,
			Filter:     input.request(),
			Limit:      input.Limit,
			Offset:     input.Offset,
		}
		if sreq.Limit <= 0 {
			sreq.Limit = d.Config.DefaultListLimit
		}
		if err := search.Validate(sreq); err != nil {
			return nil, SearchPayloadsOutput{}, ErrInvalidInput(err.Error())
		}

		var candidates *roaring.Bitmap
		if *sreq.Filter != (types.ListRequest{}) {
			cat, err := d.Catalog()
			if err != nil {
				return nil, SearchPayloadsOutput{}, WrapLogError(err)
			}
			candidates = cat.Match(sreq.Filter)
		}

		resp, err := d.Search.Search(ctx, sreq, candidates)
		if errors.Is(err, search.ErrPattern) {
			return nil, SearchPayloadsOutput{}, ErrInvalidInput(err.Error())
		}
		if err != nil {
			return nil, SearchPayloadsOutput{}, WrapLogError(err)
		}

		out := SearchPayloadsOutput{SearchResponse: *resp}
		seen := make(map[int64]bool)
		for _, m := range resp.Matches {
			if !seen[m.Start] {
				seen[m.Start] = true
				out.Resources = append(out.Resources, connectionRef(m.Start))
			}
		}
		return nil, out, nil
	}
}
