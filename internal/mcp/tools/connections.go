package tools

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/internal/catalog"
	"github.com/usestring/aptrace/pkg/types"
)

// ConnectionFilter narrows the connections a tool looks at.
type ConnectionFilter struct {
	Server     string `json:"server,omitempty" jsonschema:"Exact server address as ip:port"`
	ServerIP   string `json:"server_ip,omitempty" jsonschema:"Server IP address"`
	ServerPort int    `json:"server_port,omitempty" jsonschema:"Server port"`
	ClientIP   string `json:"client_ip,omitempty" jsonschema:"Client IP address"`
	Since      int64  `json:"since,omitempty" jsonschema:"Earliest connection timestamp, unix seconds"`
	Until      int64  `json:"until,omitempty" jsonschema:"Latest connection timestamp, unix seconds"`
	MinPackets int    `json:"min_packets,omitempty" jsonschema:"Minimum number of packets"`
}

func (f ConnectionFilter) request() *types.ListRequest {
	return &types.ListRequest{
		Server:     f.Server,
		ServerIP:   f.ServerIP,
		ServerPort: f.ServerPort,
		ClientIP:   f.ClientIP,
		Since:      f.Since,
		Until:      f.Until,
		MinPackets: f.MinPackets,
	}
}

// ListConnectionsInput is the input for aplog_list_connections.
type ListConnectionsInput struct {
	ConnectionFilter
	Where  string `json:"where,omitempty" jsonschema:"jq expression run against each connection summary; keeps connections for which it yields a value other than false or null"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Page size (default: 50)"`
	Offset int    `json:"offset,omitempty" jsonschema:"Number of matches to skip"`
}

// ListConnectionsOutput is the output for aplog_list_connections.
type ListConnectionsOutput struct {
	Connections []types.ConnectionSummary `json:"connections,omitzero"`
	Total       int                       `json:"total"`
	HasMore     bool                      `json:"has_more,omitempty"`
	Errors      []string                  `json:"errors,omitzero"`
}

// ToolListConnections lists connection summaries in log order.
func ToolListConnections(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input ListConnectionsInput) (*sdkmcp.CallToolResult, ListConnectionsOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ListConnectionsInput) (*sdkmcp.CallToolResult, ListConnectionsOutput, error) {
		if input.Where != "" {
			if err := d.Query.ValidateExpression(input.Where); err != nil {
				return nil, ListConnectionsOutput{}, ErrInvalidInput(fmt.Sprintf("invalid where expression: %v", err))
			}
		}

		cat, err := d.Catalog()
		if err != nil {
			return nil, ListConnectionsOutput{}, WrapLogError(err)
		}

		listReq := input.request()
		listReq.Limit = input.Limit
		if listReq.Limit <= 0 {
			listReq.Limit = d.Config.DefaultListLimit
		}
		listReq.Offset = input.Offset

		matched := cat.Matching(listReq)
		var errs []string
		if input.Where != "" {
			matched, errs, err = d.Query.Filter(matched, input.Where)
			if err != nil {
				return nil, ListConnectionsOutput{}, ErrInvalidInput(err.Error())
			}
		}

		page := catalog.Page(matched, listReq)
		return nil, ListConnectionsOutput{
			Connections: page.Connections,
			Total:       page.Total,
			HasMore:     page.HasMore,
			Errors:      errs,
		}, nil
	}
}

// QueryConnectionsInput is the input for aplog_query_connections.
type QueryConnectionsInput struct {
	ConnectionFilter
	Expression  string `json:"expression" jsonschema:"jq expression evaluated once per connection summary"`
	Deduplicate bool   `json:"deduplicate,omitempty" jsonschema:"Drop repeated values"`
	MaxResults  int    `json:"max_results,omitempty" jsonschema:"Stop after this many values (default: 1000)"`
}

const defaultMaxQueryResults = 1000

// ToolQueryConnections extracts values from connection summaries with jq.
func ToolQueryConnections(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input QueryConnectionsInput) (*sdkmcp.CallToolResult, types.QueryResponse, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input QueryConnectionsInput) (*sdkmcp.CallToolResult, types.QueryResponse, error) {
		if input.Expression == "" {
			return nil, types.QueryResponse{}, ErrInvalidInput("expression is required")
		}

		q := &types.QueryRequest{
			Expression:  input.Expression,
			Filter:      input.request(),
			Deduplicate: input.Deduplicate,
			MaxResults:  input.MaxResults,
		}
		if q.MaxResults <= 0 {
			q.MaxResults = defaultMaxQueryResults
		}

		cat, err := d.Catalog()
		if err != nil {
			return nil, types.QueryResponse{}, WrapLogError(err)
		}
		summaries := cat.Matching(q.Filter)

		result, err := d.Query.Run(summaries, q.Expression, q.Deduplicate, q.MaxResults)
		if err != nil {
			return nil, types.QueryResponse{}, ErrInvalidInput(err.Error())
		}

		return nil, types.QueryResponse{
			Summary: types.QuerySummary{
				ConnectionsProcessed: len(summaries),
				ConnectionsMatched:   len(result.Matched),
				TotalValues:          len(result.Values),
				Deduplicated:         q.Deduplicate,
				Truncated:            len(result.Values) >= q.MaxResults,
			},
			Values:  result.Values,
			Matched: result.Matched,
			Errors:  result.Errors,
		}, nil
	}
}
