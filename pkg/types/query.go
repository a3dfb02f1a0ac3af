package types

// QueryRequest contains parameters for a jq query over connection summaries.
type QueryRequest struct {
	Expression  string       // JQ expression, run once per connection summary
	Filter      *ListRequest // Optional pre-filter; paging fields are ignored
	Deduplicate bool
	MaxResults  int // Default 1000
}

// QueryResult contains the results of a query.
type QueryResult struct {
	Values   []any    `json:"values"`           // Extracted values
	Errors   []string `json:"errors,omitempty"` // Per-connection errors
	RawCount int      `json:"raw_count"`        // Count before deduplication
	Matched  []int64  `json:"matched,omitempty"` // Start offsets of connections that produced values
}

// QuerySummary contains summary statistics for a query.
type QuerySummary struct {
	ConnectionsProcessed int  `json:"connections_processed"`
	ConnectionsMatched   int  `json:"connections_matched"`
	TotalValues          int  `json:"total_values"`
	Deduplicated         bool `json:"deduplicated"`
	Truncated            bool `json:"truncated,omitempty"`
}

// QueryResponse contains the full response from a query.
type QueryResponse struct {
	Summary QuerySummary `json:"summary"`
	Values  []any        `json:"values,omitzero"`
	Matched []int64      `json:"matched,omitempty"`
	Errors  []string     `json:"errors,omitempty"`
}
