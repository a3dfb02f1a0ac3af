package types

// Endpoint aggregates every connection made to one server address.
type Endpoint struct {
	Server         string  `json:"server"` // ip:port
	Connections    int     `json:"connections"`
	Clients        int     `json:"clients"` // distinct client IPs
	FirstSeen      int64   `json:"first_seen"`
	LastSeen       int64   `json:"last_seen"`
	ExampleOffsets []int64 `json:"example_offsets,omitzero"`
	Traffic
}

// ListRequest contains parameters for listing connections.
type ListRequest struct {
	Server     string // exact ip:port
	ServerIP   string
	ServerPort int
	ClientIP   string
	Since      int64 // unix seconds, inclusive
	Until      int64 // unix seconds, inclusive
	MinPackets int
	Limit      int // Default 50
	Offset     int
}

// ListResponse contains a page of connection summaries.
type ListResponse struct {
	Connections []ConnectionSummary `json:"connections"`
	Total       int                 `json:"total"` // matches before paging
	HasMore     bool                `json:"has_more,omitempty"`
}

// LogSummary describes a whole capture log.
type LogSummary struct {
	Path        string     `json:"path,omitempty"`
	Size        int64      `json:"size"`
	Span        int64      `json:"span"` // bytes covered by connections
	Connections int        `json:"connections"`
	Empty       int        `json:"empty_connections"` // records without packets
	FirstSeen   string     `json:"first_seen,omitempty"`
	LastSeen    string     `json:"last_seen,omitempty"`
	Endpoints   []Endpoint `json:"endpoints,omitzero"`
	Traffic
}
