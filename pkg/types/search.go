package types

// SearchRequest describes a byte pattern search over packet payloads.
type SearchRequest struct {
	Pattern    string
	Hex        bool   // Pattern is hex encoded, spaces ignored
	IgnoreCase bool   // ASCII case folding
	Direction  string // "", "client" or "server"
	Filter     *ListRequest
	Limit      int // Default 50
	Offset     int
}

// SearchMatch is one occurrence of the pattern. A match never spans two
// packets.
type SearchMatch struct {
	Offset     int64  `json:"offset"` // absolute offset of the first matching byte
	Length     int    `json:"length"`
	Connection int    `json:"connection"`
	Start      int64  `json:"connection_start"`
	Packet     int    `json:"packet"`
	Direction  string `json:"direction"`
	Context    string `json:"context,omitempty"` // escaped bytes around the match
}

// SearchResponse contains a page of matches in log order.
type SearchResponse struct {
	Matches     []SearchMatch `json:"matches,omitzero"`
	Total       int           `json:"total"` // matches before paging
	HasMore     bool          `json:"has_more,omitempty"`
	Connections int           `json:"connections_scanned"`
}
