// Package types provides shared types for aptrace.
// These types are used across multiple packages and are designed for external consumption.
package types

import "encoding/json"

// ToAny round-trips a typed value through JSON to produce an untyped any.
// Use this when a value must be fed to a jq program or returned as an MCP
// tool output field of type any.
func ToAny(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConnectionSummary is a compact connection representation for listings.
type ConnectionSummary struct {
	Index        int    `json:"index"`
	Start        int64  `json:"start"`         // first byte of the record
	End          int64  `json:"end"`           // one past the last byte
	PacketsStart int64  `json:"packets_start"` // first byte of the packet region
	Client       string `json:"client"`        // ip:port
	Server       string `json:"server"`        // ip:port
	ClientIP     string `json:"client_ip"`
	ServerIP     string `json:"server_ip"`
	ClientPort   int    `json:"client_port"`
	ServerPort   int    `json:"server_port"`
	Timestamp    int64  `json:"timestamp"` // unix seconds
	Time         string `json:"time"`      // RFC 3339, UTC
	Frames       int    `json:"frames"`
	Traffic
}

// Traffic counts packets and payload bytes per direction.
type Traffic struct {
	Packets       int   `json:"packets"`
	ClientPackets int   `json:"client_packets"`
	ServerPackets int   `json:"server_packets"`
	ClientBytes   int64 `json:"client_bytes"`
	ServerBytes   int64 `json:"server_bytes"`
}

// Add accumulates o into t.
func (t *Traffic) Add(o Traffic) {
	t.Packets += o.Packets
	t.ClientPackets += o.ClientPackets
	t.ServerPackets += o.ServerPackets
	t.ClientBytes += o.ClientBytes
	t.ServerBytes += o.ServerBytes
}

// ResourceRef points to an MCP resource.
type ResourceRef struct {
	URI  string `json:"uri"`
	MIME string `json:"mime"`
	Hint string `json:"hint,omitempty"`
}
