package tools

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/internal/catalog"
	"github.com/usestring/aptrace/internal/resolve"
	"github.com/usestring/aptrace/pkg/aplog"
	"github.com/usestring/aptrace/pkg/types"
)

// ResolveOffsetInput is the input for aplog_resolve_offset.
type ResolveOffsetInput struct {
	Offset int64 `json:"offset" jsonschema:"Absolute byte offset into the capture log"`
	Length int   `json:"length,omitempty" jsonschema:"Number of bytes of interest starting at offset (default: 1)"`
}

// ResolveOffsetOutput is the output for aplog_resolve_offset.
type ResolveOffsetOutput struct {
	Connection  *types.ConnectionSummary `json:"connection"`
	Region      aplog.Span               `json:"region"`     // packet region of the connection
	OnPayload   bool                     `json:"on_payload"` // false for header and length bytes
	PacketIndex int                      `json:"packet_index,omitempty"`
	Direction   string                   `json:"direction,omitempty"` // "cs" or "sc"
	Payload     *aplog.Span              `json:"payload,omitempty"`   // span of the whole payload
	Target      *aplog.Span              `json:"target,omitempty"`    // bytes of interest, clipped to the payload
	Resource    *types.ResourceRef       `json:"resource,omitempty"`
}

// ToolResolveOffset maps an absolute offset to its connection and packet.
func ToolResolveOffset(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input ResolveOffsetInput) (*sdkmcp.CallToolResult, ResolveOffsetOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ResolveOffsetInput) (*sdkmcp.CallToolResult, ResolveOffsetOutput, error) {
		if input.Offset < 0 {
			return nil, ResolveOffsetOutput{}, ErrInvalidInput("offset must not be negative")
		}
		length := input.Length
		if length <= 0 {
			length = 1
		}

		h, err := d.Log.HeaderAt(input.Offset)
		if err != nil {
			return nil, ResolveOffsetOutput{}, WrapLogError(err)
		}
		summary, err := catalog.Summarize(d.Log, h.Index)
		if err != nil {
			return nil, ResolveOffsetOutput{}, WrapLogError(err)
		}

		out := ResolveOffsetOutput{
			Connection: summary,
			Region:     h.PacketRegion(),
			Resource:   connectionRef(h.Start),
		}

		loc, err := resolve.Locate(d.Log, input.Offset, length)
		if err != nil {
			return nil, ResolveOffsetOutput{}, WrapLogError(err)
		}
		if loc == nil {
			return nil, out, nil
		}

		p := loc.Packet()
		payload := p.Span()
		target := loc.Span()
		out.OnPayload = true
		out.PacketIndex = loc.PacketIndex
		out.Direction = p.Direction.String()
		out.Payload = &payload
		out.Target = &target
		return nil, out, nil
	}
}

// ContextInput is the input for aplog_context.
type ContextInput struct {
	Offset int64 `json:"offset" jsonschema:"Absolute byte offset into the capture log"`
	Length int   `json:"length,omitempty" jsonschema:"Number of target bytes (default: 0)"`
}

// ContextOutput is the output for aplog_context.
type ContextOutput struct {
	Context     string `json:"context"` // escaped window, empty on header bytes
	WindowBytes int    `json:"window_bytes"`
	LeftLimit   int    `json:"left_limit"`
	RightLimit  int    `json:"right_limit"`
}

// ToolContext returns the bytes around an offset, escaped for display.
func ToolContext(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input ContextInput) (*sdkmcp.CallToolResult, ContextOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input ContextInput) (*sdkmcp.CallToolResult, ContextOutput, error) {
		if input.Offset < 0 {
			return nil, ContextOutput{}, ErrInvalidInput("offset must not be negative")
		}
		if input.Length < 0 {
			return nil, ContextOutput{}, ErrInvalidInput("length must not be negative")
		}

		window, err := resolve.Window(d.Log, input.Offset, input.Length)
		if err != nil {
			return nil, ContextOutput{}, WrapLogError(err)
		}

		return nil, ContextOutput{
			Context:     resolve.Escape(window),
			WindowBytes: len(window),
			LeftLimit:   resolve.LeftContext,
			RightLimit:  resolve.RightContext,
		}, nil
	}
}
