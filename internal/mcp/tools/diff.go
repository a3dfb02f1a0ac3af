package tools

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/internal/compare"
	"github.com/usestring/aptrace/pkg/types"
)

// DiffConnectionsInput is the input for aplog_diff_connections.
type DiffConnectionsInput struct {
	BaselineOffset  int64 `json:"baseline_offset" jsonschema:"Any offset inside the baseline connection"`
	CandidateOffset int64 `json:"candidate_offset" jsonschema:"Any offset inside the candidate connection"`
	IgnoreEndpoints bool  `json:"ignore_endpoints,omitempty" jsonschema:"Skip client and server address differences"`
	IgnoreTiming    bool  `json:"ignore_timing,omitempty" jsonschema:"Skip timestamp differences"`
	ContextLines    int   `json:"context_lines,omitempty" jsonschema:"Unified diff context lines (default: 3)"`
	MaxUnifiedBytes int   `json:"max_unified_bytes,omitempty" jsonschema:"Cap on the unified diff size (default: 65536)"`
}

// DiffConnectionsOutput is the output for aplog_diff_connections.
type DiffConnectionsOutput struct {
	Diff      *types.DiffResult    `json:"diff"`
	Severity  string               `json:"severity,omitempty"`
	Resources []*types.ResourceRef `json:"resources,omitzero"`
}

// ToolDiffConnections compares the packet sequences of two connections.
func ToolDiffConnections(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input DiffConnectionsInput) (*sdkmcp.CallToolResult, DiffConnectionsOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input DiffConnectionsInput) (*sdkmcp.CallToolResult, DiffConnectionsOutput, error) {
		diffReq := &types.DiffRequest{
			BaselineOffset:  input.BaselineOffset,
			CandidateOffset: input.CandidateOffset,
			Options: &types.DiffOptions{
				CompareEndpoints: !input.IgnoreEndpoints,
				CompareTiming:    !input.IgnoreTiming,
				ContextLines:     input.ContextLines,
				MaxUnifiedBytes:  input.MaxUnifiedBytes,
			},
		}

		result, err := d.Diff.Diff(diffReq)
		if err != nil {
			return nil, DiffConnectionsOutput{}, WrapLogError(err)
		}

		return nil, DiffConnectionsOutput{
			Diff:     result,
			Severity: computeDiffSeverity(result),
			Resources: []*types.ResourceRef{
				connectionRef(result.Baseline.Start),
				connectionRef(result.Candidate.Start),
			},
		}, nil
	}
}

// computeDiffSeverity ranks a diff result.
// "high": the packet sequences diverge in direction or length.
// "medium": same shape, different payload bytes.
// "low": only connection metadata differs.
// "none": no differences.
func computeDiffSeverity(result *types.DiffResult) string {
	if result == nil {
		return "none"
	}

	imp := result.ImportantDiffs
	if imp.PacketCount != nil {
		return "high"
	}
	if div := imp.FirstDivergence; div != nil && div.Reason != "payload" {
		return "high"
	}
	if !result.Identical || imp.FirstDivergence != nil || imp.ClientBytes != nil || imp.ServerBytes != nil {
		return "medium"
	}

	noisy := result.NoisyDiffs
	if noisy.Client != nil || noisy.Server != nil || noisy.TimestampSkew != 0 || noisy.FramesDiffer {
		return "low"
	}
	return "none"
}

// FingerprintInput is the input for aplog_fingerprint.
type FingerprintInput struct {
	Offset int64 `json:"offset" jsonschema:"Any offset inside the connection"`
}

// FingerprintOutput is the output for aplog_fingerprint.
type FingerprintOutput struct {
	Fingerprint *types.Fingerprint `json:"fingerprint"`
	Resource    *types.ResourceRef `json:"resource,omitempty"`
}

// ToolFingerprint hashes the packet sequence of a connection.
func ToolFingerprint(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input FingerprintInput) (*sdkmcp.CallToolResult, FingerprintOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input FingerprintInput) (*sdkmcp.CallToolResult, FingerprintOutput, error) {
		fp, err := compare.Fingerprint(d.Log, input.Offset)
		if err != nil {
			return nil, FingerprintOutput{}, WrapLogError(err)
		}
		return nil, FingerprintOutput{
			Fingerprint: fp,
			Resource:    connectionRef(fp.Connection.Start),
		}, nil
	}
}
