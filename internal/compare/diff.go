package compare

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/usestring/aptrace/internal/resolve"
	"github.com/usestring/aptrace/pkg/aplog"
	"github.com/usestring/aptrace/pkg/types"
)

// DiffEngine compares two connections of one capture log.
type DiffEngine struct {
	log *aplog.Reader
}

// NewDiffEngine creates a new DiffEngine over r.
func NewDiffEngine(r *aplog.Reader) *DiffEngine {
	return &DiffEngine{log: r}
}

// Diff compares the connections holding the two request offsets.
func (d *DiffEngine) Diff(req *types.DiffRequest) (*types.DiffResult, error) {
	opts := defaultDiffOptions()
	if req.Options != nil {
		opts.compareEndpoints = req.Options.CompareEndpoints
		opts.compareTiming = req.Options.CompareTiming
		if req.Options.ContextLines > 0 {
			opts.contextLines = req.Options.ContextLines
		}
		if req.Options.MaxUnifiedBytes > 0 {
			opts.maxUnifiedBytes = req.Options.MaxUnifiedBytes
		}
	}

	baseline, err := d.log.ConnectionAt(req.BaselineOffset)
	if err != nil {
		return nil, fmt.Errorf("reading baseline connection: %w", err)
	}
	candidate, err := d.log.ConnectionAt(req.CandidateOffset)
	if err != nil {
		return nil, fmt.Errorf("reading candidate connection: %w", err)
	}

	baseFP, err := fingerprintOf(d.log, baseline)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting baseline: %w", err)
	}
	candFP, err := fingerprintOf(d.log, candidate)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting candidate: %w", err)
	}

	result := &types.DiffResult{
		Baseline:  baseFP.Connection,
		Candidate: candFP.Connection,
		Identical: baseFP.Hash == candFP.Hash,
	}

	result.ImportantDiffs = diffTraffic(baseFP.Connection, candFP.Connection)
	if !result.Identical {
		result.ImportantDiffs.FirstDivergence = firstDivergence(baseline.Packets, candidate.Packets)
	}

	if opts.compareEndpoints {
		result.NoisyDiffs.Client = diffValue(baseFP.Connection.Client, candFP.Connection.Client)
		result.NoisyDiffs.Server = diffValue(baseFP.Connection.Server, candFP.Connection.Server)
	}
	if opts.compareTiming {
		result.NoisyDiffs.TimestampSkew = candFP.Connection.Timestamp - baseFP.Connection.Timestamp
	}
	result.NoisyDiffs.FramesDiffer = !equalFrames(baseline.FrameIDs, candidate.FrameIDs)

	if !result.Identical {
		unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        transcript(baseline.Packets),
			B:        transcript(candidate.Packets),
			FromFile: fmt.Sprintf("conn@%d", baseline.Start),
			ToFile:   fmt.Sprintf("conn@%d", candidate.Start),
			Context:  opts.contextLines,
		})
		if err != nil {
			return nil, fmt.Errorf("building unified diff: %w", err)
		}
		if len(unified) > opts.maxUnifiedBytes {
			unified = unified[:opts.maxUnifiedBytes]
			result.Truncated = true
		}
		result.Unified = unified
	}

	return result, nil
}

// transcript renders one line per packet, direction tag first.
func transcript(packets []aplog.Packet) []string {
	lines := make([]string, len(packets))
	for i, p := range packets {
		lines[i] = p.Direction.String()[:1] + " " + resolve.Quote(p.Payload) + "\n"
	}
	return lines
}

func diffTraffic(a, b *types.ConnectionSummary) types.ImportantDiffs {
	var diffs types.ImportantDiffs
	if a.Packets != b.Packets {
		diffs.PacketCount = &types.CountDiff{Baseline: int64(a.Packets), Candidate: int64(b.Packets)}
	}
	if a.ClientBytes != b.ClientBytes {
		diffs.ClientBytes = &types.CountDiff{Baseline: a.ClientBytes, Candidate: b.ClientBytes}
	}
	if a.ServerBytes != b.ServerBytes {
		diffs.ServerBytes = &types.CountDiff{Baseline: a.ServerBytes, Candidate: b.ServerBytes}
	}
	return diffs
}

// firstDivergence returns the first packet position at which a and b
// differ, or nil when they are equal.
func firstDivergence(a, b []aplog.Packet) *types.PacketDivergence {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		pa, pb := a[i], b[i]
		if pa.Direction != pb.Direction {
			return &types.PacketDivergence{
				Index:           i,
				Reason:          "direction",
				BaselineOffset:  pa.Offset,
				CandidateOffset: pb.Offset,
			}
		}
		if j := firstByteDiff(pa.Payload, pb.Payload); j >= 0 {
			return &types.PacketDivergence{
				Index:           i,
				Reason:          "payload",
				BaselineOffset:  pa.Offset + int64(j),
				CandidateOffset: pb.Offset + int64(j),
				ByteIndex:       j,
			}
		}
	}
	if len(a) == len(b) {
		return nil
	}

	div := &types.PacketDivergence{Index: n, Reason: "missing"}
	if n < len(a) {
		div.BaselineOffset = a[n].Offset
	} else {
		div.CandidateOffset = b[n].Offset
	}
	return div
}

// firstByteDiff returns the first index where a and b differ, counting a
// length mismatch as a difference at the shorter length, or -1.
func firstByteDiff(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}

func diffValue(a, b string) *types.ValueDiff {
	if a == b {
		return nil
	}
	return &types.ValueDiff{Baseline: a, Candidate: b}
}

func equalFrames(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
