package types

// Fingerprint identifies a connection by its packet sequence.
type Fingerprint struct {
	Connection *ConnectionSummary `json:"connection"`
	Hash       string             `json:"hash"`           // SHA-256 over directions and payloads
	ClientHash string             `json:"client_hash"`    // client payloads only
	ServerHash string             `json:"server_hash"`    // server payloads only
	Shape      []string           `json:"shape,omitzero"` // e.g. ["c5", "s6"]
}

// DiffRequest contains parameters for comparing two connections.
type DiffRequest struct {
	BaselineOffset  int64
	CandidateOffset int64
	Options         *DiffOptions
}

// DiffOptions controls diff behavior.
type DiffOptions struct {
	CompareEndpoints bool // Default true
	CompareTiming    bool // Default true
	ContextLines     int  // Default 3
	MaxUnifiedBytes  int  // Default 64KiB, 0 keeps the default
}

// DiffResult contains the structured comparison of two connections.
type DiffResult struct {
	Baseline       *ConnectionSummary `json:"baseline"`
	Candidate      *ConnectionSummary `json:"candidate"`
	Identical      bool               `json:"identical"` // same packet sequence
	ImportantDiffs ImportantDiffs     `json:"important_diffs"`
	NoisyDiffs     NoisyDiffs         `json:"noisy_diffs"`
	Unified        string             `json:"unified,omitempty"`
	Truncated      bool               `json:"truncated,omitempty"`
}

// ImportantDiffs contains differences in what was said on the wire.
type ImportantDiffs struct {
	PacketCount     *CountDiff        `json:"packet_count,omitempty"`
	ClientBytes     *CountDiff        `json:"client_bytes,omitempty"`
	ServerBytes     *CountDiff        `json:"server_bytes,omitempty"`
	FirstDivergence *PacketDivergence `json:"first_divergence,omitempty"`
}

// NoisyDiffs contains differences in connection metadata.
type NoisyDiffs struct {
	Client        *ValueDiff `json:"client,omitempty"`
	Server        *ValueDiff `json:"server,omitempty"`
	TimestampSkew int64      `json:"timestamp_skew,omitempty"` // candidate minus baseline, seconds
	FramesDiffer  bool       `json:"frames_differ,omitempty"`
}

// CountDiff represents a numeric difference.
type CountDiff struct {
	Baseline  int64 `json:"baseline"`
	Candidate int64 `json:"candidate"`
}

// ValueDiff represents a textual difference.
type ValueDiff struct {
	Baseline  string `json:"baseline"`
	Candidate string `json:"candidate"`
}

// PacketDivergence locates the first packet that differs.
type PacketDivergence struct {
	Index           int    `json:"index"`
	Reason          string `json:"reason"` // "direction", "payload", "missing"
	BaselineOffset  int64  `json:"baseline_offset,omitempty"`
	CandidateOffset int64  `json:"candidate_offset,omitempty"`
	ByteIndex       int    `json:"byte_index"` // first differing payload byte
}
