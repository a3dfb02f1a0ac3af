// Package compare provides fingerprint generation and diff capabilities for
// capture log connections.
package compare

// DefaultContextLines is the number of unchanged lines around each hunk of
// a unified diff.
const DefaultContextLines = 3

// DefaultMaxUnifiedBytes caps the unified diff text carried in a result.
const DefaultMaxUnifiedBytes = 64 << 10

func defaultDiffOptions() diffOptions {
	return diffOptions{
		compareEndpoints: true,
		compareTiming:    true,
		contextLines:     DefaultContextLines,
		maxUnifiedBytes:  DefaultMaxUnifiedBytes,
	}
}

// diffOptions is the resolved form of types.DiffOptions.
type diffOptions struct {
	compareEndpoints bool
	compareTiming    bool
	contextLines     int
	maxUnifiedBytes  int
}
