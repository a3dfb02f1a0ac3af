package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrConfig reports an unusable render configuration: an unknown format
	// name or a format missing one of its inputs. It is raised before any
	// I/O happens.
	ErrConfig = errors.New("render configuration")

	// ErrNotFound reports an offset that resolves to no connection.
	ErrNotFound = errors.New("no connection at offset")
)

// Format selects a render variant.
type Format int

const (
	FormatInvalid Format = iota

	FormatStr         // dump, payload as raw text
	FormatHex         // dump, payload as hex bytes
	FormatRepr        // dump, payload as escaped text
	FormatLocate      // payload span holding the target
	FormatBounds      // packet region of the connection holding the target
	FormatLiteral     // Go source, one constant per packet
	FormatReplayNaive // Python transcript, no network I/O
	FormatReplayDiff  // Python live replay with diff against the capture
	FormatPcap        // original frames copied out of the full capture
)

var formatNames = map[Format]string{
	FormatStr:         "str",
	FormatHex:         "hex",
	FormatRepr:        "repr",
	FormatLocate:      "locate",
	FormatBounds:      "bounds",
	FormatLiteral:     "literal",
	FormatReplayNaive: "replay-naive",
	FormatReplayDiff:  "replay-diff",
	FormatPcap:        "pcap",
}

// registry maps every accepted name, aliases included, to its format.
// Aliases are the names used by the web front end.
var registry = map[string]Format{
	"loc":          FormatLocate,
	"locconn":      FormatBounds,
	"pythonsimple": FormatReplayNaive,
	"pythondiff":   FormatReplayDiff,
}

func init() {
	for f, name := range formatNames {
		registry[name] = f
	}
}

// ParseFormat looks name up in the fixed registry.
func ParseFormat(name string) (Format, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return FormatInvalid, fmt.Errorf("%w: unknown format %q (want one of %s)",
			ErrConfig, name, strings.Join(FormatNames(), ", "))
	}
	return f, nil
}

// FormatNames returns the canonical format names, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(formatNames))
	for _, n := range formatNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// String returns the canonical name.
func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Binary reports whether the artifact is not text.
func (f Format) Binary() bool {
	return f == FormatPcap
}

// Options carries the inputs some formats need.
type Options struct {
	// CapturePath is the original full capture, required by FormatPcap.
	CapturePath string

	// ReadTimeout bounds each receive in FormatReplayDiff scripts.
	ReadTimeout time.Duration

	// Location is used for dump timestamps. Nil means UTC.
	Location *time.Location

	// Package names the Go package emitted by FormatLiteral.
	Package string
}

// DefaultReadTimeout is the replay receive timeout when none is set.
const DefaultReadTimeout = 2 * time.Second

// Validate checks that f has everything it needs.
func (o Options) Validate(f Format) error {
	if _, ok := formatNames[f]; !ok {
		return fmt.Errorf("%w: invalid format %d", ErrConfig, int(f))
	}
	if f == FormatPcap && o.CapturePath == "" {
		return fmt.Errorf("%w: format %s needs the original capture path", ErrConfig, f)
	}
	if o.ReadTimeout < 0 {
		return fmt.Errorf("%w: negative read timeout %s", ErrConfig, o.ReadTimeout)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout == 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Package == "" {
		o.Package = "capture"
	}
	return o
}
