// Package triage replays every connection of a capture log against a live
// target and reports which replays make it fault.
//
// A single producer walks the log with a cursor. Offsets in header bytes
// advance the cursor by one; an offset inside a packet region yields one
// candidate and moves the cursor to the end of that region. Each candidate
// is rendered as a replay-diff script, deduplicated by content hash and,
// when new, executed against the target by a bounded worker pool.
package triage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/usestring/aptrace/internal/render"
	"github.com/usestring/aptrace/pkg/aplog"
)

// ErrExecution reports that a replay script could not be run to completion.
// It never aborts a run; the candidate is classified as NoEffect.
var ErrExecution = errors.New("test execution failed")

// Defaults applied to a zero Config.
const (
	DefaultWorkers = 100
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 4000
	DefaultMarker  = "FARKFARKFARK"
)

// Config controls a triage run.
type Config struct {
	Workers     int           // concurrent tests
	Host        string        // target address handed to each script
	Port        int           // target port handed to each script
	Marker      string        // output substring that confirms a fault
	ReadTimeout time.Duration // per-read timeout baked into the scripts
	ScriptDir   string        // where scripts are written, "" for os.TempDir
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = render.DefaultReadTimeout
	}
	return c
}

// Outcome classifies a candidate.
type Outcome int

const (
	NoEffect Outcome = iota
	Duplicate
	Confirmed
)

var outcomeNames = [...]string{
	NoEffect:  "no_effect",
	Duplicate: "duplicate",
	Confirmed: "confirmed",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Candidate is an offset proposed for testing together with the packet
// region of the connection it falls in.
type Candidate struct {
	Offset int64      `json:"offset"`
	Region aplog.Span `json:"region"`
}

// Result is the classification of one candidate.
type Result struct {
	Candidate
	Outcome  Outcome       `json:"outcome"`
	Hash     string        `json:"hash"` // hex SHA-1 of the replay script
	Duration time.Duration `json:"duration_ns,omitempty"`
	Err      error         `json:"-"` // execution error behind a NoEffect
}

// Driver runs triage over one capture log.
type Driver struct {
	log  *aplog.Reader
	exec Executor
	cfg  Config
}

// NewDriver returns a driver testing candidates of r with ex.
func NewDriver(r *aplog.Reader, ex Executor, cfg Config) *Driver {
	return &Driver{log: r, exec: ex, cfg: cfg.withDefaults()}
}

// Scan walks the log from offset 0 and calls fn for every candidate until
// fn returns false, the log is exhausted or ctx is done.
func (d *Driver) Scan(ctx context.Context, fn func(Candidate) bool) error {
	span := d.log.Span()
	for cur := int64(0); cur < span; {
		if err := ctx.Err(); err != nil {
			return err
		}
		region, ok, err := render.Bounds(d.log, cur)
		if err != nil {
			return fmt.Errorf("locating boundaries at %d: %w", cur, err)
		}
		if !ok {
			cur++
			continue
		}
		if !fn(Candidate{Offset: cur, Region: region}) {
			return nil
		}
		cur = region.End
	}
	return nil
}

// Run scans the whole log and tests every unique connection. All outcomes
// are collected before it returns. On error the partial report is returned
// alongside it.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	seen := NewSeenSet()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	var (
		mu      sync.Mutex
		results []Result
	)
	scanErr := d.Scan(gctx, func(c Candidate) bool {
		g.Go(func() error {
			res, err := d.probe(gctx, seen, c)
			if err != nil {
				return err
			}
			if res.Outcome == Confirmed {
				slog.Info("fault confirmed",
					slog.Int64("offset", c.Offset),
					slog.String("hash", res.Hash),
				)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
		return gctx.Err() == nil
	})
	waitErr := g.Wait()

	report := newReport(results, time.Since(start))
	slog.Info("triage completed",
		slog.Int("candidates", report.Candidates),
		slog.Int("duplicates", report.Duplicates),
		slog.Int("confirmed", report.Confirmed),
		slog.Int("execution_errors", report.Errors),
		slog.Int64("duration_ms", report.Elapsed.Milliseconds()),
	)

	if waitErr != nil {
		return report, waitErr
	}
	if scanErr != nil {
		return report, scanErr
	}
	return report, nil
}

// probe renders c, drops it when an identical script was already seen and
// tests it otherwise.
func (d *Driver) probe(ctx context.Context, seen *SeenSet, c Candidate) (Result, error) {
	var script bytes.Buffer
	opts := render.Options{ReadTimeout: d.cfg.ReadTimeout}
	if err := render.Render(d.log, c.Offset, render.FormatReplayDiff, opts, &script); err != nil {
		return Result{}, fmt.Errorf("rendering candidate %d: %w", c.Offset, err)
	}

	sum := sha1.Sum(script.Bytes())
	res := Result{Candidate: c, Hash: hex.EncodeToString(sum[:])}
	if !seen.Add(sum) {
		res.Outcome = Duplicate
		return res, nil
	}
	return d.test(ctx, res, script.Bytes())
}

func (d *Driver) test(ctx context.Context, res Result, script []byte) (Result, error) {
	start := time.Now()
	out, err := d.execute(ctx, script)
	res.Duration = time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		slog.Warn("test execution failed",
			slog.Int64("offset", res.Offset),
			slog.String("error", err.Error()),
		)
		res.Outcome = NoEffect
		res.Err = err
		return res, nil
	}

	if bytes.Contains(out, []byte(d.cfg.Marker)) {
		res.Outcome = Confirmed
	}
	return res, nil
}

func (d *Driver) execute(ctx context.Context, script []byte) ([]byte, error) {
	f, err := os.CreateTemp(d.cfg.ScriptDir, "aptrace-replay-*.py")
	if err != nil {
		return nil, fmt.Errorf("%w: creating script: %w", ErrExecution, err)
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.Write(script); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: writing script: %w", ErrExecution, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: writing script: %w", ErrExecution, err)
	}

	return d.exec.Execute(ctx, name, d.cfg.Host, d.cfg.Port)
}

// sortResults orders results by candidate offset.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Offset < results[j].Offset
	})
}
