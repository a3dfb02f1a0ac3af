// Package search finds byte patterns in the packet payloads of a capture
// log.
package search

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/usestring/aptrace/internal/resolve"
	"github.com/usestring/aptrace/pkg/aplog"
	"github.com/usestring/aptrace/pkg/types"
)

// DefaultLimit is the page size used when a request sets none.
const DefaultLimit = 50

// DefaultWorkers bounds concurrent connection scans.
const DefaultWorkers = 8

// ErrPattern reports an empty or undecodable pattern.
var ErrPattern = errors.New("invalid search pattern")

// Engine searches one capture log.
type Engine struct {
	log     *aplog.Reader
	workers int
}

// New returns an engine over r scanning up to workers connections at once.
func New(r *aplog.Reader, workers int) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{log: r, workers: workers}
}

// query is a compiled SearchRequest.
type query struct {
	needle     []byte
	ignoreCase bool
	direction  aplog.Direction
	anyDir     bool
}

func compile(req *types.SearchRequest) (*query, error) {
	q := &query{ignoreCase: req.IgnoreCase, anyDir: true}

	if req.Hex {
		b, err := hex.DecodeString(strings.Join(strings.Fields(req.Pattern), ""))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPattern, err)
		}
		q.needle = b
	} else {
		q.needle = []byte(req.Pattern)
	}
	if len(q.needle) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrPattern)
	}
	if q.ignoreCase {
		q.needle = foldASCII(q.needle)
	}

	switch strings.ToLower(req.Direction) {
	case "":
	case "client", "c", "cs":
		q.anyDir, q.direction = false, aplog.ClientToServer
	case "server", "s", "sc":
		q.anyDir, q.direction = false, aplog.ServerToClient
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", ErrPattern, req.Direction)
	}
	return q, nil
}

// Validate checks req without touching the log.
func Validate(req *types.SearchRequest) error {
	_, err := compile(req)
	return err
}

// Search scans the connections selected by candidates, or all of them when
// candidates is nil, and returns one page of matches in log order with
// context for the matches on the page.
func (e *Engine) Search(ctx context.Context, req *types.SearchRequest, candidates *roaring.Bitmap) (*types.SearchResponse, error) {
	start := time.Now()
	q, err := compile(req)
	if err != nil {
		return nil, err
	}

	var ids []uint32
	if candidates == nil {
		ids = make([]uint32, e.log.Count())
		for i := range ids {
			ids[i] = uint32(i)
		}
	} else {
		ids = candidates.ToArray()
	}

	found := make([][]types.SearchMatch, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for n, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := e.scan(int(id), q)
			if err != nil {
				return err
			}
			found[n] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []types.SearchMatch
	for _, m := range found {
		all = append(all, m...)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := max(req.Offset, 0)
	resp := &types.SearchResponse{Total: len(all), Connections: len(ids)}
	if offset < len(all) {
		end := min(offset+limit, len(all))
		resp.Matches = all[offset:end]
		resp.HasMore = end < len(all)
	}
	for i := range resp.Matches {
		m := &resp.Matches[i]
		m.Context, err = resolve.Context(e.log, m.Offset, m.Length)
		if err != nil {
			return nil, fmt.Errorf("context for match at %d: %w", m.Offset, err)
		}
	}

	slog.Debug("payload search completed",
		slog.Int("connections", len(ids)),
		slog.Int("matches", len(all)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return resp, nil
}

// scan returns every match in connection i. Overlapping matches are all
// reported.
func (e *Engine) scan(i int, q *query) ([]types.SearchMatch, error) {
	h, err := e.log.Header(i)
	if err != nil {
		return nil, err
	}
	start := e.log.ConnectionSpan(i).Start

	var out []types.SearchMatch
	sc := e.log.Packets(h)
	for pi := 0; sc.Next(); pi++ {
		p := sc.Packet()
		if !q.anyDir && p.Direction != q.direction {
			continue
		}
		hay := p.Payload
		if q.ignoreCase {
			hay = foldASCII(hay)
		}
		for from := 0; ; {
			at := bytes.Index(hay[from:], q.needle)
			if at < 0 {
				break
			}
			out = append(out, types.SearchMatch{
				Offset:     p.Offset + int64(from+at),
				Length:     len(q.needle),
				Connection: i,
				Start:      start,
				Packet:     pi,
				Direction:  p.Direction.String(),
			})
			from += at + 1
		}
	}
	return out, sc.Err()
}

// foldASCII lowercases ASCII letters into a copy of b, keeping its length.
func foldASCII(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
